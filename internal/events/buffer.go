// Package events buffers captured browser events per monitoring session.
// The buffer is the only place instrumentation callbacks touch shared state,
// so the append path must stay cheap and lock-scoped: no I/O, no analysis.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"browseriq/internal/logging"
	"browseriq/internal/metrics"
	"browseriq/internal/model"
)

type sessionLog struct {
	mu     sync.RWMutex
	events []model.BrowserEvent
	closed bool
}

// Buffer holds per-session append-only event logs. Safe for concurrent
// producers and readers; structural changes (start/stop) serialize on the
// outer lock while appends serialize per session.
type Buffer struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	total    atomic.Int64
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{sessions: make(map[string]*sessionLog)}
}

// StartSession allocates an empty log for the session. Calling it again for
// the same id resets the log; callers must not double-start.
func (b *Buffer) StartSession(sessionID string) {
	b.mu.Lock()
	b.sessions[sessionID] = &sessionLog{}
	b.mu.Unlock()
	logging.Events("started event log for session %s", sessionID)
}

// Append adds one event to its session log. Appends to unknown or stopped
// sessions are dropped with a log line; instrumentation teardown races make
// both cases routine, not errors.
func (b *Buffer) Append(sessionID string, ev model.BrowserEvent) {
	b.mu.RLock()
	sl, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		logging.EventsWarn("dropping event for unknown session %s", sessionID)
		return
	}

	sl.mu.Lock()
	if sl.closed {
		sl.mu.Unlock()
		logging.EventsDebug("dropping late event for stopped session %s", sessionID)
		return
	}
	sl.events = append(sl.events, ev)
	sl.mu.Unlock()

	b.total.Add(1)
	metrics.EventCollected()
}

// Recent returns the last limit events for the session in append order,
// fewer when the log is shorter. The returned slice is a copy.
func (b *Buffer) Recent(sessionID string, limit int) []model.BrowserEvent {
	b.mu.RLock()
	sl, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok || limit <= 0 {
		return nil
	}

	sl.mu.RLock()
	defer sl.mu.RUnlock()
	from := len(sl.events) - limit
	if from < 0 {
		from = 0
	}
	out := make([]model.BrowserEvent, len(sl.events)-from)
	copy(out, sl.events[from:])
	return out
}

// All returns a snapshot of the full session log in append order.
func (b *Buffer) All(sessionID string) []model.BrowserEvent {
	b.mu.RLock()
	sl, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	sl.mu.RLock()
	defer sl.mu.RUnlock()
	out := make([]model.BrowserEvent, len(sl.events))
	copy(out, sl.events)
	return out
}

// StopSession closes the session log. Later appends are ignored; the
// buffered events stay readable until the buffer itself is dropped.
func (b *Buffer) StopSession(sessionID string) {
	b.mu.RLock()
	sl, ok := b.sessions[sessionID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	sl.mu.Lock()
	sl.closed = true
	n := len(sl.events)
	sl.mu.Unlock()
	logging.Events("stopped event log for session %s (%d events)", sessionID, n)
}

// TotalCount reports how many events have ever been appended, across all
// sessions. Monotonic.
func (b *Buffer) TotalCount() int64 {
	return b.total.Load()
}

// SeedFallback injects a fixed synthetic event sequence for sessions where
// live instrumentation could not be attached. The trailing WARN marks the
// session as degraded so the analysis output cannot be mistaken for real
// browser telemetry.
func (b *Buffer) SeedFallback(sessionID string) {
	logging.EventsWarn("using simulated events for session %s (instrumentation not available)", sessionID)

	now := time.Now().UnixMilli()
	b.Append(sessionID, model.NewConsoleEvent(sessionID, model.LevelInfo, "Page navigation started", "about:blank"))
	b.Append(sessionID, model.NewPerformanceEvent(sessionID, "navigation-start", now))
	b.Append(sessionID, model.NewConsoleEvent(sessionID, model.LevelInfo, "DOM content loaded", "test-page"))
	b.Append(sessionID, model.NewPerformanceEvent(sessionID, "dom-content-loaded", now))
	b.Append(sessionID, model.NewConsoleEvent(sessionID, model.LevelWarn,
		"browseriq: using simulated events - attach a devtools-capable page for real browser monitoring", "browseriq"))
}
