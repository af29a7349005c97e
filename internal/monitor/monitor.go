// Package monitor orchestrates browser monitoring sessions: it owns the
// session registry, feeds captured events into the buffer, schedules
// periodic analyses, and hands finished sessions to the report sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"browseriq/internal/analysis"
	"browseriq/internal/config"
	"browseriq/internal/events"
	"browseriq/internal/instrument"
	"browseriq/internal/llm"
	"browseriq/internal/logging"
	"browseriq/internal/model"
	"browseriq/internal/report"
)

// ErrDisabled is returned by StartMonitoring when monitoring is switched
// off in configuration.
var ErrDisabled = errors.New("monitoring is disabled in configuration")

// analysisWorkers bounds concurrent analysis invocations across periodic,
// on-demand, and final analyses.
const analysisWorkers = 2

// realtimeEventWindow is how many trailing events an on-demand suggestion
// request looks at.
const realtimeEventWindow = 20

// detacher ends one instrumentation stream.
type detacher interface {
	Detach()
}

// attachFunc subscribes a page's event streams; the default is
// instrument.Attach. Swappable so orchestration can be tested without a
// live browser.
type attachFunc func(ctx context.Context, page *rod.Page, sessionID string, emit func(model.BrowserEvent)) (detacher, error)

func defaultAttach(ctx context.Context, page *rod.Page, sessionID string, emit func(model.BrowserEvent)) (detacher, error) {
	stream, err := instrument.Attach(ctx, page, sessionID, emit)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

type sessionState struct {
	session *model.Session
	stream  detacher // nil when running on seeded fallback events
}

// Stats is a point-in-time view of the monitor.
type Stats struct {
	ActiveSessions   int    `json:"active_sessions"`
	TotalEvents      int64  `json:"total_events_collected"`
	AnalysesInFlight int    `json:"analyses_in_flight"`
	Provider         string `json:"provider"`
	Enabled          bool   `json:"monitoring_enabled"`
}

// Monitor coordinates the full monitoring pipeline for any number of
// concurrent sessions. Construct with New; a zero Monitor is not usable.
type Monitor struct {
	cfg    *config.Config
	buffer *events.Buffer
	engine *analysis.Engine
	sink   report.Sink
	client llm.Client

	attach attachFunc

	mu       sync.RWMutex
	sessions map[string]*sessionState
	finished []*model.Session

	workers *semaphore.Weighted
	wg      sync.WaitGroup

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New assembles a monitor around an LLM client and a report sink. When
// realtime suggestions are enabled the periodic analysis loop starts
// immediately; Shutdown stops it.
func New(cfg *config.Config, client llm.Client, sink report.Sink) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		buffer:   events.NewBuffer(),
		engine:   analysis.NewEngine(client),
		sink:     sink,
		client:   client,
		attach:   defaultAttach,
		sessions: make(map[string]*sessionState),
		workers:  semaphore.NewWeighted(analysisWorkers),
		loopDone: make(chan struct{}),
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.loopCancel = cancel
	if cfg.RealtimeSuggestionsEnabled {
		go m.periodicLoop(loopCtx)
		logging.Monitor("scheduled periodic analysis every %v (batch %d)", cfg.AnalysisInterval, cfg.BatchSize)
	} else {
		close(m.loopDone)
	}

	logging.Monitor("monitor initialized: provider=%s enabled=%v", cfg.Provider, cfg.MonitoringEnabled)
	return m
}

// StartMonitoring begins a session on the given page handle and returns
// its session id. A nil page is a configuration error; a page without a
// usable devtools stream degrades to the synthetic fallback events.
func (m *Monitor) StartMonitoring(ctx context.Context, page *rod.Page, sessionName string) (string, error) {
	if !m.cfg.MonitoringEnabled {
		logging.MonitorWarn("start requested while monitoring is disabled")
		return "", ErrDisabled
	}
	if page == nil {
		return "", fmt.Errorf("cannot monitor a nil page handle")
	}

	sessionID := uuid.NewString()
	name := sessionName
	if name == "" {
		name = "Session-" + sessionID[:8]
	}

	session := model.NewSession(sessionID, name)
	m.buffer.StartSession(sessionID)

	stream, err := m.attach(ctx, page, sessionID, func(ev model.BrowserEvent) {
		m.buffer.Append(sessionID, ev)
	})
	if err != nil {
		logging.SessionWarn("instrumentation unavailable for session %s, seeding fallback events: %v", name, err)
		m.buffer.SeedFallback(sessionID)
		stream = nil
	}

	m.mu.Lock()
	m.sessions[sessionID] = &sessionState{session: session, stream: stream}
	m.mu.Unlock()

	logging.Session("started monitoring session: %s (%s)", name, sessionID)
	return sessionID, nil
}

// StopMonitoring ends a session: detaches instrumentation, snapshots the
// event log, and writes the final report once the closing analysis is done.
// Unknown or already-stopped ids are a no-op.
func (m *Monitor) StopMonitoring(sessionID string) {
	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		// Stop before the session is published through finished; once it is
		// visible to report readers it must never change again.
		state.session.Stop()
		m.finished = append(m.finished, state.session)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	snapshot := m.buffer.All(sessionID)
	m.buffer.StopSession(sessionID)
	if state.stream != nil {
		state.stream.Detach()
	}

	logging.Session("stopped monitoring session: %s (%s), %d events",
		state.session.Name, sessionID, len(snapshot))

	if len(snapshot) == 0 {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()

		if err := m.workers.Acquire(ctx, 1); err != nil {
			logging.SessionWarn("no analysis slot for final report of %s: %v", state.session.Name, err)
			m.sink.WriteSession(state.session, snapshot, nil)
			return
		}
		defer m.workers.Release(1)

		result := m.engine.Analyze(ctx, snapshot, state.session)
		if result.HasError {
			// The report still goes out, just without findings.
			logging.SessionWarn("final analysis failed for session %s: %s", state.session.Name, result.ErrorMessage)
			m.sink.WriteSession(state.session, snapshot, nil)
			return
		}
		m.sink.WriteSession(state.session, snapshot, result)
	}()
}

// StopAll stops every active session.
func (m *Monitor) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	logging.Monitor("stopping all active monitoring sessions: %d", len(ids))
	for _, id := range ids {
		m.StopMonitoring(id)
	}
}

// RealtimeSuggestions analyzes the session's most recent events on demand.
// An unknown session id yields an error-flagged result, not a Go error, so
// callers in test teardown paths do not need special handling.
func (m *Monitor) RealtimeSuggestions(ctx context.Context, sessionID string) *model.AnalysisResult {
	m.mu.RLock()
	state, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return model.ErrorResult("Session not found: " + sessionID)
	}

	if err := m.workers.Acquire(ctx, 1); err != nil {
		return model.ErrorResult(fmt.Sprintf("Analysis slot unavailable: %v", err))
	}
	defer m.workers.Release(1)

	recent := m.buffer.Recent(sessionID, realtimeEventWindow)
	return m.engine.Analyze(ctx, recent, state.session)
}

// GenerateReport writes the comprehensive report covering every session
// seen so far and returns its path.
func (m *Monitor) GenerateReport() string {
	m.mu.RLock()
	// Copies taken under the lock: the sink reads them after the lock is
	// released, while active sessions may be stopping concurrently.
	all := make([]*model.Session, 0, len(m.sessions)+len(m.finished))
	for _, state := range m.sessions {
		snapshot := *state.session
		all = append(all, &snapshot)
	}
	for _, session := range m.finished {
		snapshot := *session
		all = append(all, &snapshot)
	}
	m.mu.RUnlock()

	return m.sink.WriteComprehensive(all)
}

// Stats reports current monitoring counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	active := len(m.sessions)
	m.mu.RUnlock()

	return Stats{
		ActiveSessions:   active,
		TotalEvents:      m.buffer.TotalCount(),
		AnalysesInFlight: m.engine.InFlight(),
		Provider:         m.cfg.Provider,
		Enabled:          m.cfg.MonitoringEnabled,
	}
}

// periodicLoop analyzes each active session's trailing batch at the
// configured interval. A failing session never blocks the others; analysis
// failures come back as error-flagged results and are only logged here.
func (m *Monitor) periodicLoop(ctx context.Context) {
	defer close(m.loopDone)

	ticker := time.NewTicker(m.cfg.AnalysisInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.analyzeActiveSessions(ctx)
		}
	}
}

func (m *Monitor) analyzeActiveSessions(ctx context.Context) {
	m.mu.RLock()
	states := make([]*sessionState, 0, len(m.sessions))
	for _, state := range m.sessions {
		states = append(states, state)
	}
	m.mu.RUnlock()

	for _, state := range states {
		batch := m.buffer.Recent(state.session.ID, m.cfg.BatchSize)
		if len(batch) == 0 {
			continue
		}
		if err := m.workers.Acquire(ctx, 1); err != nil {
			return
		}

		m.wg.Add(1)
		go func(state *sessionState, batch []model.BrowserEvent) {
			defer m.wg.Done()
			defer m.workers.Release(1)

			result := m.engine.Analyze(ctx, batch, state.session)
			switch {
			case result.HasError:
				logging.MonitorWarn("periodic analysis failed for session %s: %s",
					state.session.Name, result.ErrorMessage)
			case result.HasIssues():
				logging.Monitor("analysis found %d issue(s) in session %s",
					len(result.Issues), state.session.Name)
			}
		}(state, batch)
	}
}

// Shutdown stops all sessions and the periodic loop, waits for in-flight
// analyses up to the context deadline, and closes the LLM client. Safe to
// call once; the monitor is unusable afterwards.
func (m *Monitor) Shutdown(ctx context.Context) error {
	logging.Monitor("shutting down monitor")

	m.StopAll()
	m.loopCancel()
	<-m.loopDone

	drained := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("shutdown wait for analysis workers: %w", ctx.Err())
		logging.MonitorWarn("%v", err)
	}

	if closeErr := m.client.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	logging.Monitor("monitor shutdown complete")
	return err
}
