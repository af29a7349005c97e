// Package model holds the value types shared across the monitoring pipeline:
// sessions, captured browser events, and analysis results. Values are
// immutable after construction; accessors copy slices where aliasing would
// let callers mutate shared state.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event categories produced by the instrumentation layer.
const (
	EventConsole         = "console"
	EventNetwork         = "network"
	EventScriptException = "script-exception"
	EventPerformance     = "performance"
	EventNetworkFailure  = "network-failure"
)

// Event levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// BrowserEvent is a single observed runtime occurrence tied to a session.
type BrowserEvent struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Details   string            `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func newEvent(sessionID, eventType, level, message string) BrowserEvent {
	return BrowserEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      eventType,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConsoleEvent records a console API call or log entry.
func NewConsoleEvent(sessionID, level, message, source string) BrowserEvent {
	ev := newEvent(sessionID, EventConsole, level, message)
	ev.Source = source
	return ev
}

// NewNetworkEvent records a completed network exchange. Responses with a
// status of 400 or above are tagged ERROR.
func NewNetworkEvent(sessionID, url string, statusCode int, duration time.Duration) BrowserEvent {
	level := LevelInfo
	if statusCode >= 400 {
		level = LevelError
	}
	ev := newEvent(sessionID, EventNetwork, level,
		fmt.Sprintf("Request to %s returned %d in %dms", url, statusCode, duration.Milliseconds()))
	ev.Details = fmt.Sprintf("URL: %s, Status: %d, Duration: %dms", url, statusCode, duration.Milliseconds())
	return ev
}

// NewScriptExceptionEvent records an uncaught page exception.
func NewScriptExceptionEvent(sessionID, errText, stackTrace string) BrowserEvent {
	ev := newEvent(sessionID, EventScriptException, LevelError, errText)
	ev.Details = stackTrace
	return ev
}

// NewPerformanceEvent records a performance metric observation.
func NewPerformanceEvent(sessionID, metric string, value any) BrowserEvent {
	ev := newEvent(sessionID, EventPerformance, LevelInfo,
		fmt.Sprintf("Performance metric: %s = %v", metric, value))
	ev.Details = fmt.Sprintf("Metric: %s, Value: %v", metric, value)
	return ev
}

// NewNetworkFailureEvent records a request that never completed.
func NewNetworkFailureEvent(sessionID, requestID, errText string) BrowserEvent {
	ev := newEvent(sessionID, EventNetworkFailure, LevelError,
		"Network request failed: "+errText)
	ev.Source = requestID
	ev.Details = "Error: " + errText
	return ev
}
