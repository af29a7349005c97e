// Package report persists monitoring outcomes. Sinks are fire-and-forget:
// a failed write is logged and the monitoring pipeline moves on, since a
// report must never take a test run down with it.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"browseriq/internal/logging"
	"browseriq/internal/model"
)

// Sink receives finished sessions and their analysis output.
type Sink interface {
	// WriteSession persists one session report. result is nil when the
	// final analysis failed; the events are still written.
	WriteSession(session *model.Session, events []model.BrowserEvent, result *model.AnalysisResult)

	// WriteComprehensive persists a cross-session summary and returns the
	// artifact path, or "" when nothing was written.
	WriteComprehensive(sessions []*model.Session) string
}

// JSONSink writes pretty-printed JSON artifacts under a report directory.
type JSONSink struct {
	dir string
}

// NewJSONSink creates the report directory eagerly so write failures show
// up at construction instead of at session end.
func NewJSONSink(dir string) (*JSONSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	logging.Report("report sink writing to %s", dir)
	return &JSONSink{dir: dir}, nil
}

type sessionReport struct {
	Session    *model.Session        `json:"session"`
	EventCount int                   `json:"event_count"`
	Events     []model.BrowserEvent  `json:"events"`
	Analysis   *model.AnalysisResult `json:"analysis,omitempty"`
	Generated  time.Time             `json:"generated_at"`
}

type comprehensiveReport struct {
	SessionCount int              `json:"session_count"`
	Sessions     []*model.Session `json:"sessions"`
	Generated    time.Time        `json:"generated_at"`
}

// WriteSession writes session-<id8>-report.json for the finished session.
func (s *JSONSink) WriteSession(session *model.Session, events []model.BrowserEvent, result *model.AnalysisResult) {
	path := filepath.Join(s.dir, "session-"+shortID(session.ID)+"-report.json")

	payload := sessionReport{
		Session:    session,
		EventCount: len(events),
		Events:     events,
		Analysis:   result,
		Generated:  time.Now(),
	}
	if err := writeJSON(path, payload); err != nil {
		logging.ReportError("failed to write session report for %s: %v", session.Name, err)
		return
	}
	logging.Report("session report generated: %s (%d events)", path, len(events))
}

// WriteComprehensive writes comprehensive-report.json across all sessions.
func (s *JSONSink) WriteComprehensive(sessions []*model.Session) string {
	if len(sessions) == 0 {
		return ""
	}
	path := filepath.Join(s.dir, "comprehensive-report.json")

	payload := comprehensiveReport{
		SessionCount: len(sessions),
		Sessions:     sessions,
		Generated:    time.Now(),
	}
	if err := writeJSON(path, payload); err != nil {
		logging.ReportError("failed to write comprehensive report: %v", err)
		return ""
	}
	logging.Report("comprehensive report generated: %s (%d sessions)", path, len(sessions))
	return path
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NopSink discards everything. Used when reporting is disabled and in
// tests that only care about orchestration.
type NopSink struct{}

func (NopSink) WriteSession(*model.Session, []model.BrowserEvent, *model.AnalysisResult) {}

func (NopSink) WriteComprehensive([]*model.Session) string { return "" }
