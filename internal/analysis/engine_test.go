package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"browseriq/internal/model"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
	systems  []string
}

func (s *stubClient) Analyze(_ context.Context, prompt, systemPrompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.systems = append(s.systems, systemPrompt)
	return s.response, s.err
}

func (s *stubClient) IsAvailable(context.Context) bool { return true }
func (s *stubClient) Close() error                     { return nil }

func makeEvents(sessionID string, n int) []model.BrowserEvent {
	events := make([]model.BrowserEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := model.NewConsoleEvent(sessionID, model.LevelInfo, "log line", "test")
		ev.Timestamp = time.Date(2026, 1, 1, 12, 0, i, 0, time.UTC)
		events = append(events, ev)
	}
	return events
}

func TestAnalyzeEmptyBatchSkipsClient(t *testing.T) {
	stub := &stubClient{response: "should not be called"}
	engine := NewEngine(stub)
	session := model.NewSession("sess-empty", "empty-test")

	result := engine.Analyze(context.Background(), nil, session)
	if result.HasError {
		t.Fatalf("expected clean empty result, got error %q", result.ErrorMessage)
	}
	if result.Summary != "No events to analyze" {
		t.Errorf("unexpected summary %q", result.Summary)
	}
	if result.Severity != model.SeverityLow {
		t.Errorf("expected LOW severity, got %s", result.Severity)
	}
	if result.SessionID != "sess-empty" || result.SessionName != "empty-test" {
		t.Errorf("session identity not carried on empty batch: %s/%s", result.SessionID, result.SessionName)
	}
	if len(stub.prompts) != 0 {
		t.Errorf("client should not be called for empty batch, got %d calls", len(stub.prompts))
	}
}

func TestAnalyzeParsesIssues(t *testing.T) {
	stub := &stubClient{response: `{
		"summary": "Found a slow endpoint",
		"severity": "MEDIUM",
		"issues": [
			{
				"type": "performance",
				"title": "Slow API response",
				"description": "Request took 5.2s",
				"suggestion": "Add caching",
				"priority": "HIGH",
				"impact": "Flaky timeouts"
			}
		],
		"recommendations": [
			{"category": "performance-optimization", "recommendation": "Cache static data", "reasoning": "Reduces latency"}
		]
	}`}
	engine := NewEngine(stub)
	session := model.NewSession("sess-perf", "perf-test")

	result := engine.Analyze(context.Background(), makeEvents(session.ID, 3), session)
	if result.HasError {
		t.Fatalf("unexpected error result: %q", result.ErrorMessage)
	}
	if result.SessionID != session.ID || result.SessionName != "perf-test" {
		t.Errorf("session identity not carried: %s/%s", result.SessionID, result.SessionName)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(result.Issues))
	}
	if result.Issues[0].Priority != model.SeverityHigh {
		t.Errorf("expected HIGH priority, got %s", result.Issues[0].Priority)
	}
	// Result severity is floored at the worst issue priority.
	if result.Severity != model.SeverityHigh {
		t.Errorf("expected severity raised to HIGH, got %s", result.Severity)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Category != "performance-optimization" {
		t.Errorf("recommendations not parsed: %+v", result.Recommendations)
	}
}

func TestAnalyzeFillsFieldDefaults(t *testing.T) {
	stub := &stubClient{response: `{
		"summary": "sparse reply",
		"issues": [{"description": "something odd"}],
		"recommendations": [{"recommendation": "look closer"}]
	}`}
	engine := NewEngine(stub)
	session := model.NewSession("sess-defaults", "defaults-test")

	result := engine.Analyze(context.Background(), makeEvents(session.ID, 1), session)
	issue := result.Issues[0]
	if issue.Type != "unknown" {
		t.Errorf("expected default type, got %q", issue.Type)
	}
	if issue.Title != "Unknown Issue" {
		t.Errorf("expected default title, got %q", issue.Title)
	}
	if issue.Priority != model.SeverityMedium {
		t.Errorf("expected default MEDIUM priority, got %s", issue.Priority)
	}
	if result.Recommendations[0].Category != "general" {
		t.Errorf("expected default category, got %q", result.Recommendations[0].Category)
	}
	if result.Severity != model.SeverityMedium {
		t.Errorf("expected severity floored at MEDIUM, got %s", result.Severity)
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	stub := &stubClient{response: "I could not produce JSON, sorry."}
	engine := NewEngine(stub)
	session := model.NewSession("sess-bad-json", "bad-json-test")

	result := engine.Analyze(context.Background(), makeEvents(session.ID, 2), session)
	if !result.HasError {
		t.Fatal("expected error result for malformed JSON")
	}
	if result.Severity != model.SeverityCritical {
		t.Errorf("expected CRITICAL severity, got %s", result.Severity)
	}
	if !strings.Contains(result.ErrorMessage, "parse") {
		t.Errorf("expected parse failure message, got %q", result.ErrorMessage)
	}
}

func TestAnalyzeClientFailure(t *testing.T) {
	stub := &stubClient{err: errors.New("backend down")}
	engine := NewEngine(stub)
	session := model.NewSession("sess-down", "down-test")

	result := engine.Analyze(context.Background(), makeEvents(session.ID, 2), session)
	if !result.HasError {
		t.Fatal("expected error result when client fails")
	}
	if !strings.Contains(result.ErrorMessage, "backend down") {
		t.Errorf("expected cause in message, got %q", result.ErrorMessage)
	}
	if result.SessionName != "down-test" {
		t.Errorf("session identity not carried on failure: %q", result.SessionName)
	}
}

func TestBuildPromptCapsDetails(t *testing.T) {
	stub := &stubClient{response: `{"summary":"ok"}`}
	engine := NewEngine(stub)
	session := model.NewSession("sess-cap", "cap-test")

	engine.Analyze(context.Background(), makeEvents(session.ID, 25), session)
	if len(stub.prompts) != 1 {
		t.Fatalf("expected 1 client call, got %d", len(stub.prompts))
	}
	prompt := stub.prompts[0]
	if !strings.Contains(prompt, "Total Events: 25") {
		t.Errorf("expected total count in prompt")
	}
	if !strings.Contains(prompt, "... and 5 more events") {
		t.Errorf("expected omitted-events note in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- console: 25 events") {
		t.Errorf("expected per-type summary in prompt")
	}
	if !strings.Contains(stub.systems[0], `"severity": "LOW|MEDIUM|HIGH|CRITICAL"`) {
		t.Errorf("system prompt missing JSON contract")
	}
}

func TestBuildPromptOrdersByTimestamp(t *testing.T) {
	session := model.NewSession("sess-order", "order-test")
	events := makeEvents(session.ID, 3)
	// Shuffle: latest first.
	events[0], events[2] = events[2], events[0]

	prompt := buildPrompt(events, session)
	first := strings.Index(prompt, "2026-01-01T12:00:00Z")
	last := strings.Index(prompt, "2026-01-01T12:00:02Z")
	if first == -1 || last == -1 || first > last {
		t.Fatalf("events not in timestamp order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Time Range: 2026-01-01T12:00:00Z to 2026-01-01T12:00:02Z") {
		t.Errorf("time range not derived from sorted events:\n%s", prompt)
	}
}
