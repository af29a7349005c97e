// Package analysis turns batches of buffered browser events into structured
// findings by prompting a language-model backend and parsing its JSON reply.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"browseriq/internal/llm"
	"browseriq/internal/logging"
	"browseriq/internal/metrics"
	"browseriq/internal/model"
)

// promptEventLimit caps how many event details go into one prompt; larger
// batches get a count of the omitted remainder instead.
const promptEventLimit = 20

const systemPrompt = `You are an expert browser test automation engineer and web application performance analyst.
Your role is to analyze browser events captured during test execution and provide actionable insights.

Focus on:
1. Performance optimization opportunities
2. Error resolution strategies
3. Test stability improvements
4. Security vulnerabilities
5. Best practices recommendations

Provide specific, actionable suggestions with clear reasoning.
Format your response as JSON with the following structure:
{
  "summary": "Brief overview of findings",
  "severity": "LOW|MEDIUM|HIGH|CRITICAL",
  "issues": [
    {
      "type": "performance|error|security|stability|best-practice",
      "title": "Issue title",
      "description": "Detailed description",
      "suggestion": "Specific recommendation",
      "priority": "LOW|MEDIUM|HIGH|CRITICAL",
      "impact": "Potential impact description"
    }
  ],
  "recommendations": [
    {
      "category": "performance-optimization|error-resolution|test-stability|security-improvements|best-practices",
      "recommendation": "Specific recommendation",
      "reasoning": "Why this recommendation is important"
    }
  ]
}`

// Engine runs analyses against one LLM client. Stateless apart from the
// in-flight counter; safe for concurrent use.
type Engine struct {
	client   llm.Client
	inFlight atomic.Int32
}

// NewEngine wires an engine to its backend client.
func NewEngine(client llm.Client) *Engine {
	return &Engine{client: client}
}

// InFlight reports how many Analyze calls are currently running.
func (e *Engine) InFlight() int {
	return int(e.inFlight.Load())
}

// Analyze prompts the backend with the event batch and returns the parsed
// result. Never returns an error: failures come back as an error-flagged
// result so callers can report them uniformly.
func (e *Engine) Analyze(ctx context.Context, events []model.BrowserEvent, session *model.Session) *model.AnalysisResult {
	if len(events) == 0 {
		result := model.EmptyResult("No events to analyze")
		result.SessionID = session.ID
		result.SessionName = session.Name
		return result
	}

	e.inFlight.Add(1)
	metrics.AnalysisStarted()
	defer e.inFlight.Add(-1)

	prompt := buildPrompt(events, session)
	logging.AnalysisDebug("analyzing %d events for session %s (prompt %d bytes)",
		len(events), session.Name, len(prompt))

	response, err := e.client.Analyze(ctx, prompt, systemPrompt)
	if err != nil {
		logging.AnalysisError("analysis failed for session %s: %v", session.Name, err)
		metrics.AnalysisFinished(metrics.OutcomeError)
		result := model.ErrorResult(fmt.Sprintf("Analysis failed: %v", err))
		result.SessionID = session.ID
		result.SessionName = session.Name
		return result
	}

	result := parseResponse(response, session)
	if result.HasError {
		metrics.AnalysisFinished(metrics.OutcomeError)
	} else {
		metrics.AnalysisFinished(metrics.OutcomeSuccess)
	}
	logging.Analysis("analysis completed for session %s: severity=%s issues=%d",
		session.Name, result.Severity, len(result.Issues))
	return result
}

// buildPrompt renders the event batch into the analysis prompt: session
// context, time span, per-type counts, then the first promptEventLimit
// events in timestamp order.
func buildPrompt(events []model.BrowserEvent, session *model.Session) string {
	sorted := make([]model.BrowserEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	typeCounts := make(map[string]int)
	typeOrder := make([]string, 0, 4)
	for _, ev := range sorted {
		if typeCounts[ev.Type] == 0 {
			typeOrder = append(typeOrder, ev.Type)
		}
		typeCounts[ev.Type]++
	}

	var summary strings.Builder
	for _, t := range typeOrder {
		fmt.Fprintf(&summary, "- %s: %d events\n", t, typeCounts[t])
	}

	var details strings.Builder
	limit := len(sorted)
	if limit > promptEventLimit {
		limit = promptEventLimit
	}
	for _, ev := range sorted[:limit] {
		fmt.Fprintf(&details, "[%s] %s: %s\n", ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.Type, ev.Message)
		if ev.Details != "" {
			fmt.Fprintf(&details, "  Details: %s\n", ev.Details)
		}
		if ev.Level != "" {
			fmt.Fprintf(&details, "  Level: %s\n", ev.Level)
		}
		details.WriteString("\n")
	}
	if len(sorted) > promptEventLimit {
		fmt.Fprintf(&details, "... and %d more events\n", len(sorted)-promptEventLimit)
	}

	return fmt.Sprintf(`Analyze the following browser events from an automated test session:

Session: %s
Time Range: %s to %s
Total Events: %d

Events Summary:
%s
Event Details:
%s
Please analyze these events and provide insights on:
1. Any errors or exceptions that occurred
2. Performance issues (slow requests, high resource usage)
3. Potential test stability problems
4. Security concerns
5. Opportunities for optimization

Consider the context of automated testing and provide suggestions that would help improve test reliability and performance.`,
		session.Name,
		sorted[0].Timestamp.UTC().Format(time.RFC3339Nano),
		sorted[len(sorted)-1].Timestamp.UTC().Format(time.RFC3339Nano),
		len(events),
		summary.String(),
		details.String())
}

// Loose envelope for the model's reply; every field is optional and gets a
// default when absent.
type responseEnvelope struct {
	Summary         string `json:"summary"`
	Severity        string `json:"severity"`
	Issues          []struct {
		Type        string `json:"type"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Suggestion  string `json:"suggestion"`
		Priority    string `json:"priority"`
		Impact      string `json:"impact"`
	} `json:"issues"`
	Recommendations []struct {
		Category       string `json:"category"`
		Recommendation string `json:"recommendation"`
		Reasoning      string `json:"reasoning"`
	} `json:"recommendations"`
}

// parseResponse maps the model's JSON onto an AnalysisResult, filling
// defaults for missing fields. A reply that is not JSON at all becomes an
// error result rather than a panic or a silent empty finding.
func parseResponse(response string, session *model.Session) *model.AnalysisResult {
	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(response), &envelope); err != nil {
		logging.AnalysisError("failed to parse analysis response for session %s: %v", session.Name, err)
		result := model.ErrorResult(fmt.Sprintf("Failed to parse analysis response: %v", err))
		result.SessionID = session.ID
		result.SessionName = session.Name
		return result
	}

	result := &model.AnalysisResult{
		SessionID:   session.ID,
		SessionName: session.Name,
		Timestamp:   time.Now(),
		Summary:     envelope.Summary,
		Severity:    model.SeverityLow,
	}
	if envelope.Severity != "" {
		result.Severity = model.ParseSeverity(strings.ToUpper(envelope.Severity))
	}

	for _, issue := range envelope.Issues {
		parsed := model.Issue{
			Type:        issue.Type,
			Title:       issue.Title,
			Description: issue.Description,
			Suggestion:  issue.Suggestion,
			Priority:    model.SeverityMedium,
			Impact:      issue.Impact,
		}
		if parsed.Type == "" {
			parsed.Type = "unknown"
		}
		if parsed.Title == "" {
			parsed.Title = "Unknown Issue"
		}
		if issue.Priority != "" {
			parsed.Priority = model.ParseSeverity(strings.ToUpper(issue.Priority))
		}
		result.Issues = append(result.Issues, parsed)
	}

	for _, rec := range envelope.Recommendations {
		parsed := model.Recommendation{
			Category:       rec.Category,
			Recommendation: rec.Recommendation,
			Reasoning:      rec.Reasoning,
		}
		if parsed.Category == "" {
			parsed.Category = "general"
		}
		result.Recommendations = append(result.Recommendations, parsed)
	}

	// Severity can never understate the worst issue.
	if maxSev := result.MaxIssueSeverity(); model.SeverityAtLeast(maxSev, result.Severity) {
		result.Severity = maxSev
	}

	return result
}
