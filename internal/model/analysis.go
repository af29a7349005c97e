package model

import "time"

// Severity ranks an analysis outcome or issue priority.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ParseSeverity maps a model-supplied string onto the closed severity set,
// defaulting to MEDIUM for anything unrecognized.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	}
	return SeverityMedium
}

// SeverityAtLeast reports whether a ranks at or above b.
func SeverityAtLeast(a, b Severity) bool {
	return severityRank[a] >= severityRank[b]
}

// Issue is a specific detected problem with a suggested remedy.
type Issue struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
	Priority    Severity `json:"priority"`
	Impact      string   `json:"impact"`
}

// Recommendation is a general improvement suggestion not tied to one issue.
type Recommendation struct {
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
}

// AnalysisResult is the parsed outcome of one analysis invocation. Produced
// fresh per call and never mutated afterwards.
type AnalysisResult struct {
	SessionID       string           `json:"session_id"`
	SessionName     string           `json:"session_name"`
	Timestamp       time.Time        `json:"timestamp"`
	Summary         string           `json:"summary"`
	Severity        Severity         `json:"severity"`
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
	HasError        bool             `json:"has_error"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// EmptyResult reports a successful analysis with nothing to say, used when
// there were no events to look at.
func EmptyResult(message string) *AnalysisResult {
	return &AnalysisResult{
		Timestamp: time.Now(),
		Summary:   message,
		Severity:  SeverityLow,
	}
}

// ErrorResult reports a degraded analysis: the error flag is set and the
// severity pinned to CRITICAL so report consumers cannot mistake it for a
// clean run.
func ErrorResult(errMessage string) *AnalysisResult {
	return &AnalysisResult{
		Timestamp:    time.Now(),
		Summary:      "Analysis failed",
		Severity:     SeverityCritical,
		HasError:     true,
		ErrorMessage: errMessage,
	}
}

// HasIssues reports whether any issues were detected.
func (r *AnalysisResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// CriticalIssueCount counts issues at CRITICAL priority.
func (r *AnalysisResult) CriticalIssueCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Priority == SeverityCritical {
			n++
		}
	}
	return n
}

// MaxIssueSeverity returns the highest priority among the issues, or LOW
// when there are none. AnalysisResult.Severity must never be below this.
func (r *AnalysisResult) MaxIssueSeverity() Severity {
	max := SeverityLow
	for _, issue := range r.Issues {
		if severityRank[issue.Priority] > severityRank[max] {
			max = issue.Priority
		}
	}
	return max
}
