// Package metrics exposes browseriq operational counters as Prometheus
// collectors. Callers that do not care about scraping can ignore Register;
// the package-level helpers are safe either way.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	eventsCollectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "browseriq",
			Name:      "events_collected_total",
			Help:      "Total browser events appended across all sessions.",
		},
	)

	analysesInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "browseriq",
			Name:      "analyses_inflight",
			Help:      "Analysis invocations currently running.",
		},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "browseriq",
			Name:      "analyses_total",
			Help:      "Completed analysis invocations, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	llmRequestSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "browseriq",
			Name:      "llm_request_seconds",
			Help:      "Wall time of LLM provider calls, retries included.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
)

// Register attaches the browseriq collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsCollectedTotal,
		analysesInflight,
		analysesTotal,
		llmRequestSeconds,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// EventCollected counts one appended browser event.
func EventCollected() {
	eventsCollectedTotal.Inc()
}

// AnalysisStarted marks an analysis in flight.
func AnalysisStarted() {
	analysesInflight.Inc()
}

// AnalysisFinished marks an analysis complete with the given outcome.
func AnalysisFinished(outcome string) {
	analysesInflight.Dec()
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(outcome).Inc()
}

// ObserveLLMRequest records the duration of one provider call.
func ObserveLLMRequest(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	llmRequestSeconds.Observe(duration.Seconds())
}
