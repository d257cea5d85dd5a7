// Package metrics exposes Prometheus collectors for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backend names used as the "backend" label
const (
	BackendEmbedding     = "embedding"
	BackendKnowledgeBase = "knowledge_base"
	BackendLLM           = "llm"
	BackendSessionStore  = "session_store"
)

// Outcome values used as the "outcome" label
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ehr_chatbot",
		Name:      "turns_total",
		Help:      "Conversation turns by response type and confidence level.",
	}, []string{"response_type", "confidence"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ehr_chatbot",
		Name:      "backend_duration_seconds",
		Help:      "Latency of calls to external backends.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"backend", "outcome"})

	degradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ehr_chatbot",
		Name:      "degraded_total",
		Help:      "Turns served on a degraded path, by reason.",
	}, []string{"reason"})
)

// RecordTurn counts a completed turn
func RecordTurn(responseType, confidence string) {
	turnsTotal.WithLabelValues(responseType, confidence).Inc()
}

// ObserveBackend records one backend call started at start
func ObserveBackend(backend string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	backendDuration.WithLabelValues(backend, outcome).Observe(time.Since(start).Seconds())
}

// RecordDegraded counts a fallback taken because a dependency failed
func RecordDegraded(reason string) {
	degradedTotal.WithLabelValues(reason).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
