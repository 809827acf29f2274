// Package metrics exposes Prometheus collectors for chat and document
// traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/casedesk/internal/chat"
)

// Metrics owns a registry and the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests      *prometheus.CounterVec
	ChatChunks        prometheus.Counter
	ChatContextFailed prometheus.Counter
	ChatDuration      *prometheus.HistogramVec
	DocumentsStored   *prometheus.CounterVec
	ExtractFailures   prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChatRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casedesk_chat_requests_total",
				Help: "Chat requests by terminal state",
			},
			[]string{"state"},
		),
		ChatChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "casedesk_chat_stream_chunks_total",
			Help: "Text deltas relayed to chat clients",
		}),
		ChatContextFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "casedesk_chat_context_degraded_total",
			Help: "Chat requests that proceeded with degraded context",
		}),
		ChatDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "casedesk_chat_duration_seconds",
				Help:    "Duration of chat requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"state"},
		),
		DocumentsStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casedesk_documents_stored_total",
				Help: "Documents stored by ingestion source",
			},
			[]string{"source"},
		),
		ExtractFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "casedesk_extract_failures_total",
			Help: "Documents whose text could not be extracted",
		}),
	}
}

// ChatFinished records a finished chat request.
func (m *Metrics) ChatFinished(o chat.Outcome, elapsed time.Duration) {
	state := string(o.State)
	m.ChatRequests.WithLabelValues(state).Inc()
	m.ChatChunks.Add(float64(o.Chunks))
	if o.ContextDegraded {
		m.ChatContextFailed.Inc()
	}
	m.ChatDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

// DocumentStored counts a stored document. source is "upload", "inbox" or "mcp".
func (m *Metrics) DocumentStored(source string) {
	m.DocumentsStored.WithLabelValues(source).Inc()
}

// ExtractFailed counts a failed text extraction.
func (m *Metrics) ExtractFailed() {
	m.ExtractFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
