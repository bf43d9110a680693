// Package observability carries the ambient instrumentation: Prometheus
// metrics, the slog setup shared by every component, and OpenTelemetry
// tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide Prometheus instrument set, exposed on
// GET /metrics. Label cardinality is bounded by construction: models come
// from the fixed roster, tools from the fixed registry, and paths from the
// route table. The record helpers are no-ops on a nil receiver, so
// components take *Metrics without guarding every call.
type Metrics struct {
	// HTTPRequests counts requests by method, path and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration measures request latency by method and path.
	HTTPRequestDuration *prometheus.HistogramVec

	// SessionsActive tracks the number of live sessions in the store.
	SessionsActive prometheus.Gauge

	// SessionsEvicted counts sessions dropped by reason (expired|capacity).
	SessionsEvicted *prometheus.CounterVec

	// GenerationsTotal counts finished generations by status
	// (done|cancelled).
	GenerationsTotal *prometheus.CounterVec

	// GenerationsActive tracks generations currently streaming.
	GenerationsActive prometheus.Gauge

	// ModelTTFT measures start-to-first-token latency per model.
	ModelTTFT *prometheus.HistogramVec

	// ModelStreamDuration measures whole-stream wall time per model.
	ModelStreamDuration *prometheus.HistogramVec

	// ModelTokens counts vendor-reported usage by model and direction
	// (in|out).
	ModelTokens *prometheus.CounterVec

	// ModelErrors counts per-model stream failures by kind
	// (retryable|terminal).
	ModelErrors *prometheus.CounterVec

	// ToolCalls counts tool invocations by tool and status (success|error).
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool invocation wall time.
	ToolDuration *prometheus.HistogramVec

	// SSEEvents counts frames written to clients by event type.
	SSEEvents *prometheus.CounterVec
}

// NewMetrics creates and registers all instruments on the default registry.
// Call once at startup; promhttp.Handler() serves the result.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_http_requests_total",
				Help: "HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiyas_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiyas_sessions_active",
				Help: "Live sessions in the store",
			},
		),

		SessionsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_sessions_evicted_total",
				Help: "Sessions dropped from the store by reason",
			},
			[]string{"reason"},
		),

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_generations_total",
				Help: "Finished generations by status",
			},
			[]string{"status"},
		),

		GenerationsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "qiyas_generations_active",
				Help: "Generations currently streaming",
			},
		),

		ModelTTFT: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiyas_model_ttft_seconds",
				Help:    "Start-to-first-token latency per model",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
			},
			[]string{"model"},
		),

		ModelStreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiyas_model_stream_duration_seconds",
				Help:    "Whole-stream wall time per model",
				Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 25, 30},
			},
			[]string{"model"},
		),

		ModelTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_model_tokens_total",
				Help: "Vendor-reported token usage by model and direction",
			},
			[]string{"model", "direction"},
		),

		ModelErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_model_errors_total",
				Help: "Per-model stream failures by kind",
			},
			[]string{"model", "kind"},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_tool_calls_total",
				Help: "Tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qiyas_tool_duration_seconds",
				Help:    "Tool invocation wall time in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"tool"},
		),

		SSEEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qiyas_sse_events_total",
				Help: "SSE frames written to clients by event type",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetActiveSessions updates the live-session gauge after a store mutation.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// SessionEvicted counts one dropped session. Reason is "expired" or
// "capacity".
func (m *Metrics) SessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.SessionsEvicted.WithLabelValues(reason).Inc()
}

// GenerationStarted marks a generation in flight.
func (m *Metrics) GenerationStarted() {
	if m == nil {
		return
	}
	m.GenerationsActive.Inc()
}

// GenerationEnded marks a generation finished. Status is "done" or
// "cancelled".
func (m *Metrics) GenerationEnded(status string) {
	if m == nil {
		return
	}
	m.GenerationsActive.Dec()
	m.GenerationsTotal.WithLabelValues(status).Inc()
}

// ObserveTTFT records a model's first-token latency.
func (m *Metrics) ObserveTTFT(model string, ttft time.Duration) {
	if m == nil {
		return
	}
	m.ModelTTFT.WithLabelValues(model).Observe(ttft.Seconds())
}

// ObserveStreamDone records a model stream's total duration and usage.
func (m *Metrics) ObserveStreamDone(model string, total time.Duration, tokensIn, tokensOut int64) {
	if m == nil {
		return
	}
	m.ModelStreamDuration.WithLabelValues(model).Observe(total.Seconds())
	if tokensIn > 0 {
		m.ModelTokens.WithLabelValues(model, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		m.ModelTokens.WithLabelValues(model, "out").Add(float64(tokensOut))
	}
}

// RecordModelError counts one per-model stream failure. Kind is "retryable"
// or "terminal".
func (m *Metrics) RecordModelError(model, kind string) {
	if m == nil {
		return
	}
	m.ModelErrors.WithLabelValues(model, kind).Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordSSEEvent counts one frame written to a client.
func (m *Metrics) RecordSSEEvent(eventType string) {
	if m == nil {
		return
	}
	m.SSEEvents.WithLabelValues(eventType).Inc()
}
