package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joweeba/dTOOL/internal/sanitize"
)

// Metrics provides a centralized interface for collecting runtime metrics.
//
// The metrics system tracks:
//   - Tool invocation counts and latencies, by tool and outcome
//   - Token consumption on remote (MCP) tool calls, by provider/model/kind
//
// Each Metrics instance owns a private Prometheus registry rather than the
// global DefaultRegisterer, so a process can run more than one (tests,
// multi-tenant embeddings) without collector-already-registered panics.
//
// Usage:
//
//	metrics := observability.NewMetrics(observability.MetricsOptions{})
//	start := time.Now()
//	metrics.RecordToolInvocation("fs_read", "success", time.Since(start))
type Metrics struct {
	registry     *prometheus.Registry
	redactLabels bool

	// ToolInvocations counts tool calls by tool name and outcome.
	// Labels: tool, status (success|error)
	ToolInvocations *prometheus.CounterVec

	// ToolDuration measures tool execution latency in seconds.
	// Labels: tool
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolDuration *prometheus.HistogramVec

	// LLMTokens counts tokens consumed by remote calls that report usage.
	// Labels: provider, model, token_type (prompt|completion)
	LLMTokens *prometheus.CounterVec
}

// MetricsOptions configures metric construction.
type MetricsOptions struct {
	// RedactLabels re-runs tool and provider/model label values through
	// internal/sanitize before they reach a label value. Defaults to true;
	// set DisableRedaction to opt out.
	DisableRedaction bool
}

// NewMetrics creates and registers the metric set on a private registry.
// This should be called once per runtime instance.
func NewMetrics(opts MetricsOptions) *Metrics {
	m := &Metrics{
		registry:     prometheus.NewRegistry(),
		redactLabels: !opts.DisableRedaction,
	}

	m.ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_invocations_total",
			Help: "Total number of tool invocations by tool name and outcome",
		},
		[]string{"tool", "status"},
	)

	m.ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tool_duration_seconds",
			Help:    "Duration of tool invocations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"tool"},
	)

	m.LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total number of tokens reported by remote tool/model calls",
		},
		[]string{"provider", "model", "token_type"},
	)

	m.registry.MustRegister(m.ToolInvocations, m.ToolDuration, m.LLMTokens)
	return m
}

// label runs v through the sanitizer when redaction is enabled. Tool names
// and model identifiers are operator-controlled, but a misbehaving plugin
// can smuggle a credential into either, and labels are the one place that
// data ends up durably exposed (scraped, retained, graphed).
func (m *Metrics) label(v string) string {
	if !m.redactLabels {
		return v
	}
	return sanitize.Sanitize(v)
}

// RecordToolInvocation records one completed tool call: its outcome and
// wall-clock duration.
func (m *Metrics) RecordToolInvocation(tool, status string, duration time.Duration) {
	tool = m.label(tool)
	m.ToolInvocations.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage reported by a remote call.
// tokenType is typically "prompt" or "completion".
func (m *Metrics) RecordLLMTokens(provider, model, tokenType string, count int) {
	if count <= 0 {
		return
	}
	provider = m.label(provider)
	model = m.label(model)
	m.LLMTokens.WithLabelValues(provider, model, tokenType).Add(float64(count))
}

// Handler returns an http.Handler exposing the metric set in Prometheus's
// line-oriented text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry backing this Metrics instance, for
// callers that need to register additional collectors alongside it.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
