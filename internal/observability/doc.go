// Package observability provides metrics and distributed tracing for the
// tool-execution runtime.
//
// # Overview
//
//  1. Metrics - tool invocation counts, durations, and token usage via Prometheus
//  2. Tracing - one root span per agent turn and one child span per dispatched
//     tool call, via OpenTelemetry
//
// # Metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics(observability.MetricsOptions{})
//	start := time.Now()
//	// ... dispatch tool ...
//	metrics.RecordToolInvocation("fs_read", "success", time.Since(start))
//	metrics.RecordLLMTokens("anthropic", "claude-3-opus", "completion", 512)
//
// Tool and provider/model label values are passed through internal/sanitize
// before becoming label values, unless MetricsOptions.DisableRedaction is set.
//
// # Tracing
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "toolcore",
//	    Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, turnSpan := tracer.TraceTurn(ctx, state.SessionID, state.TurnCount)
//	defer turnSpan.End()
//
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, call.Tool)
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// With no OTLP endpoint configured, NewTracer returns a tracer backed by the
// global no-op TracerProvider: spans are created and can be inspected in
// tests, but nothing is exported.
package observability
