package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTracer_NoEndpointReturnsNoopTracer(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	require.NotNil(t, tracer)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := tracer.TraceTurn(context.Background(), "sess-1", 1)
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid(), "no-op tracer spans carry no recordable context")
}

func TestTraceTurn_SetsSessionAndTurnAttributes(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	defer shutdown(context.Background())

	_, span := tracer.TraceTurn(context.Background(), "sess-42", 3)
	defer span.End()
	assert.NotNil(t, span)
}

func TestTraceToolExecution_ChildOfTurn(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	defer shutdown(context.Background())

	ctx, turnSpan := tracer.TraceTurn(context.Background(), "sess-1", 1)
	defer turnSpan.End()

	_, toolSpan := tracer.TraceToolExecution(ctx, "fs_read")
	defer toolSpan.End()
	assert.NotNil(t, toolSpan)
}

func TestRecordError_SetsErrorStatus(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	defer shutdown(context.Background())

	span := tracer.StartSpan(context.Background(), "op")
	tracer.RecordError(span, errors.New("boom"))
	span.End()
}

func TestRecordError_NilErrorIsNoop(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	defer shutdown(context.Background())

	span := tracer.StartSpan(context.Background(), "op")
	tracer.RecordError(span, nil)
	span.End()
}

func TestWithSpan_PropagatesFunctionError(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "toolcore-test"})
	defer shutdown(context.Background())

	wantErr := errors.New("tool failed")
	err := WithSpan(context.Background(), tracer, "op", func(ctx context.Context, span trace.Span) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestGetTraceID_EmptyWithoutActiveSpan(t *testing.T) {
	assert.Equal(t, "", GetTraceID(context.Background()))
	assert.Equal(t, "", GetSpanID(context.Background()))
}

func TestMapCarrier_SetGetKeys(t *testing.T) {
	c := make(MapCarrier)
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Contains(t, c.Keys(), "traceparent")
}
