package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingNone(t *testing.T) {
	shutdown, err := InitTracing(DefaultTracingConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestInitTracingStdout(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "krow-test", Exporter: ExporterStdout, SamplingRate: 0})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := tp.Tracer(TracerName)

	_, ok := tr.Start(context.Background(), "ok")
	EndSpan(ok, nil)
	_, bad := tr.Start(context.Background(), "bad")
	EndSpan(bad, assert.AnError)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(2).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.5).Description(), sampler(0.5).Description())
}

func TestMessageAttributes(t *testing.T) {
	attrs := MessageAttributes("orders", 3, 42, 128)
	require.Len(t, attrs, 4)
	assert.Equal(t, "orders", attrs[0].Value.AsString())
	assert.Equal(t, int64(3), attrs[1].Value.AsInt64())
	assert.Equal(t, int64(42), attrs[2].Value.AsInt64())
	assert.Equal(t, int64(128), attrs[3].Value.AsInt64())
}
