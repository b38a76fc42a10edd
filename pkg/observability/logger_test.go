package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/revchurn/pkg/observability"
)

func jsonRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandlerAddsServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "revchurn", "prod"))

	logger.Info("hello")

	record := jsonRecord(t, &buf)
	assert.Equal(t, "revchurn", record["service"])
	assert.Equal(t, "prod", record["env"])
	assert.Equal(t, "hello", record["msg"])
}

func TestTracingHandlerOmitsEmptyEnv(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "revchurn", ""))

	logger.Info("hello")

	record := jsonRecord(t, &buf)
	assert.NotContains(t, record, "env")
}

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "revchurn", "dev"))

	tp := sdktrace.NewTracerProvider()

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.InfoContext(ctx, "inside span")

	record := jsonRecord(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
}

func TestTracingHandlerNoTraceOutsideSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "revchurn", "dev"))

	logger.InfoContext(context.Background(), "outside span")

	record := jsonRecord(t, &buf)
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "span_id")
}

func TestInitNoopWithoutEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.Config{
		LogLevel:  "info",
		LogFormat: "text",
	})
	require.NoError(t, err)
	require.NotNil(t, providers.Logger)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestPipelineMetricsNilReceiver(t *testing.T) {
	t.Parallel()

	var metrics *observability.PipelineMetrics

	// Recording on a nil receiver is a no-op, not a panic.
	metrics.RecordRevision(context.Background(), observability.StatusFolded)
	metrics.RecordSourceCall(context.Background(), "diff", 0)
	metrics.RecordParseFailure(context.Background())
}
