package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordSpans installs an in-memory tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { setTracer(noop.NewTracerProvider().Tracer(instrumentationName), false) })
	return rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "keystone", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)

	pcfg := DefaultProfilingConfig()
	assert.False(t, pcfg.Enabled)
	assert.Contains(t, pcfg.ProfileTypes, "cpu")
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := StartSpan(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestRequestSpan(t *testing.T) {
	rec := recordSpans(t)
	assert.True(t, IsEnabled())

	ctx, conn := StartConnectionSpan(context.Background(), "10.0.0.1:5000", "127.0.0.1:7878")
	req := httptest.NewRequest(http.MethodPost, "/echo", nil)

	reqCtx, span := StartRequestSpan(ctx, req)
	SetAttributes(reqCtx, RequestID("req-1"))
	assert.NotEmpty(t, TraceID(reqCtx))
	assert.NotEmpty(t, SpanID(reqCtx))
	assert.Equal(t, TraceID(ctx), TraceID(reqCtx), "request span is a child of the connection span")

	EndRequestSpan(span, http.StatusInternalServerError)
	conn.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, SpanRequest, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	v, ok := attrValue(spans[0].Attributes(), AttrHTTPStatus)
	require.True(t, ok)
	assert.Equal(t, int64(500), v.AsInt64())
	v, ok = attrValue(spans[0].Attributes(), AttrRequestID)
	require.True(t, ok)
	assert.Equal(t, "req-1", v.AsString())

	assert.Equal(t, SpanConnection, spans[1].Name())
}

func TestRequestSpanRemoteParent(t *testing.T) {
	recordSpans(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	ctx, span := StartRequestSpan(context.Background(), req)
	defer span.End()
	assert.Equal(t, traceID, TraceID(ctx))
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "op")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))
}

func TestParseProfileType(t *testing.T) {
	pt, err := parseProfileType(" CPU ")
	require.NoError(t, err)
	assert.Equal(t, pyroscope.ProfileCPU, pt)

	_, err = parseProfileType("disk")
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	cfg := DefaultProfilingConfig()
	cfg.Enabled = true
	cfg.ProfileTypes = []string{"cpu", "disk"}
	_, err := InitProfiling(cfg)
	assert.ErrorContains(t, err, "disk")
}
