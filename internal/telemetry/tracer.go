package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names
const (
	SpanConnection = "keystone.connection"
	SpanRequest    = "keystone.request"
)

// Attribute keys, following OpenTelemetry HTTP semantic conventions where
// one exists.
const (
	AttrClientAddr   = "client.address"
	AttrServerAddr   = "server.address"
	AttrHTTPMethod   = "http.request.method"
	AttrHTTPStatus   = "http.response.status_code"
	AttrURLPath      = "url.path"
	AttrProtoVersion = "network.protocol.version"
	AttrRequestID    = "keystone.request_id"
	AttrWorker       = "keystone.worker"
	AttrRequests     = "keystone.connection.requests"
)

func ClientAddr(addr string) attribute.KeyValue { return attribute.String(AttrClientAddr, addr) }

func ServerAddr(addr string) attribute.KeyValue { return attribute.String(AttrServerAddr, addr) }

func RequestID(id string) attribute.KeyValue { return attribute.String(AttrRequestID, id) }

func Worker(name string) attribute.KeyValue { return attribute.String(AttrWorker, name) }

func Requests(n int) attribute.KeyValue { return attribute.Int(AttrRequests, n) }

// StartConnectionSpan starts the span covering a whole accepted connection.
func StartConnectionSpan(ctx context.Context, clientAddr, serverAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanConnection,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ClientAddr(clientAddr), ServerAddr(serverAddr)),
	)
}

// StartRequestSpan starts the span for one request on a connection. A
// remote parent propagated in the request headers takes precedence over the
// connection span.
func StartRequestSpan(ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	ctx = ExtractHTTP(ctx, req.Header)
	return StartSpan(ctx, SpanRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrHTTPMethod, req.Method),
			attribute.String(AttrURLPath, req.URL.Path),
			attribute.String(AttrProtoVersion, req.Proto),
		),
	)
}

// EndRequestSpan records the response status and ends span. 5xx responses
// mark the span as failed.
func EndRequestSpan(span trace.Span, status int) {
	span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
	if status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	span.End()
}
