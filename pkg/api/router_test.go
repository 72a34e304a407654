package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/keystone/pkg/api/handlers"
	"github.com/marmos91/keystone/pkg/handler"
	"github.com/marmos91/keystone/pkg/metrics"
)

func decode(t *testing.T, body io.Reader) handlers.Response {
	t.Helper()
	var resp handlers.Response
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

// serve runs req through the Keystone handler adapter the way the server
// does, with a request id and peer address in the context.
func serve(t *testing.T, nh handler.NewHandler, req *http.Request) *http.Response {
	t.Helper()
	h, err := nh.NewHandler()
	require.NoError(t, err)

	ctx := handler.WithRequestID(context.Background(), "req-1")
	ctx = handler.WithClientAddr(ctx, &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 4242})
	resp, err := h.Handle(ctx, req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGreeting(t *testing.T) {
	resp := serve(t, NewHandler(Options{Service: "demo"}), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body := decode(t, resp.Body)
	assert.Equal(t, "ok", body.Status)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok, "data is %T", body.Data)
	assert.Equal(t, "demo", data["service"])
	assert.Equal(t, "req-1", data["request_id"])
	assert.Equal(t, "10.0.0.7:4242", data["client_addr"])
}

func TestEcho(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("ping"))
	req.Header.Set("Content-Type", "text/plain")

	resp := serve(t, NewHandler(Options{}), req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(4), resp.ContentLength)

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))
}

func TestEchoTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64)))

	resp := serve(t, NewHandler(Options{MaxEchoBytes: 16}), req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "error", decode(t, resp.Body).Status)
}

func TestEchoWrongMethod(t *testing.T) {
	resp := serve(t, NewHandler(Options{}), httptest.NewRequest(http.MethodGet, "/echo", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	resp := serve(t, NewHandler(Options{}), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		ready  handlers.ReadinessFunc
		status int
		state  string
		errMsg string
	}{
		{"liveness", "/health", nil, http.StatusOK, "healthy", ""},
		{"ready", "/health/ready", func() error { return nil }, http.StatusOK, "healthy", ""},
		{"draining", "/health/ready", func() error { return errors.New("server is draining") }, http.StatusServiceUnavailable, "unhealthy", "server is draining"},
		{"unconfigured", "/health/ready", nil, http.StatusServiceUnavailable, "unhealthy", "readiness not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(Options{Ready: tt.ready}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec.Body)
			assert.Equal(t, tt.state, body.Status)
			assert.Equal(t, tt.errMsg, body.Error)
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	metrics.Reset()
	resp := serve(t, MetricsHandler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	resp = serve(t, MetricsHandler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(got), "go_goroutines")
}
