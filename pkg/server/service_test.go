package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/keystone/pkg/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, nh handler.NewHandler, req *http.Request) (*http.Response, string) {
	t.Helper()
	peer := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5555}
	svc := NewServiceFactory(nh).Connect(peer)
	resp, err := svc.Call(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func handle(fn handler.HandlerFunc) handler.NewHandler {
	return handler.Shared(fn)
}

func TestServiceCallPassesRequestContext(t *testing.T) {
	var (
		gotPeer net.Addr
		gotID   string
		gotAddr string
	)
	nh := handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		gotPeer, _ = handler.ClientAddr(ctx)
		gotID = handler.RequestID(ctx)
		gotAddr = req.RemoteAddr
		return handler.TextResponse(req, http.StatusOK, "hi"), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, body := call(t, nh, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi", body)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "abc-123", gotID)
	assert.Equal(t, "10.0.0.7:5555", gotPeer.String())
	assert.Equal(t, "10.0.0.7:5555", gotAddr)
}

func TestServiceCallGeneratesRequestID(t *testing.T) {
	nh := handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return handler.StatusResponse(req, http.StatusNoContent), nil
	})
	resp, _ := call(t, nh, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestServiceCallReplacesUnsafeRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		keep bool
	}{
		{name: "token", id: "req-42.a_b", keep: true},
		{name: "at limit", id: strings.Repeat("a", MaxRequestIDLength), keep: true},
		{name: "too long", id: strings.Repeat("a", MaxRequestIDLength+1)},
		{name: "space", id: "two words"},
		{name: "control byte", id: "id\x1b[31m"},
		{name: "non ascii", id: "id-\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			nh := handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
				seen = handler.RequestID(ctx)
				return handler.StatusResponse(req, http.StatusNoContent), nil
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[RequestIDHeader] = []string{tt.id}
			resp, _ := call(t, nh, req)

			got := resp.Header.Get(RequestIDHeader)
			assert.Equal(t, got, seen)
			if tt.keep {
				assert.Equal(t, tt.id, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err, "expected a generated id, got %q", got)
		})
	}
}

func TestServiceCallFailures(t *testing.T) {
	tests := []struct {
		name   string
		nh     handler.NewHandler
		status int
	}{
		{
			name: "handler error with status",
			nh: handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
				return nil, handler.Errorf(http.StatusNotFound, "no such thing")
			}),
			status: http.StatusNotFound,
		},
		{
			name: "plain handler error",
			nh: handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
				return nil, errors.New("database down")
			}),
			status: http.StatusInternalServerError,
		},
		{
			name: "panic",
			nh: handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
				panic("handler exploded")
			}),
			status: http.StatusInternalServerError,
		},
		{
			name: "nil response",
			nh: handle(func(ctx context.Context, req *http.Request) (*http.Response, error) {
				return nil, nil
			}),
			status: http.StatusInternalServerError,
		},
		{
			name: "factory error",
			nh: handler.NewHandlerFunc(func() (handler.Handler, error) {
				return nil, errors.New("pool exhausted")
			}),
			status: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, tt.nh, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, http.StatusText(tt.status)+"\n", body)
			assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
		})
	}
}

func TestServiceCallNewHandlerPerRequest(t *testing.T) {
	made := 0
	nh := handler.NewHandlerFunc(func() (handler.Handler, error) {
		made++
		return handler.HandlerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return handler.StatusResponse(req, http.StatusOK), nil
		}), nil
	})

	svc := NewServiceFactory(nh).Connect(nil)
	for range 3 {
		resp, err := svc.Call(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, 3, made)
	assert.Nil(t, svc.Peer())
}
