package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestShared(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return TextResponse(req, http.StatusOK, "ok"), nil
	})
	nh := Shared(h)

	a, err := nh.NewHandler()
	require.NoError(t, err)
	b, err := nh.NewHandler()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%p", a), fmt.Sprintf("%p", b))
}

func TestNewHandlerFunc(t *testing.T) {
	calls := 0
	nh := NewHandlerFunc(func() (Handler, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("exhausted")
		}
		return HandlerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return StatusResponse(req, http.StatusNoContent), nil
		}), nil
	})

	_, err := nh.NewHandler()
	require.NoError(t, err)
	_, err = nh.NewHandler()
	assert.EqualError(t, err, "exhausted")
}

func TestNewResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := NewResponse(req, http.StatusCreated, "application/json", []byte(`{"a":1}`))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "201 Created", resp.Status)
	assert.Equal(t, int64(7), resp.ContentLength)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Same(t, req, resp.Request)
	assert.Equal(t, `{"a":1}`, readBody(t, resp))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"PlainError", errors.New("boom"), http.StatusInternalServerError},
		{"HandlerError", NewError(http.StatusNotFound, errors.New("missing")), http.StatusNotFound},
		{"Wrapped", fmt.Errorf("lookup: %w", Errorf(http.StatusConflict, "version %d", 3)), http.StatusConflict},
		{"NotAnErrorStatus", NewError(http.StatusOK, nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	inner := errors.New("no such key")
	err := NewError(http.StatusNotFound, inner)
	assert.Equal(t, "404 Not Found: no such key", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "Bad Gateway", NewError(http.StatusBadGateway, nil).Error())
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	_, ok := ClientAddr(ctx)
	assert.False(t, ok)
	assert.Empty(t, RequestID(ctx))

	peer := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4242}
	ctx = WithRequestID(WithClientAddr(ctx, peer), "abc")
	got, ok := ClientAddr(ctx)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:4242", got.String())
	assert.Equal(t, "abc", RequestID(ctx))
}

func TestFromHTTP(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/hello/{name}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-Id", RequestID(req.Context()))
		fmt.Fprintf(w, "hello %s", chi.URLParam(req, "name"))
	})
	r.Post("/teapot", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // ignored
	})
	h := FromHTTP(r)

	t.Run("BodyAndHeaders", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-7")
		req := httptest.NewRequest(http.MethodGet, "/hello/keystone", nil)

		resp, err := h.Handle(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "req-7", resp.Header.Get("X-Id"))
		assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
		assert.Equal(t, int64(len("hello keystone")), resp.ContentLength)
		assert.Equal(t, "hello keystone", readBody(t, resp))
	})

	t.Run("FirstWriteHeaderWins", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodPost, "/teapot", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
		assert.Zero(t, resp.ContentLength)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/nope", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
