// Package handler defines the contract between the server core and the
// application: a NewHandler factory asked for a Handler per request, and a
// Handler with a single entry point.
//
// Routing and middleware live behind these interfaces. FromHTTP adapts any
// net/http handler (a chi router, for instance) to the contract.
package handler

import (
	"context"
	"net/http"
)

// Handler serves one request. The returned response is written to the
// client; a non-nil error is turned into an error response (see Error).
type Handler interface {
	Handle(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// NewHandler manufactures handlers. It is shared by every connection and
// must be safe for concurrent use.
type NewHandler interface {
	NewHandler() (Handler, error)
}

// NewHandlerFunc adapts a function to NewHandler.
type NewHandlerFunc func() (Handler, error)

// NewHandler calls f().
func (f NewHandlerFunc) NewHandler() (Handler, error) {
	return f()
}

// Shared returns a factory that hands out h on every call. h must be safe
// for concurrent use.
func Shared(h Handler) NewHandler {
	return sharedHandler{h}
}

type sharedHandler struct{ h Handler }

func (s sharedHandler) NewHandler() (Handler, error) {
	return s.h, nil
}
