package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/keystone/pkg/handler"
)

// DefaultMaxEchoBytes caps the body POST /echo sends back.
const DefaultMaxEchoBytes = 1 << 20

// DemoHandler serves the greeting and echo endpoints.
type DemoHandler struct {
	service  string
	maxBytes int64
}

// NewDemoHandler creates the demo handler. maxBytes <= 0 uses
// DefaultMaxEchoBytes.
func NewDemoHandler(service string, maxBytes int64) *DemoHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEchoBytes
	}
	return &DemoHandler{service: service, maxBytes: maxBytes}
}

// Greeting handles GET / with the request id and the peer address seen by
// the server.
func (h *DemoHandler) Greeting(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"service":    h.service,
		"request_id": handler.RequestID(r.Context()),
	}
	if addr, ok := handler.ClientAddr(r.Context()); ok {
		data["client_addr"] = addr.String()
	}
	writeJSON(w, http.StatusOK, okResponse(data))
}

// Echo handles POST /echo by sending the request body back unchanged.
// Bodies above the limit get 413.
func (h *DemoHandler) Echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("failed to read request body"))
		return
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
