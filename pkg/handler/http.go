package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
)

// FromHTTP adapts a net/http handler. The handler's output is buffered and
// returned as a fixed-length response, so streaming handlers are served in
// one piece once they return. ctx replaces the request context.
func FromHTTP(h http.Handler) Handler {
	return httpAdapter{h}
}

type httpAdapter struct{ h http.Handler }

func (a httpAdapter) Handle(ctx context.Context, req *http.Request) (*http.Response, error) {
	w := &bufferedWriter{header: make(http.Header)}
	a.h.ServeHTTP(w, req.WithContext(ctx))
	return w.response(req), nil
}

// bufferedWriter is an http.ResponseWriter that records into memory.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

// Flush is a no-op; the body is sent when the handler returns.
func (w *bufferedWriter) Flush() {}

func (w *bufferedWriter) response(req *http.Request) *http.Response {
	if !w.wroteHeader {
		w.status = http.StatusOK
	}
	body := w.body.Bytes()
	if w.header.Get("Content-Type") == "" && len(body) > 0 {
		w.header.Set("Content-Type", http.DetectContentType(body))
	}
	w.header.Del("Content-Length")
	w.header.Del("Transfer-Encoding")

	return &http.Response{
		Status:        strconv.Itoa(w.status) + " " + http.StatusText(w.status),
		StatusCode:    w.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
