package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// NewResponse builds a complete response to req with a fixed-length body.
// An empty contentType leaves Content-Type unset.
func NewResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	resp := &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

// TextResponse builds a text/plain response.
func TextResponse(req *http.Request, status int, text string) *http.Response {
	return NewResponse(req, status, "text/plain; charset=utf-8", []byte(text))
}

// StatusResponse builds a text/plain response whose body is the status text.
func StatusResponse(req *http.Request, status int) *http.Response {
	return TextResponse(req, status, http.StatusText(status)+"\n")
}
