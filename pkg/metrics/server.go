package metrics

import (
	"time"
)

// ServerMetrics provides observability for the accept loop and the
// per-connection HTTP serving.
//
// This interface is optional: pass nil to disable metrics collection.
//
// Example usage:
//
//	m := prometheus.NewServerMetrics("app")
//	srv := server.New(nh, server.Config{Metrics: m})
type ServerMetrics interface {
	// RecordAccept counts an accepted socket.
	RecordAccept()

	// RecordAcceptError counts a failed accept. fatal is true when the
	// error stopped the accept loop.
	RecordAcceptError(fatal bool)

	// RecordConnectionStart increments the open connection gauge.
	RecordConnectionStart()

	// RecordConnectionEnd decrements the open connection gauge and observes
	// how many requests the connection served and for how long it lived.
	RecordConnectionEnd(requests int, lifetime time.Duration)

	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - method: HTTP method ("GET", "POST", ...)
	//   - status: response status code written to the client
	//   - duration: time from decoded request to encoded response
	RecordRequest(method string, status int, duration time.Duration)

	// RecordDecodeError counts requests that could not be parsed.
	RecordDecodeError()
}
