package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across log statements so output can be queried.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Server lifecycle
	KeyAddress = "address" // listen address, always shaped http://host:port
	KeyState   = "state"   // orchestrator state
	KeyFrom    = "from"    // previous state on transitions
	KeyServer  = "server"  // server name (app, metrics)

	// Executor
	KeyWorker   = "worker"    // worker label, e.g. keystone-worker-3
	KeyWorkers  = "workers"   // configured worker count
	KeyInflight = "inflight"  // tasks submitted and not yet finished
	KeyTaskID   = "task_id"
	KeyTaskKind = "task_kind" // accept, connection, ...

	// Connection
	KeyClientAddr   = "client_addr"
	KeyConnectionID = "connection_id"
	KeyRequests     = "requests" // requests served on a connection
	KeyConnections  = "connections"

	// Request
	KeyRequestID = "request_id"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyProto     = "proto"
	KeyStatus    = "status"
	KeyBytes     = "bytes"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
	KeyBackoff    = "backoff"
	KeyStack      = "stack"
	KeyPanic      = "panic"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Address formats a listen address the way the startup line reports it.
func Address(addr string) slog.Attr { return slog.String(KeyAddress, "http://"+addr) }

func State(s string) slog.Attr { return slog.String(KeyState, s) }

func Worker(name string) slog.Attr { return slog.String(KeyWorker, name) }

func Workers(n int) slog.Attr { return slog.Int(KeyWorkers, n) }

func Inflight(n int64) slog.Attr { return slog.Int64(KeyInflight, n) }

func ClientAddr(addr string) slog.Attr { return slog.String(KeyClientAddr, addr) }

func ConnectionID(id uint64) slog.Attr { return slog.Uint64(KeyConnectionID, id) }

func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

func Method(m string) slog.Attr { return slog.String(KeyMethod, m) }

func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns an error attribute; a nil error yields an empty attr that handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
