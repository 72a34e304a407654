package server

import (
	"errors"
	"fmt"
)

var (
	// ErrResolve means the listen address could not be parsed or looked up.
	ErrResolve = errors.New("unable to resolve listener address")

	// ErrNoAddress means resolution succeeded but produced no candidates.
	ErrNoAddress = errors.New("listener address resolved to no candidates")

	// ErrBind means the TCP listener could not be opened.
	ErrBind = errors.New("unable to open TCP listener")

	// ErrAccept means the listener failed in a way the accept policy treats as fatal.
	ErrAccept = errors.New("socket error while accepting")

	// ErrAlreadyStarted is returned when a Server is started twice.
	ErrAlreadyStarted = errors.New("server already started")

	// ErrShutdownTimeout means connections were force-closed because the
	// drain did not finish within Config.ShutdownTimeout.
	ErrShutdownTimeout = errors.New("shutdown timed out, connections force-closed")
)

// StartupError is a fatal failure before the accept loop begins: address
// resolution or binding. Err wraps ErrResolve, ErrNoAddress or ErrBind
// together with the underlying cause.
type StartupError struct {
	Op   string // "resolve" or "bind"
	Addr string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// AcceptError is a fatal failure of a running listener.
type AcceptError struct {
	Addr string
	Err  error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("%v on %s: %v", ErrAccept, e.Addr, e.Err)
}

func (e *AcceptError) Unwrap() []error {
	return []error{ErrAccept, e.Err}
}
