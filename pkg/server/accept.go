package server

import (
	"errors"
	"net"
	"time"
)

// AcceptPolicy decides what the accept loop does with an accept error.
type AcceptPolicy int

const (
	// AcceptFatal stops the server on any accept error.
	AcceptFatal AcceptPolicy = iota

	// AcceptRetryTemporary logs and retries, with backoff, errors caused by
	// resource exhaustion or transient conditions (EMFILE, ENFILE, ENOBUFS,
	// ENOMEM, ECONNABORTED, EINTR, timeouts). Anything else stays fatal.
	AcceptRetryTemporary
)

func (p AcceptPolicy) String() string {
	switch p {
	case AcceptFatal:
		return "fatal"
	case AcceptRetryTemporary:
		return "retry"
	default:
		return "unknown"
	}
}

// ParseAcceptPolicy maps "fatal" and "retry" to policies.
func ParseAcceptPolicy(s string) (AcceptPolicy, bool) {
	switch s {
	case "", "fatal":
		return AcceptFatal, true
	case "retry":
		return AcceptRetryTemporary, true
	}
	return AcceptFatal, false
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// retryable reports whether err should be retried under p.
func (p AcceptPolicy) retryable(err error) bool {
	if p != AcceptRetryTemporary || errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return isTemporaryErrno(err)
}

// acceptBackoff doubles the previous delay, bounded by [min, max].
func acceptBackoff(prev time.Duration) time.Duration {
	if prev < minAcceptBackoff {
		return minAcceptBackoff
	}
	return min(prev*2, maxAcceptBackoff)
}
