//go:build unix

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestParseAcceptPolicy(t *testing.T) {
	for in, want := range map[string]AcceptPolicy{"": AcceptFatal, "fatal": AcceptFatal, "retry": AcceptRetryTemporary} {
		p, ok := ParseAcceptPolicy(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, p)
	}
	_, ok := ParseAcceptPolicy("sometimes")
	assert.False(t, ok)
	assert.Equal(t, "retry", AcceptRetryTemporary.String())
}

func TestAcceptPolicyRetryable(t *testing.T) {
	emfile := &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}

	assert.False(t, AcceptFatal.retryable(emfile))
	assert.False(t, AcceptFatal.retryable(timeoutErr{}))

	assert.True(t, AcceptRetryTemporary.retryable(emfile))
	assert.True(t, AcceptRetryTemporary.retryable(fmt.Errorf("wrapped: %w", timeoutErr{})))
	assert.False(t, AcceptRetryTemporary.retryable(net.ErrClosed))
	assert.False(t, AcceptRetryTemporary.retryable(errors.New("permanent")))
}

func TestAcceptBackoff(t *testing.T) {
	d := acceptBackoff(0)
	assert.Equal(t, 5*time.Millisecond, d)
	for range 20 {
		d = acceptBackoff(d)
	}
	assert.Equal(t, time.Second, d)
}

func TestAcceptRetryTemporary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newRecordingMetrics()
	s := New(echoHandler(), Config{Metrics: m, AcceptPolicy: AcceptRetryTemporary})

	emfile := &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
	fake := newFakeListener(emfile, emfile, nil)
	s.mu.Lock()
	s.listener = newListener(fake)
	s.mu.Unlock()
	exec, done := serveFake(s, ctx, s.listener)

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.accepts == 1
	}, 5*time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, waitDone(t, done))
	require.NoError(t, exec.Drain(context.Background()))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 2, m.acceptErrors[false])
	assert.Zero(t, m.acceptErrors[true])
}
