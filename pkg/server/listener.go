package server

import (
	"context"
	"fmt"
	"iter"
	"net"
	"sync"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/pkg/executor"
)

// Listener owns a bound TCP socket. Only the accept loop reads from it;
// Close may be called from anywhere.
type Listener struct {
	ln        net.Listener
	addr      net.Addr
	closeOnce sync.Once
	closeErr  error
}

// Bind opens a TCP listener on addr. Port 0 binds an ephemeral port; read
// it back with LocalAddr.
func Bind(addr *net.TCPAddr) (*Listener, error) {
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, &StartupError{Op: "bind", Addr: addr.String(), Err: fmt.Errorf("%w: %w", ErrBind, err)}
	}
	return newListener(ln), nil
}

func newListener(ln net.Listener) *Listener {
	return &Listener{ln: ln, addr: ln.Addr()}
}

// LocalAddr returns the address the socket is bound to.
func (l *Listener) LocalAddr() net.Addr {
	return l.addr
}

// Incoming yields accepted sockets in order, blocking between them. Every
// accept error is yielded too; the sequence continues for as long as the
// consumer keeps ranging. TCP_NODELAY is set on every socket. When ctx
// belongs to an executor task the worker is released while waiting.
func (l *Listener) Incoming(ctx context.Context) iter.Seq2[net.Conn, error] {
	return func(yield func(net.Conn, error) bool) {
		for {
			var conn net.Conn
			err := executor.Park(ctx, func() (err error) {
				conn, err = l.ln.Accept()
				return err
			})
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				if err := tcp.SetNoDelay(true); err != nil {
					logger.Debug("Failed to set TCP_NODELAY",
						logger.ClientAddr(addrString(conn.RemoteAddr())),
						logger.Err(err))
				}
			}
			if !yield(conn, nil) {
				return
			}
		}
	}
}

// Close stops the listener. Blocked accepts return net.ErrClosed.
// It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}
