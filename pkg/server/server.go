package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/pkg/executor"
	"github.com/marmos91/keystone/pkg/handler"
	"github.com/marmos91/keystone/pkg/metrics"
)

// Config configures a Server. The zero value is usable.
type Config struct {
	// Name identifies the server in logs and metrics. Default "keystone".
	Name string

	// Protocol configures HTTP/1.x serving of accepted connections.
	Protocol ProtocolConfig

	// AcceptPolicy decides which accept errors stop the server.
	AcceptPolicy AcceptPolicy

	// ShutdownTimeout bounds how long connections may keep running after
	// ctx is cancelled before they are force-closed. Zero waits forever.
	ShutdownTimeout time.Duration

	// Metrics is optional.
	Metrics metrics.ServerMetrics

	// OnFatal receives errors that end a server started with
	// StartOnExecutor, where no caller is left to return them to. The
	// default logs the error and exits the process with status 1.
	OnFatal func(error)
}

func exitOnFatal(err error) {
	logger.Error("Fatal server error, exiting", logger.Err(err))
	os.Exit(1)
}

// Server binds one address and serves it until its context is cancelled
// or the listener fails.
type Server struct {
	cfg      Config
	factory  *ServiceFactory
	protocol *Protocol
	state    stateMachine
	tracker  *tracker
	started  atomic.Bool
	conns    atomic.Uint64

	mu       sync.Mutex
	listener *Listener
	ready     chan struct{}
	readyErr  error
	readyOnce sync.Once
	stopOnce sync.Once

	forceTimer *time.Timer
	forced     atomic.Bool
}

// New creates a server dispatching requests to handlers made by nh.
func New(nh handler.NewHandler, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "keystone"
	}
	if cfg.OnFatal == nil {
		cfg.OnFatal = exitOnFatal
	}
	return &Server{
		cfg:      cfg,
		factory:  NewServiceFactory(nh),
		protocol: NewProtocol(cfg.Protocol, cfg.Metrics),
		tracker:  newTracker(),
		ready:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return s.state.load()
}

// Addr blocks until the listener is bound and returns its address, or the
// startup error if binding failed.
func (s *Server) Addr() (net.Addr, error) {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyErr != nil {
		return nil, s.readyErr
	}
	return s.listener.LocalAddr(), nil
}

// Connections returns the number of connections currently being served.
func (s *Server) Connections() int {
	return s.tracker.count()
}

func (s *Server) setState(next State) {
	if from, ok := s.state.advance(next); ok {
		logger.Debug("Server state changed",
			logger.KeyServer, s.cfg.Name,
			logger.KeyFrom, from.String(),
			logger.KeyState, next.String())
	}
}

// claim marks the server as started; each server starts once.
func (s *Server) claim() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	return nil
}

// markReady publishes the outcome of binding. Only the first call counts.
func (s *Server) markReady(l *Listener, err error) {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.listener, s.readyErr = l, err
		s.mu.Unlock()
		close(s.ready)
	})
}

// bind resolves spec and opens the listener.
func (s *Server) bind(ctx context.Context, spec AddrSpec) (*Listener, error) {
	addr, err := Resolve(ctx, spec)
	if err != nil {
		s.markReady(nil, err)
		return nil, err
	}
	s.setState(StateAddressResolved)

	l, err := Bind(addr)
	if err != nil {
		s.markReady(nil, err)
		return nil, err
	}
	s.setState(StateListenerBound)
	s.markReady(l, nil)

	logger.Info("Keystone listening",
		logger.KeyServer, s.cfg.Name,
		logger.Address(l.LocalAddr().String()))
	return l, nil
}

// Init returns the task that resolves spec, binds, and runs the accept
// loop. Failures are passed to Config.OnFatal before the task returns.
// Cancelling ctx stops accepting and starts the graceful shutdown.
func (s *Server) Init(ctx context.Context, spec AddrSpec) executor.Task {
	return func(taskCtx context.Context) error {
		if err := s.claim(); err != nil {
			return err
		}
		return s.launch(ctx, spec)(taskCtx)
	}
}

// launch is Init for a server that has already been claimed.
func (s *Server) launch(ctx context.Context, spec AddrSpec) executor.Task {
	return func(taskCtx context.Context) error {
		l, err := s.bind(ctx, spec)
		if err == nil {
			err = s.serve(ctx, taskCtx, l)
		}
		s.setState(StateStopped)
		if err != nil {
			s.cfg.OnFatal(err)
		}
		return err
	}
}

// serve runs the accept loop on l, then waits in Draining until every
// connection it spawned has finished. lifeCtx ends the server; taskCtx is
// the executor context used to spawn connection tasks.
func (s *Server) serve(lifeCtx, taskCtx context.Context, l *Listener) error {
	stop := context.AfterFunc(lifeCtx, s.shutdown)
	defer stop()
	if s.tracker.stopping() {
		_ = l.Close()
	}

	s.setState(StateAccepting)
	err := s.acceptLoop(taskCtx, l)
	s.shutdown()
	s.setState(StateDraining)

	_ = executor.Park(taskCtx, func() error {
		s.tracker.wait()
		return nil
	})
	s.stopForceTimer()
	logger.Debug("Server drained", logger.KeyServer, s.cfg.Name)
	return err
}

func (s *Server) acceptLoop(ctx context.Context, l *Listener) error {
	var (
		backoff  time.Duration
		attempts int
	)
	for conn, err := range l.Incoming(ctx) {
		if err != nil {
			if s.tracker.stopping() {
				return nil
			}
			if s.cfg.AcceptPolicy.retryable(err) {
				backoff = acceptBackoff(backoff)
				attempts++
				if s.cfg.Metrics != nil {
					s.cfg.Metrics.RecordAcceptError(false)
				}
				logger.Warn("Temporary accept error, retrying",
					logger.KeyServer, s.cfg.Name,
					logger.Attempt(attempts),
					logger.KeyBackoff, backoff,
					logger.Err(err))
				if perr := executor.Park(ctx, func() error {
					time.Sleep(backoff)
					return nil
				}); perr != nil {
					return perr
				}
				continue
			}

			if s.cfg.Metrics != nil {
				s.cfg.Metrics.RecordAcceptError(true)
			}
			logger.Error("Socket error while accepting",
				logger.KeyServer, s.cfg.Name,
				logger.KeyAddress, l.LocalAddr().String(),
				logger.Err(err))
			_ = l.Close()
			return &AcceptError{Addr: l.LocalAddr().String(), Err: err}
		}
		backoff, attempts = 0, 0

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordAccept()
		}
		s.dispatch(ctx, conn)
	}
	return nil
}

// dispatch hands an accepted socket to its own task and returns at once.
func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	svc := s.factory.Connect(conn.RemoteAddr())
	id := s.conns.Add(1)
	task := func(taskCtx context.Context) error {
		return s.protocol.serve(taskCtx, conn, svc, s.tracker)
	}
	s.tracker.reserve()
	if err := executor.Spawn(ctx, task); err != nil {
		s.tracker.release()
		logger.Warn("Dropping connection, no executor to run it",
			logger.KeyServer, s.cfg.Name,
			logger.ConnectionID(id),
			logger.ClientAddr(addrString(conn.RemoteAddr())),
			logger.Err(err))
		_ = conn.Close()
	}
}

// shutdown closes the listener and wakes idle connections. Busy
// connections finish their current request first; with a ShutdownTimeout
// they are closed once it expires.
func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		logger.Info("Keystone shutting down",
			logger.KeyServer, s.cfg.Name,
			logger.KeyConnections, s.tracker.count())
		s.tracker.shutdown()
		s.mu.Lock()
		l := s.listener
		if s.cfg.ShutdownTimeout > 0 {
			s.forceTimer = time.AfterFunc(s.cfg.ShutdownTimeout, s.forceClose)
		}
		s.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
	})
}

func (s *Server) forceClose() {
	n := s.tracker.forceClose()
	if n == 0 {
		return
	}
	s.forced.Store(true)
	logger.Warn("Shutdown timed out, closing connections",
		logger.KeyServer, s.cfg.Name,
		logger.KeyConnections, n)
}

func (s *Server) stopForceTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceTimer != nil {
		s.forceTimer.Stop()
	}
}

// ShutdownTimedOut reports whether shutdown had to force-close connections
// that outlived ShutdownTimeout.
func (s *Server) ShutdownTimedOut() bool {
	return s.forced.Load()
}

// Shutdown stops a running server the same way cancelling its context does.
func (s *Server) Shutdown() {
	s.shutdown()
}

// run is the blocking path shared by Start and StartWithThreads: bind
// synchronously so startup errors are returned, spawn the accept loop, then
// drain exec.
func (s *Server) run(ctx context.Context, spec AddrSpec, exec *executor.Executor) error {
	if err := s.claim(); err != nil {
		return err
	}
	l, err := s.bind(ctx, spec)
	if err != nil {
		s.setState(StateStopped)
		return err
	}

	var acceptErr error
	if err := exec.Spawn(func(taskCtx context.Context) error {
		acceptErr = s.serve(ctx, taskCtx, l)
		return acceptErr
	}); err != nil {
		_ = l.Close()
		s.setState(StateStopped)
		return fmt.Errorf("spawn accept loop: %w", err)
	}

	// Connection tasks are nested spawns, so closing exec to outside
	// submissions right away does not affect them.
	err = exec.Drain(context.Background())
	s.setState(StateStopped)
	if s.forced.Load() {
		err = errors.Join(err, ErrShutdownTimeout)
	}
	return errors.Join(acceptErr, err)
}
