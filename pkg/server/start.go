package server

import (
	"context"
	"runtime"

	"github.com/marmos91/keystone/pkg/executor"
	"github.com/marmos91/keystone/pkg/handler"
	"github.com/marmos91/keystone/pkg/metrics/prometheus"
)

// Start serves spec on a new executor with one worker per CPU and blocks
// until the server has stopped. Startup failures (resolution, bind) and
// fatal accept errors are returned. Cancelling ctx shuts the server down
// gracefully and Start returns nil once every connection has finished.
func (s *Server) Start(ctx context.Context, spec AddrSpec) error {
	return s.StartWithThreads(ctx, spec, runtime.NumCPU())
}

// StartWithThreads is Start with an executor of n workers. n <= 0 means one
// per CPU.
func (s *Server) StartWithThreads(ctx context.Context, spec AddrSpec, n int) error {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	exec := executor.New(executor.Config{
		Workers:    n,
		NamePrefix: executor.DefaultNamePrefix,
		Metrics:    prometheus.NewExecutorMetrics(s.cfg.Name, n),
	})
	return s.run(ctx, spec, exec)
}

// StartOnExecutor submits the server to an executor the caller owns and
// returns immediately. Errors are reported through Config.OnFatal; use Addr
// to wait for the listener. The caller drains exec to wait for shutdown.
// A server whose submission was rejected stays stopped and cannot be
// started again.
func (s *Server) StartOnExecutor(ctx context.Context, spec AddrSpec, exec *executor.Executor) {
	if err := s.claim(); err != nil {
		s.cfg.OnFatal(err)
		return
	}
	if err := exec.Spawn(s.launch(ctx, spec)); err != nil {
		s.markReady(nil, err)
		s.setState(StateStopped)
		s.cfg.OnFatal(err)
	}
}

// Start creates a server for nh with default settings and runs it with
// Server.Start.
func Start(ctx context.Context, spec AddrSpec, nh handler.NewHandler) error {
	return New(nh, Config{Metrics: prometheus.NewServerMetrics("keystone")}).Start(ctx, spec)
}

// StartWithThreads creates a server for nh with default settings and runs
// it with Server.StartWithThreads.
func StartWithThreads(ctx context.Context, spec AddrSpec, nh handler.NewHandler, n int) error {
	return New(nh, Config{Metrics: prometheus.NewServerMetrics("keystone")}).StartWithThreads(ctx, spec, n)
}

// StartOnExecutor creates a server for nh with default settings, submits it
// to exec and returns it.
func StartOnExecutor(ctx context.Context, spec AddrSpec, nh handler.NewHandler, exec *executor.Executor) *Server {
	s := New(nh, Config{Metrics: prometheus.NewServerMetrics("keystone")})
	s.StartOnExecutor(ctx, spec, exec)
	return s
}
