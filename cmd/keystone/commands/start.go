package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/internal/telemetry"
	"github.com/marmos91/keystone/pkg/api"
	"github.com/marmos91/keystone/pkg/config"
	"github.com/marmos91/keystone/pkg/executor"
	"github.com/marmos91/keystone/pkg/metrics"
	"github.com/marmos91/keystone/pkg/metrics/prometheus"
	"github.com/marmos91/keystone/pkg/server"
)

var startThreads int

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Keystone server",
	Long: `Start the Keystone server in the foreground.

The demo application is served on server.address. With metrics enabled a
second server exposes Prometheus metrics on metrics.address; both run on
the same executor.

SIGINT or SIGTERM starts a graceful shutdown: listeners close, in-flight
requests finish, and connections still open after server.shutdown_timeout
are closed.

Examples:
  # Start with the default config location
  keystone start

  # Start with a custom config file and 4 workers
  keystone start --config /etc/keystone/config.yaml --threads 4

  # Use environment variables to override config
  KEYSTONE_LOGGING_LEVEL=DEBUG keystone start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&startThreads, "threads", 0, "executor workers, overrides server.threads (0: use config)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "keystone",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "keystone",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	// The registry must exist before any metrics constructor runs.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	threads := cfg.Server.Threads
	if startThreads > 0 {
		threads = startThreads
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	logger.Info("Configuration loaded", "source", configSource(GetConfigFile()))
	logger.Info("Starting Keystone",
		"version", Version,
		logger.Workers(threads),
		"telemetry", telemetry.IsEnabled(),
		"metrics", cfg.Metrics.Enabled)

	exec := executor.New(executor.Config{
		Workers:    threads,
		NamePrefix: executor.DefaultNamePrefix,
		Metrics:    prometheus.NewExecutorMetrics("keystone", threads),
	})

	return serve(ctx, cfg, exec)
}

// serve starts the app server, and the metrics server when enabled, on
// exec and blocks until both have stopped. A fatal error in either server
// shuts the other one down.
func serve(ctx context.Context, cfg *config.Config, exec *executor.Executor) error {
	g, gctx := errgroup.WithContext(ctx)
	fatal := make(chan error, 2)
	onFatal := func(err error) {
		select {
		case fatal <- err:
		default:
		}
	}

	appOpts, err := cfg.Server.ServerOptions("app", prometheus.NewServerMetrics("app"))
	if err != nil {
		return err
	}
	appOpts.OnFatal = onFatal

	var app *server.Server
	app = server.New(api.NewHandler(api.Options{
		Service: "keystone",
		Ready: func() error {
			if st := app.State(); st != server.StateAccepting {
				return fmt.Errorf("server is %s", st)
			}
			return nil
		},
	}), appOpts)
	servers := []*server.Server{app}

	if cfg.Metrics.Enabled {
		metricsOpts, err := cfg.Server.ServerOptions("metrics", prometheus.NewServerMetrics("metrics"))
		if err != nil {
			return err
		}
		metricsOpts.OnFatal = onFatal
		servers = append(servers, server.New(api.MetricsHandler(), metricsOpts))
	}

	app.StartOnExecutor(gctx, server.HostPort(cfg.Server.Address), exec)
	if len(servers) > 1 {
		servers[1].StartOnExecutor(gctx, server.HostPort(cfg.Metrics.Address), exec)
	}

	g.Go(func() error {
		select {
		case err := <-fatal:
			return err
		case <-gctx.Done():
			logger.Info("Shutdown signal received, initiating graceful shutdown")
			return nil
		}
	})

	runErr := g.Wait()

	// Servers were started with gctx, so they are shutting down now.
	drainErr := exec.Drain(context.Background())

	for _, s := range servers {
		if s.ShutdownTimedOut() {
			drainErr = errors.Join(drainErr, server.ErrShutdownTimeout)
			break
		}
	}
	if err := errors.Join(runErr, drainErr); err != nil {
		return err
	}
	logger.Info("Keystone stopped")
	return nil
}
