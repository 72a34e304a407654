package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/pkg/api/handlers"
	"github.com/marmos91/keystone/pkg/handler"
)

// Options configures the demo application.
type Options struct {
	// Service is reported by the greeting and health endpoints.
	// Default: "keystone"
	Service string

	// Ready backs GET /health/ready.
	Ready handlers.ReadinessFunc

	// MaxEchoBytes caps POST /echo bodies.
	// Default: handlers.DefaultMaxEchoBytes
	MaxEchoBytes int64

	// Timeout bounds each request through middleware.Timeout.
	// Default: 30s
	Timeout time.Duration
}

// NewRouter creates the chi router with all middleware and routes.
//
// The router is configured with:
//   - Custom request logging using the internal logger
//   - Panic recovery, so a panicking route still answers 500
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /             - Greeting with request id and client address
//   - POST /echo        - Echo the request body
//   - GET /health       - Liveness probe
//   - GET /health/ready - Readiness probe
func NewRouter(opts Options) http.Handler {
	if opts.Service == "" {
		opts.Service = "keystone"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	demo := handlers.NewDemoHandler(opts.Service, opts.MaxEchoBytes)
	r.Get("/", demo.Greeting)
	r.Post("/echo", demo.Echo)

	health := handlers.NewHealthHandler(opts.Service, opts.Ready)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	return r
}

// requestLogger logs requests using the internal logger. The request id is
// the one the server assigned, so these lines join up with connection logs.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := handler.RequestID(r.Context())

		logger.Debug("App request started",
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.ClientAddr(r.RemoteAddr),
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("App request completed",
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			"bytes", ww.BytesWritten(),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}
