package api

import (
	"github.com/marmos91/keystone/pkg/handler"
	"github.com/marmos91/keystone/pkg/metrics"
)

// NewHandler returns the demo application as a Keystone handler factory.
// The router is stateless, so every connection shares one instance.
func NewHandler(opts Options) handler.NewHandler {
	return handler.Shared(handler.FromHTTP(NewRouter(opts)))
}

// MetricsHandler serves the Prometheus registry at any path. It answers 404
// when metrics are disabled.
func MetricsHandler() handler.NewHandler {
	return handler.Shared(handler.FromHTTP(metrics.Handler()))
}
