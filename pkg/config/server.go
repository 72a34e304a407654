package config

import (
	"fmt"

	"github.com/marmos91/keystone/pkg/metrics"
	"github.com/marmos91/keystone/pkg/server"
)

// ProtocolOptions converts the protocol section to server options.
func (p ProtocolConfig) ProtocolOptions() server.ProtocolConfig {
	return server.ProtocolConfig{
		ReadTimeout:      p.ReadTimeout,
		WriteTimeout:     p.WriteTimeout,
		IdleTimeout:      p.IdleTimeout,
		MaxHeaderBytes:   p.MaxHeaderBytes.Int(),
		BufferSize:       p.BufferSize.Int(),
		MaxBodyDrain:     int64(p.MaxBodyDrain.Int()),
		DisableKeepAlive: !p.KeepAliveEnabled(),
	}
}

// ServerOptions converts the server section to the options of a server
// named name. m may be nil.
func (c ServerConfig) ServerOptions(name string, m metrics.ServerMetrics) (server.Config, error) {
	policy, ok := server.ParseAcceptPolicy(c.AcceptPolicy)
	if !ok {
		return server.Config{}, fmt.Errorf("unknown accept policy %q", c.AcceptPolicy)
	}
	return server.Config{
		Name:            name,
		Protocol:        c.Protocol.ProtocolOptions(),
		AcceptPolicy:    policy,
		ShutdownTimeout: c.ShutdownTimeout,
		Metrics:         m,
	}, nil
}
