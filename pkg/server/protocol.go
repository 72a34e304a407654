package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/marmos91/keystone/pkg/executor"
	"github.com/marmos91/keystone/pkg/metrics"
)

// ProtocolConfig configures HTTP/1.x serving. It is fixed per server.
type ProtocolConfig struct {
	// ReadTimeout bounds reading one request's header, and draining its
	// unread body. Zero means 30s, negative means no limit.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing one response. Zero means no limit.
	WriteTimeout time.Duration

	// IdleTimeout bounds the wait for the next request on a keep-alive
	// connection. Zero falls back to ReadTimeout.
	IdleTimeout time.Duration

	// MaxHeaderBytes caps the request line plus headers. Zero means
	// http.DefaultMaxHeaderBytes.
	MaxHeaderBytes int

	// BufferSize is the size of the pooled read and write buffers.
	BufferSize int

	// MaxBodyDrain is how much unread request body is discarded to keep a
	// connection reusable; larger leftovers close the connection.
	MaxBodyDrain int64

	// DisableKeepAlive closes every connection after one response.
	DisableKeepAlive bool
}

// DefaultProtocolConfig returns the settings used when none are given.
func DefaultProtocolConfig() ProtocolConfig {
	return ProtocolConfig{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    2 * time.Minute,
		MaxHeaderBytes: http.DefaultMaxHeaderBytes,
		BufferSize:     4 << 10,
		MaxBodyDrain:   256 << 10,
	}
}

func (c ProtocolConfig) withDefaults() ProtocolConfig {
	d := DefaultProtocolConfig()
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.MaxBodyDrain <= 0 {
		c.MaxBodyDrain = d.MaxBodyDrain
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = c.ReadTimeout
	}
	return c
}

// Protocol serves HTTP/1.x on accepted sockets. One Protocol is shared by
// all connections of a server.
type Protocol struct {
	cfg     ProtocolConfig
	metrics metrics.ServerMetrics
}

// NewProtocol creates a Protocol. m may be nil.
func NewProtocol(cfg ProtocolConfig, m metrics.ServerMetrics) *Protocol {
	return &Protocol{cfg: cfg.withDefaults(), metrics: m}
}

// Config returns the effective configuration.
func (p *Protocol) Config() ProtocolConfig {
	return p.cfg
}

// ServeConnection returns the task serving conn with svc. The task owns
// conn and closes it on return. Requests are handled strictly one after
// another; the task ends on peer close, a decode or socket error, or a
// request that does not keep the connection alive.
func (p *Protocol) ServeConnection(conn net.Conn, svc Service) executor.Task {
	return func(ctx context.Context) error {
		return p.serve(ctx, conn, svc, nil)
	}
}
