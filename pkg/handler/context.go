package handler

import (
	"context"
	"net"
)

type clientAddrKey struct{}

type requestIDKey struct{}

// WithClientAddr returns a context carrying the peer address of the
// connection a request arrived on.
func WithClientAddr(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, addr)
}

// ClientAddr returns the peer address stored by WithClientAddr.
func ClientAddr(ctx context.Context) (net.Addr, bool) {
	addr, ok := ctx.Value(clientAddrKey{}).(net.Addr)
	return addr, ok && addr != nil
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id of the request being served, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
