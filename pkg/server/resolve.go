package server

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// AddrSpec is anything that resolves to candidate listen addresses.
type AddrSpec interface {
	Addrs(ctx context.Context) ([]*net.TCPAddr, error)
	String() string
}

// HostPort is a "host:port" listen address. The host may be a name, an IPv4
// or bracketed IPv6 literal, or empty for all interfaces.
type HostPort string

// Addrs parses the port and looks up the host.
func (hp HostPort) Addrs(ctx context.Context) ([]*net.TCPAddr, error) {
	host, portStr, err := net.SplitHostPort(string(hp))
	if err != nil {
		return nil, err
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", portStr)
	if err != nil {
		return nil, err
	}

	if host == "" {
		return []*net.TCPAddr{{Port: port}}, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return []*net.TCPAddr{{IP: ip, Port: port}}, nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	addrs := make([]*net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.TCPAddr{IP: ip.IP, Port: port, Zone: ip.Zone})
	}
	return addrs, nil
}

func (hp HostPort) String() string {
	return string(hp)
}

// TCPAddrs is a literal list of candidates, already resolved.
type TCPAddrs []*net.TCPAddr

// Addrs returns the list unchanged.
func (a TCPAddrs) Addrs(context.Context) ([]*net.TCPAddr, error) {
	return a, nil
}

func (a TCPAddrs) String() string {
	parts := make([]string, len(a))
	for i, addr := range a {
		parts[i] = addr.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Resolve returns the first candidate produced by spec. Further candidates
// are ignored; there is no fallback or retry.
func Resolve(ctx context.Context, spec AddrSpec) (*net.TCPAddr, error) {
	addrs, err := spec.Addrs(ctx)
	if err != nil {
		return nil, &StartupError{Op: "resolve", Addr: spec.String(), Err: fmt.Errorf("%w: %w", ErrResolve, err)}
	}
	for _, addr := range addrs {
		if addr != nil {
			return addr, nil
		}
	}
	return nil, &StartupError{Op: "resolve", Addr: spec.String(), Err: ErrNoAddress}
}
