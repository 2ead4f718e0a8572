package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Prober reports whether a host's operating system answers on the network.
// Failures are reported as unreachable, never as errors.
type Prober interface {
	Reachable(ctx context.Context, addr string) bool
}

// TCPProber probes by opening TCP connections. A refused connection still
// proves the OS network stack is alive, so it counts as reachable.
type TCPProber struct {
	Ports   []int
	Timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPProber returns a TCPProber trying ports in order (default 22).
func NewTCPProber(timeout time.Duration, ports ...int) *TCPProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if len(ports) == 0 {
		ports = []int{22}
	}
	d := &net.Dialer{}
	return &TCPProber{Ports: ports, Timeout: timeout, dial: d.DialContext}
}

// Reachable implements Prober.
func (p *TCPProber) Reachable(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	for _, port := range p.Ports {
		conn, err := p.dial(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return true
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}
