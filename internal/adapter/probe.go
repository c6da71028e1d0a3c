package adapter

import (
	"context"
	"net"
	"strconv"
	"time"

	"autobot/internal/domain"
)

// Prober answers the three per-address questions a scan asks: what is the
// hardware address, how far away is it, and is this TCP port open.
type Prober struct {
	privileged bool
	linkLayer  *LinkLayerSweeper
}

// NewProber creates a prober. linkLayer may be nil, in which case hardware
// addresses are always reported as unknown.
func NewProber(linkLayer *LinkLayerSweeper, privileged bool) *Prober {
	return &Prober{
		privileged: privileged,
		linkLayer:  linkLayer,
	}
}

// MeasureLatency sends one ICMP echo and reports the round trip time
func (p *Prober) MeasureLatency(ctx context.Context, addr string, timeout time.Duration) domain.Reachability {
	return icmpEcho(ctx, addr, timeout, p.privileged)
}

// ProbePort attempts a TCP connect. Any error, timeout included, is "closed".
func (p *Prober) ProbePort(ctx context.Context, addr string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ResolveHardwareAddress returns the MAC address of a host on the local
// segment, or domain.UnknownHardwareAddress
func (p *Prober) ResolveHardwareAddress(ctx context.Context, addr string) string {
	if p.linkLayer == nil {
		return domain.UnknownHardwareAddress
	}
	if mac := p.linkLayer.Resolve(ctx, addr); mac != "" {
		return mac
	}
	return domain.UnknownHardwareAddress
}
