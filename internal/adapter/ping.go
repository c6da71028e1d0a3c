package adapter

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"autobot/internal/domain"
)

// icmpEcho sends a single echo request and waits up to timeout for the reply.
// Unprivileged mode uses UDP "ping sockets" (net.ipv4.ping_group_range on
// Linux); privileged mode needs CAP_NET_RAW.
func icmpEcho(ctx context.Context, addr string, timeout time.Duration, privileged bool) domain.Reachability {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return domain.Unreachable()
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return domain.Unreachable()
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return domain.Unreachable()
	}
	if len(stats.Rtts) > 0 {
		return domain.Reachable(stats.Rtts[0])
	}
	return domain.Reachable(stats.AvgRtt)
}
