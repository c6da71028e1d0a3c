//go:build !pcap

package adapter

import "context"

// sweepBatch resolves one batch through the kernel neighbour table. This is
// the default, cgo free path; build with -tags pcap for raw ARP.
func (s *LinkLayerSweeper) sweepBatch(ctx context.Context, batch []string) map[string]string {
	return s.sweepViaNeighbourTable(ctx, batch)
}
