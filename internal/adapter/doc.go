// Package adapter holds the network-facing probes and sessions used by the
// discovery and deployment services.
//
// Reachability probes:
//   - Prober.MeasureLatency sends one ICMP echo (pro-bing)
//   - Prober.ProbePort performs a TCP connect
//   - Prober.ResolveHardwareAddress looks up a MAC via the link layer
//
// LinkLayerSweeper resolves many addresses at once in fixed size batches.
// Built with -tags pcap it broadcasts ARP requests through libpcap
// (gopacket); the default build primes the kernel neighbour table with ICMP
// and reads it back, which needs no cgo and no capabilities.
//
// RemoteSweepAgent reaches a network segment this host has no layer 2
// presence on: it opens an SSH session to an intermediary and runs a
// ping-only nmap sweep there, reading either grepable or XML output.
//
// NetconfDialer opens NETCONF sessions (port 830) to network devices and
// exposes the candidate configuration operations needed for a push:
// lock, load, commit, unlock.
//
// All probes report soft failures as values (unreachable, closed, empty
// set). Only session-level operations return errors.
package adapter
