package adapter

import "time"

// SweepOption is a functional option for configuring LinkLayerSweeper
type SweepOption func(*LinkLayerSweeper)

// WithBatchSize sets how many addresses are resolved per broadcast round
func WithBatchSize(n int) SweepOption {
	return func(s *LinkLayerSweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithReplyWindow sets how long each batch waits for replies
func WithReplyWindow(d time.Duration) SweepOption {
	return func(s *LinkLayerSweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithInterface pins the sweep to one interface instead of picking the
// interface attached to the target network (pcap builds only)
func WithInterface(name string) SweepOption {
	return func(s *LinkLayerSweeper) {
		s.iface = name
	}
}

// WithPrivilegedPing makes the neighbour table priming use raw ICMP sockets
func WithPrivilegedPing(enabled bool) SweepOption {
	return func(s *LinkLayerSweeper) {
		s.privileged = enabled
	}
}

// RemoteOption is a functional option for configuring RemoteSweepAgent
type RemoteOption func(*RemoteSweepAgent)

// WithPort sets the intermediary's SSH port
func WithPort(port int) RemoteOption {
	return func(a *RemoteSweepAgent) {
		if port > 0 {
			a.port = port
		}
	}
}

// WithDialTimeout bounds SSH connection establishment
func WithDialTimeout(d time.Duration) RemoteOption {
	return func(a *RemoteSweepAgent) {
		if d > 0 {
			a.dialTimeout = d
		}
	}
}

// WithCommandTimeout bounds the sweep command itself; a /24 ping sweep
// normally completes in a few seconds
func WithCommandTimeout(d time.Duration) RemoteOption {
	return func(a *RemoteSweepAgent) {
		if d > 0 {
			a.commandTimeout = d
		}
	}
}

// WithOutputFormat selects grepable (default) or XML sweep output
func WithOutputFormat(f OutputFormat) RemoteOption {
	return func(a *RemoteSweepAgent) {
		switch f {
		case OutputGrepable, OutputXML:
			a.output = f
		}
	}
}

// WithRunner replaces the SSH transport, mainly for tests
func WithRunner(r CommandRunner) RemoteOption {
	return func(a *RemoteSweepAgent) {
		a.runner = r
	}
}
