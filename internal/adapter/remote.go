package adapter

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/netip"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
)

// CredentialSource supplies intermediary credentials at sweep time, so a
// credential group edited through the API takes effect without a restart
type CredentialSource func(ctx context.Context) (Credentials, error)

// StaticCredentials returns a CredentialSource for a fixed pair
func StaticCredentials(username, password string) CredentialSource {
	return func(context.Context) (Credentials, error) {
		return Credentials{Username: username, Password: password}, nil
	}
}

// RemoteSweepAgent discovers live hosts on a segment this machine cannot
// reach at layer 2, by running a ping-only nmap sweep on an intermediary
type RemoteSweepAgent struct {
	host           string
	port           int
	network        netip.Prefix
	credentials    CredentialSource
	dialTimeout    time.Duration
	commandTimeout time.Duration
	output         OutputFormat
	runner         CommandRunner
}

// NewRemoteSweepAgent creates an agent that sweeps network (CIDR) from host
func NewRemoteSweepAgent(host, network string, creds CredentialSource, opts ...RemoteOption) (*RemoteSweepAgent, error) {
	if host == "" {
		return nil, fmt.Errorf("intermediary host is required")
	}
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep network %q: %w", network, err)
	}
	if creds == nil {
		return nil, fmt.Errorf("intermediary credentials are required")
	}

	a := &RemoteSweepAgent{
		host:           host,
		port:           22,
		network:        prefix.Masked(),
		credentials:    creds,
		dialTimeout:    30 * time.Second,
		commandTimeout: 60 * time.Second,
		output:         OutputGrepable,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = &sshRunner{dialTimeout: a.dialTimeout, commandTimeout: a.commandTimeout}
	}
	return a, nil
}

// Network returns the swept CIDR
func (a *RemoteSweepAgent) Network() string {
	return a.network.String()
}

// Covers reports whether addr lies inside the swept network
func (a *RemoteSweepAgent) Covers(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	return a.network.Contains(ip)
}

// Command returns the shell command run on the intermediary
func (a *RemoteSweepAgent) Command() string {
	if a.output == OutputXML {
		return "nmap -sn -oX - " + a.network.String()
	}
	return "nmap -sn -oG - " + a.network.String()
}

// Sweep runs the remote sweep and returns every address reported up. On
// any failure the returned slice is nil and the error says why; callers
// treat that as "nothing seen remotely".
func (a *RemoteSweepAgent) Sweep(ctx context.Context) ([]string, error) {
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve intermediary credentials: %w", err)
	}

	log.Printf("Remote sweep: %s via %s:%d", a.network, a.host, a.port)
	start := time.Now()

	out, err := a.runner.Run(ctx, a.host, a.port, creds, a.Command())
	if err != nil {
		return nil, fmt.Errorf("remote sweep via %s: %w", a.host, err)
	}

	var up []string
	if a.output == OutputXML {
		up, err = ParseXML([]byte(out))
		if err != nil {
			return nil, fmt.Errorf("parse sweep output: %w", err)
		}
	} else {
		up = ParseGrepable(out)
	}

	log.Printf("Remote sweep: %d hosts up in %s (%s)", len(up), a.network, time.Since(start).Round(time.Millisecond))
	return up, nil
}

// ParseGrepable extracts addresses from nmap -oG output. Every line that
// reports "Status: Up" contributes its second field, e.g.
//
//	Host: 10.20.0.7 (sw-07.lab)	Status: Up
func ParseGrepable(out string) []string {
	var up []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Status: Up") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		up = append(up, fields[1])
	}
	return up
}

// ParseXML extracts the IPv4 addresses of hosts in state "up" from an nmap
// XML report
func ParseXML(out []byte) ([]string, error) {
	var run nmap.Run
	if err := nmap.Parse(out, &run); err != nil {
		return nil, err
	}

	var up []string
	for _, host := range run.Hosts {
		if host.Status.State != "up" {
			continue
		}
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				up = append(up, addr.Addr)
				break
			}
		}
	}
	return up, nil
}
