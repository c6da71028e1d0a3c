package adapter

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Juniper/go-netconf/netconf"

	"autobot/internal/domain"
)

// NetconfDialer opens NETCONF-over-SSH sessions to network devices
type NetconfDialer struct {
	port           int
	connectTimeout time.Duration
	rpcTimeout     time.Duration
}

// NewNetconfDialer creates a dialer for the given management port (830)
func NewNetconfDialer(port int, connectTimeout, rpcTimeout time.Duration) *NetconfDialer {
	if port <= 0 {
		port = 830
	}
	return &NetconfDialer{
		port:           port,
		connectTimeout: connectTimeout,
		rpcTimeout:     rpcTimeout,
	}
}

// Address returns the host:port the dialer will connect to for target
func (d *NetconfDialer) Address(target string) string {
	return net.JoinHostPort(target, strconv.Itoa(d.port))
}

// Dial opens a session and completes the NETCONF hello exchange. The
// connect timeout bounds the TCP connect, the SSH handshake and the wait for
// the server hello. On any failure the connection is closed before Dial
// returns.
func (d *NetconfDialer) Dial(ctx context.Context, target string, creds Credentials) (*NetconfSession, error) {
	addr := d.Address(target)
	timeout := d.connectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netconf dial %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(timeout))

	ch := make(chan dialResult, 1)
	go func() {
		s, err := netconf.NewSSHSession(conn, passwordConfig(creds, timeout))
		ch <- dialResult{session: s, err: err}
	}()

	var res dialResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		conn.Close()
		<-ch
		return nil, ctx.Err()
	}

	if res.err != nil {
		conn.Close()
		return nil, fmt.Errorf("netconf dial %s: %w", addr, res.err)
	}
	// go-netconf ignores hello read errors; a session without id or
	// capabilities never received one
	if res.session.SessionID == 0 && len(res.session.ServerCapabilities) == 0 {
		res.session.Close()
		conn.Close()
		return nil, fmt.Errorf("netconf dial %s: no hello from server", addr)
	}

	conn.SetDeadline(time.Time{})
	return &NetconfSession{session: res.session, rpcTimeout: d.rpcTimeout}, nil
}

type dialResult struct {
	session *netconf.Session
	err     error
}

// NetconfSession is one open NETCONF session. Close may be called any
// number of times.
type NetconfSession struct {
	session    *netconf.Session
	rpcTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// ID returns the server assigned session-id
func (s *NetconfSession) ID() int {
	return s.session.SessionID
}

// Lock takes the candidate datastore lock
func (s *NetconfSession) Lock(ctx context.Context) error {
	return s.exec(ctx, netconf.MethodLock("candidate"))
}

// Unlock releases the candidate datastore lock
func (s *NetconfSession) Unlock(ctx context.Context) error {
	return s.exec(ctx, netconf.MethodUnlock("candidate"))
}

// Load merges script into the candidate configuration
func (s *NetconfSession) Load(ctx context.Context, format domain.LoadFormat, script string) error {
	rpc, err := loadConfigurationRPC(format, script)
	if err != nil {
		return err
	}
	return s.exec(ctx, netconf.RawMethod(rpc))
}

// Commit commits the candidate configuration
func (s *NetconfSession) Commit(ctx context.Context) error {
	return s.exec(ctx, netconf.RawMethod("<commit/>"))
}

// Close ends the session
func (s *NetconfSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.session.Close()
	})
	return s.closeErr
}

// exec runs one RPC, bounded by the RPC timeout and ctx. go-netconf has no
// per-call deadline, so on timeout the session is closed to unblock the
// reader.
func (s *NetconfSession) exec(ctx context.Context, method netconf.RPCMethod) error {
	done := make(chan error, 1)
	go func() {
		reply, err := s.session.Exec(method)
		if err == nil && reply != nil && len(reply.Errors) > 0 {
			err = rpcErrors(reply.Errors)
		}
		done <- err
	}()

	timeout := s.rpcTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		s.Close()
		return fmt.Errorf("rpc timeout after %s", timeout)
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

func rpcErrors(errs []netconf.RPCError) error {
	for _, e := range errs {
		if e.Severity == "error" {
			return fmt.Errorf("rpc error: %s", e.Message)
		}
	}
	return nil
}

// loadConfigurationRPC builds the Junos <load-configuration> request.
// Set scripts use action="set"; text scripts are merged.
func loadConfigurationRPC(format domain.LoadFormat, script string) (string, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(script)); err != nil {
		return "", fmt.Errorf("escape configuration: %w", err)
	}

	switch format {
	case domain.FormatSet:
		return `<load-configuration action="set" format="text"><configuration-set>` +
			escaped.String() + `</configuration-set></load-configuration>`, nil
	case domain.FormatText:
		return `<load-configuration action="merge" format="text"><configuration-text>` +
			escaped.String() + `</configuration-text></load-configuration>`, nil
	default:
		return "", fmt.Errorf("unsupported load format %q", format)
	}
}
