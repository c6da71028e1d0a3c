package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// CommandRunner executes a command on a remote host and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, host string, port int, creds Credentials, cmd string) (string, error)
}

// sshRunner runs commands over a fresh SSH connection per call
type sshRunner struct {
	dialTimeout    time.Duration
	commandTimeout time.Duration
}

// Run connects, executes cmd, and disconnects
func (r *sshRunner) Run(ctx context.Context, host string, port int, creds Credentials, cmd string) (string, error) {
	client, err := dialSSH(ctx, host, port, passwordConfig(creds, r.dialTimeout), r.dialTimeout)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return runCommand(ctx, client, cmd, r.commandTimeout)
}

// passwordConfig creates SSH config for password auth. Many network
// operating systems only offer keyboard-interactive, so both are offered.
func passwordConfig(creds Credentials, timeout time.Duration) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
}

// dialSSH establishes an SSH connection with context support
func dialSSH(ctx context.Context, host string, port int, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{
		Timeout: timeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// The handshake has no context of its own; bound it with a deadline
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// runCommand executes a command over SSH and returns stdout. A non-zero exit
// status still returns whatever the command printed.
func runCommand(ctx context.Context, client *ssh.Client, cmd string, timeout time.Duration) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)

	go func() {
		output, err := session.Output(cmd)
		done <- result{output: output, err: err}
	}()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return string(res.output), nil
			}
			return "", fmt.Errorf("command failed: %w", res.err)
		}
		return string(res.output), nil
	case <-timer.C:
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout after %s", timeout)
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}
