// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/model"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultTimeout bounds the TCP dial and SSH handshake.
	DefaultTimeout = 5 * time.Second
	// DefaultCommandTimeout bounds everything after the handshake.
	DefaultCommandTimeout = 2 * time.Minute
)

// Options configures an Executor.
type Options struct {
	Timeout        time.Duration
	CommandTimeout time.Duration
	// KnownHostsFile enables host key verification. When empty any host key
	// is accepted.
	KnownHostsFile string
	Fetch          FetchOptions
}

// Result is what a successful dispatch produced.
type Result struct {
	Output      string
	FetchedPath string
}

// Executor runs backups over SSH. It is safe for concurrent use; every call
// opens its own connection.
type Executor struct {
	opts            Options
	hostKeyCallback ssh.HostKeyCallback
}

// NewExecutor validates opts and prepares host key verification.
func NewExecutor(opts Options) (*Executor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}

	e := &Executor{opts: opts}
	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", opts.KnownHostsFile, err)
		}
		e.hostKeyCallback = cb
	} else {
		logging.Warnf("no known_hosts file configured, device host keys are not verified")
		e.hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return e, nil
}

// Backup connects to the device described by p, saves an encrypted backup
// and, when enabled, downloads it. Every failure is a *ConnectionError.
func (e *Executor) Backup(ctx context.Context, p model.Params) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ConnectionError{Host: p.Hostname, Kind: KindCanceled, Err: err}
	}

	client, stop, err := e.dial(ctx, p)
	if err != nil {
		return Result{}, ClassifyConnectionError(p.Hostname, contextCause(ctx, err))
	}
	defer stop()
	defer client.Close()

	out, err := e.run(client, BackupCommand(p.BackupFilename, p.BackupPassword))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, &ConnectionError{Host: p.Hostname, Kind: KindCanceled, Err: ctx.Err()}
		}
		return Result{Output: out}, &ConnectionError{Host: p.Hostname, Kind: KindExec, Err: err}
	}
	logging.Debugf("%s: backup command output: %s", p.Hostname, strings.TrimSpace(out))

	res := Result{Output: out}
	if e.opts.Fetch.Enabled {
		path, err := fetchBackup(client, p, e.opts.Fetch)
		if err != nil {
			if ctx.Err() != nil {
				return res, &ConnectionError{Host: p.Hostname, Kind: KindCanceled, Err: ctx.Err()}
			}
			return res, &ConnectionError{Host: p.Hostname, Kind: KindFetch, Err: err}
		}
		res.FetchedPath = path
	}
	return res, nil
}

// dial opens the TCP connection and performs the SSH handshake within
// opts.Timeout. The returned stop func detaches the context watcher that
// closes the connection on cancellation.
func (e *Executor) dial(ctx context.Context, p model.Params) (*ssh.Client, func() bool, error) {
	addr := p.Addr()
	dialer := net.Dialer{Timeout: e.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	_ = conn.SetDeadline(time.Now().Add(e.opts.Timeout))
	cfg := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            passwordAuth(p.Password),
		HostKeyCallback: e.hostKeyCallback,
		Timeout:         e.opts.Timeout,
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(e.opts.CommandTimeout))
	return ssh.NewClient(c, chans, reqs), stop, nil
}

func (e *Executor) run(client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out
	if err := session.Run(cmd); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

// passwordAuth answers both password and keyboard-interactive prompts with
// the device password; RouterOS offers either depending on version.
func passwordAuth(password string) []ssh.AuthMethod {
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}
}

// contextCause prefers the context error over the network error it caused.
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
