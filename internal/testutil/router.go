// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil holds test helpers shared across packages.
package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// FakeRouter is a minimal SSH server standing in for a RouterOS device. It
// accepts one user/password pair, records exec commands and, for backup
// commands, writes the named .backup file into its working directory, which
// it also serves over SFTP.
type FakeRouter struct {
	listener net.Listener
	signer   ssh.Signer
	// WorkDir receives saved backups and is the SFTP root. It must not be
	// changed after the router started.
	WorkDir  string
	user     string
	password string
	mode     SaveMode

	mu       sync.Mutex
	commands []string
}

// SaveMode selects how the router answers backup commands.
type SaveMode int

const (
	SaveOK      SaveMode = iota
	SaveFail             // backup command exits non-zero
	SaveDiscard          // backup command succeeds but no file is written
)

// NewFakeRouter starts a router that saves backups normally. It is stopped
// when the test ends.
func NewFakeRouter(t testing.TB, user, password string) *FakeRouter {
	t.Helper()
	return StartFakeRouter(t, user, password, SaveOK)
}

// StartFakeRouter starts a router answering backup commands per mode.
func StartFakeRouter(t testing.TB, user, password string, mode SaveMode) *FakeRouter {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := &FakeRouter{listener: ln, signer: signer, WorkDir: t.TempDir(), user: user, password: password, mode: mode}
	t.Cleanup(func() { ln.Close() })
	go r.serve()
	return r
}

// HostPort returns the listening address.
func (r *FakeRouter) HostPort() (string, int) {
	addr := r.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Commands returns the exec commands received so far.
func (r *FakeRouter) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

func (r *FakeRouter) serve() {
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == r.user && string(pass) == r.password {
				return nil, nil
			}
			return nil, errBadPassword
		},
	}
	cfg.AddHostKey(r.signer)
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		go r.handle(conn, cfg)
	}
}

const backupFileExt = ".backup"

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errBadPassword = fakeErr("bad password")

func (r *FakeRouter) handle(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			return
		}
		go r.session(ch, chReqs)
	}
}

func (r *FakeRouter) session(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				return
			}
			_ = req.Reply(true, nil)
			r.exec(ch, payload.Command)
			return
		case "subsystem":
			var payload struct{ Name string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			if payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			srv, err := sftp.NewServer(ch, sftp.WithServerWorkingDirectory(r.WorkDir))
			if err != nil {
				return
			}
			_ = srv.Serve()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func (r *FakeRouter) exec(ch ssh.Channel, cmd string) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	status := uint32(0)
	name, ok := BackupName(cmd)
	switch {
	case ok && r.mode == SaveFail:
		_, _ = ch.Write([]byte("failure: not enough space\n"))
		status = 1
	case ok && r.mode == SaveDiscard:
		_, _ = ch.Write([]byte("Configuration backup saved\n"))
	case ok:
		content := "ROUTEROS-BACKUP:" + name
		if err := os.WriteFile(filepath.Join(r.WorkDir, name+backupFileExt), []byte(content), 0o600); err != nil {
			status = 1
		}
		_, _ = ch.Write([]byte("Configuration backup saved\n"))
	default:
		_, _ = ch.Write([]byte("bad command name\n"))
		status = 1
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
}

// BackupName extracts the unescaped name="..." argument of a backup command.
func BackupName(cmd string) (string, bool) {
	const prefix = `system backup save name="`
	if !strings.HasPrefix(cmd, prefix) {
		return "", false
	}
	rest := cmd[len(prefix):]
	var b strings.Builder
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '\\':
			if i+1 < len(rest) {
				i++
				b.WriteByte(rest[i])
			}
		case '"':
			return b.String(), true
		default:
			b.WriteByte(rest[i])
		}
	}
	return "", false
}

// HostKey returns the router's public host key.
func (r *FakeRouter) HostKey() ssh.PublicKey {
	return r.signer.PublicKey()
}

// KnownHostsLine renders a known_hosts line binding key to the router's
// address.
func (r *FakeRouter) KnownHostsLine(key ssh.PublicKey) string {
	host, port := r.HostPort()
	return "[" + host + "]:" + strconv.Itoa(port) + " " + strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
}
