// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/mikrobak/internal/model"
	"github.com/toeirei/mikrobak/internal/testutil"
	"golang.org/x/crypto/ssh"
)

func paramsFor(r *testutil.FakeRouter, user, password string) model.Params {
	host, port := r.HostPort()
	return model.Params{
		Group:          "branch1",
		Hostname:       host,
		Port:           port,
		Username:       user,
		Password:       password,
		BackupFilename: "backup-2026-01-02_03-04-05",
		BackupPassword: "bk$pw",
	}
}

func mustExecutor(t *testing.T, opts Options) *Executor {
	t.Helper()
	e, err := NewExecutor(opts)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func assertKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectionError, got %T %v", err, err)
	}
	if ce.Kind != want {
		t.Fatalf("kind = %s, want %s (err: %v)", ce.Kind, want, err)
	}
}

func TestBackup_SendsBackupCommand(t *testing.T) {
	r := testutil.NewFakeRouter(t, "admin", "secret")
	e := mustExecutor(t, Options{Timeout: 2 * time.Second})

	p := paramsFor(r, "admin", "secret")
	res, err := e.Backup(context.Background(), p)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	cmds := r.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %v", cmds)
	}
	if cmds[0] != BackupCommand(p.BackupFilename, p.BackupPassword) {
		t.Errorf("unexpected command %q", cmds[0])
	}
	if res.FetchedPath != "" {
		t.Errorf("fetch disabled but got path %q", res.FetchedPath)
	}
}

func TestBackup_WrongPasswordIsAuthError(t *testing.T) {
	r := testutil.NewFakeRouter(t, "admin", "secret")
	e := mustExecutor(t, Options{Timeout: 2 * time.Second})

	_, err := e.Backup(context.Background(), paramsFor(r, "admin", "wrong"))
	assertKind(t, err, KindAuth)
	if len(r.Commands()) != 0 {
		t.Errorf("no command may run without authentication")
	}
}

func TestBackup_RefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	e := mustExecutor(t, Options{Timeout: 2 * time.Second})
	p := model.Params{Hostname: "127.0.0.1", Port: port, Username: "admin", BackupFilename: "b", BackupPassword: "p"}
	_, err = e.Backup(context.Background(), p)
	assertKind(t, err, KindRefused)
}

func TestBackup_SilentPeerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			// Hold the connection open without speaking SSH.
			go func() { _, _ = io.Copy(io.Discard, c) }()
		}
	}()

	e := mustExecutor(t, Options{Timeout: 200 * time.Millisecond})
	p := model.Params{Hostname: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port, Username: "admin", BackupFilename: "b", BackupPassword: "p"}

	start := time.Now()
	_, err = e.Backup(context.Background(), p)
	assertKind(t, err, KindTimeout)
	if time.Since(start) > 5*time.Second {
		t.Errorf("handshake was not bounded by the timeout")
	}
}

func TestBackup_CanceledContext(t *testing.T) {
	r := testutil.NewFakeRouter(t, "admin", "secret")
	e := mustExecutor(t, Options{Timeout: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Backup(ctx, paramsFor(r, "admin", "secret"))
	assertKind(t, err, KindCanceled)
}

func TestBackup_FetchCompressed(t *testing.T) {
	r := testutil.NewFakeRouter(t, "admin", "secret")
	dir := t.TempDir()
	e := mustExecutor(t, Options{
		Timeout: 2 * time.Second,
		Fetch:   FetchOptions{Enabled: true, Dir: dir, Compress: true},
	})

	p := paramsFor(r, "admin", "secret")
	res, err := e.Backup(context.Background(), p)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if res.FetchedPath != LocalBackupPath(FetchOptions{Dir: dir, Compress: true}, p) {
		t.Errorf("fetched path = %q", res.FetchedPath)
	}

	f, err := os.Open(res.FetchedPath)
	if err != nil {
		t.Fatalf("open fetched file: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if want := "ROUTEROS-BACKUP:" + p.BackupFilename; string(got) != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestBackup_CommandFailureIsExecError(t *testing.T) {
	r := testutil.StartFakeRouter(t, "admin", "secret", testutil.SaveFail)
	e := mustExecutor(t, Options{
		Timeout: 2 * time.Second,
		Fetch:   FetchOptions{Enabled: true, Dir: t.TempDir()},
	})

	res, err := e.Backup(context.Background(), paramsFor(r, "admin", "secret"))
	assertKind(t, err, KindExec)
	if res.FetchedPath != "" {
		t.Errorf("nothing may be fetched after a failed save")
	}
	if len(r.Commands()) != 1 {
		t.Errorf("expected the backup command to be attempted once")
	}
}

func TestBackup_FetchMissingFileIsFetchError(t *testing.T) {
	r := testutil.StartFakeRouter(t, "admin", "secret", testutil.SaveDiscard)
	e := mustExecutor(t, Options{
		Timeout: 2 * time.Second,
		Fetch:   FetchOptions{Enabled: true, Dir: t.TempDir()},
	})

	_, err := e.Backup(context.Background(), paramsFor(r, "admin", "secret"))
	assertKind(t, err, KindFetch)
}

func TestBackup_KnownHosts(t *testing.T) {
	r := testutil.NewFakeRouter(t, "admin", "secret")
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	if err := os.WriteFile(good, []byte(r.KnownHostsLine(r.HostKey())+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	e := mustExecutor(t, Options{Timeout: 2 * time.Second, KnownHostsFile: good})
	if _, err := e.Backup(context.Background(), paramsFor(r, "admin", "secret")); err != nil {
		t.Fatalf("Backup with matching host key: %v", err)
	}

	_, other, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherSigner, err := ssh.NewSignerFromKey(other)
	if err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "known_hosts_bad")
	if err := os.WriteFile(bad, []byte(r.KnownHostsLine(otherSigner.PublicKey())+"\n"), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}
	e = mustExecutor(t, Options{Timeout: 2 * time.Second, KnownHostsFile: bad})
	_, err = e.Backup(context.Background(), paramsFor(r, "admin", "secret"))
	assertKind(t, err, KindHostKey)
}

func TestNewExecutor_MissingKnownHosts(t *testing.T) {
	_, err := NewExecutor(Options{KnownHostsFile: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatalf("expected error for missing known_hosts file")
	}
}

func TestBackupCommand_Escapes(t *testing.T) {
	got := BackupCommand(`nightly "a"`, `p$w\d`)
	want := `system backup save name="nightly \"a\"" password="p\$w\\d" encryption=aes-sha256`
	if got != want {
		t.Errorf("BackupCommand = %q, want %q", got, want)
	}
	name, ok := testutil.BackupName(got)
	if !ok || name != `nightly "a"` {
		t.Errorf("round trip through fake router parser: %q %v", name, ok)
	}
}

func TestLocalBackupPath_SanitizesSegments(t *testing.T) {
	p := model.Params{Group: "g", Hostname: "fe80::1", BackupFilename: "a/b"}
	got := LocalBackupPath(FetchOptions{Dir: "/var/backups"}, p)
	want := filepath.Join("/var/backups", "g", "fe80__1", "a_b.backup")
	if got != want {
		t.Errorf("LocalBackupPath = %q, want %q", got, want)
	}
	if !bytes.HasSuffix([]byte(LocalBackupPath(FetchOptions{Dir: "/x", Compress: true}, p)), []byte(".backup.zst")) {
		t.Errorf("compressed path must end in .backup.zst")
	}
}
