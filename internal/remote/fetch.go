// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/sftp"
	"github.com/toeirei/mikrobak/internal/model"
	"golang.org/x/crypto/ssh"
)

// FetchOptions controls downloading the saved backup file.
type FetchOptions struct {
	Enabled  bool
	Dir      string
	Compress bool
}

var pathEscaper = strings.NewReplacer("/", "_", `\`, "_", ":", "_")

// LocalBackupPath returns where the backup of p is stored locally.
func LocalBackupPath(opts FetchOptions, p model.Params) string {
	name := pathEscaper.Replace(p.BackupFilename) + BackupFileExt
	if opts.Compress {
		name += ".zst"
	}
	return filepath.Join(opts.Dir, pathEscaper.Replace(p.Group), pathEscaper.Replace(p.Hostname), name)
}

// fetchBackup downloads <filename>.backup from the device's working
// directory. The local file is written to a temporary name and renamed into
// place once complete.
func fetchBackup(client *ssh.Client, p model.Params, opts FetchOptions) (string, error) {
	sc, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer sc.Close()

	remotePath := p.BackupFilename + BackupFileExt
	src, err := sc.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	finalPath := LocalBackupPath(opts, p)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	tmpPath := fmt.Sprintf("%s.mikrobak.%d", finalPath, time.Now().UnixNano())
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}

	if err := copyBackup(dst, src, opts.Compress); err != nil {
		dst.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}
	return finalPath, nil
}

func copyBackup(dst io.Writer, src io.Reader, compress bool) error {
	if !compress {
		_, err := io.Copy(dst, src)
		return err
	}
	zw, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
