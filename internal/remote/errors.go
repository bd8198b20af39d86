// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrorKind classifies a ConnectionError.
type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindRefused  ErrorKind = "refused"
	KindAuth     ErrorKind = "auth"
	KindHostKey  ErrorKind = "hostkey"
	KindExec     ErrorKind = "exec"
	KindFetch    ErrorKind = "fetch"
	KindCanceled ErrorKind = "canceled"
	KindUnknown  ErrorKind = "unknown"
)

// ConnectionError is a transport, authentication or execution failure for
// one device.
type ConnectionError struct {
	Host string
	Kind ErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Host, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionTimeoutError reports whether err is a dial or handshake timeout.
func IsConnectionTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// IsConnectionRefusedError reports whether the device could not be reached.
func IsConnectionRefusedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no route to host")
}

// IsAuthenticationError reports whether the device rejected the credentials.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "permission denied")
}

// IsHostKeyError reports whether the host key was unknown or did not match.
func IsHostKeyError(err error) bool {
	if err == nil {
		return false
	}
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return true
	}
	var revoked *knownhosts.RevokedError
	if errors.As(err, &revoked) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "host key mismatch") ||
		strings.Contains(msg, "unknown host key") ||
		strings.Contains(msg, "host key verification failed")
}

// ClassifyConnectionError wraps err in a ConnectionError for host. An err
// that already is a ConnectionError is returned unchanged.
func ClassifyConnectionError(host string, err error) *ConnectionError {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	case IsHostKeyError(err):
		kind = KindHostKey
	case IsAuthenticationError(err):
		kind = KindAuth
	case IsConnectionRefusedError(err):
		kind = KindRefused
	case IsConnectionTimeoutError(err):
		kind = KindTimeout
	}
	return &ConnectionError{Host: host, Kind: kind, Err: err}
}
