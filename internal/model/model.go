// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Fixed system defaults, used when no configuration source provides a value.
const (
	DefaultPort           = 22
	DefaultUsername       = "admin"
	DefaultPassword       = "123456"
	DefaultBackupPassword = "12345678"
	// DefaultBackupPrefix is prepended to the run timestamp when no backup
	// filename is configured.
	DefaultBackupPrefix = "backup-"
	// BackupTimestampLayout formats the run timestamp in default filenames.
	BackupTimestampLayout = "2006-01-02_15-04-05"
)

// Attributes is a partial set of connection parameters. Each field is
// independently present or absent.
type Attributes struct {
	Port     Opt[int]
	Username Opt[string]
	Password Opt[string]
}

// Merge returns a copy of a where every absent field is taken from lower.
func (a Attributes) Merge(lower Attributes) Attributes {
	return Attributes{
		Port:     a.Port.OrElse(lower.Port),
		Username: a.Username.OrElse(lower.Username),
		Password: a.Password.OrElse(lower.Password),
	}
}

// IsEmpty reports whether no field is present.
func (a Attributes) IsEmpty() bool {
	return !a.Port.IsSet() && !a.Username.IsSet() && !a.Password.IsSet()
}

// Device is a single host declaration inside a group's host list, together
// with the attributes written inline next to its address.
type Device struct {
	Address string
	Inline  Attributes
}

// GroupVars holds the variable overrides of one group: a per-device record
// keyed by address and the group-wide default record.
type GroupVars struct {
	Defaults Attributes
	Hosts    map[string]Attributes
}

// Host returns the per-device record for address. The second return value
// reports whether the address has an entry at all.
func (v GroupVars) Host(address string) (Attributes, bool) {
	if v.Hosts == nil {
		return Attributes{}, false
	}
	a, ok := v.Hosts[address]
	return a, ok
}

// Group is a named collection of devices with its variable overrides.
type Group struct {
	Name    string
	Devices []Device
	Vars    GroupVars
}

// BackupSettings are the backup file name and encryption password shared by
// every device of a run.
type BackupSettings struct {
	Filename string
	Password string
}

// WithDefaults fills an empty filename with the timestamp-derived default for
// now and an empty password with DefaultBackupPassword.
func (s BackupSettings) WithDefaults(now time.Time) BackupSettings {
	if s.Filename == "" {
		s.Filename = DefaultBackupPrefix + now.Format(BackupTimestampLayout)
	}
	if s.Password == "" {
		s.Password = DefaultBackupPassword
	}
	return s
}

// Params is the fully resolved parameter record for one device.
type Params struct {
	Group          string
	Hostname       string
	Port           int
	Username       string
	Password       string
	BackupFilename string
	BackupPassword string
}

// Addr returns the dialable host:port of the device.
func (p Params) Addr() string {
	return net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port))
}

// String returns the user@host:port representation without secrets.
func (p Params) String() string {
	return fmt.Sprintf("%s@%s", p.Username, p.Addr())
}
