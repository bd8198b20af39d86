// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package resolve merges the inventory sources of a group into one complete
// parameter record per device.
//
// Every connection field (port, username, password) is resolved on its own,
// taking the first present value from:
//
//  1. the attributes written inline in the host list,
//  2. the device's section in the group's variables file,
//  3. the group-default section of the variables file,
//  4. the fleet defaults from the global configuration,
//  5. the fixed system defaults.
//
// A device's variables section that sets only some fields does not hide the
// group defaults for the remaining ones.
package resolve

import (
	"time"

	"github.com/toeirei/mikrobak/internal/model"
)

// systemDefaults is the last tier of every lookup.
var systemDefaults = model.Attributes{
	Port:     model.Some(model.DefaultPort),
	Username: model.Some(model.DefaultUsername),
	Password: model.Some(model.DefaultPassword),
}

// Resolver produces parameter records. It is immutable after construction
// and safe for concurrent use.
type Resolver struct {
	settings model.BackupSettings
	fleet    model.Attributes
}

// New returns a Resolver. settings are normally computed once per run by the
// caller and shared by every device. Empty fields fall back to the defaults
// stamped with the construction time, so every record of this Resolver still
// shares one filename. fleet holds the optional configured fleet-wide
// connection defaults.
func New(settings model.BackupSettings, fleet model.Attributes) *Resolver {
	return &Resolver{settings: settings.WithDefaults(time.Now()), fleet: fleet}
}

// Settings returns the backup settings applied to every record.
func (r *Resolver) Settings() model.BackupSettings {
	return r.settings
}

// Resolve returns one record per device of g, in declaration order.
func (r *Resolver) Resolve(g model.Group) []model.Params {
	out := make([]model.Params, 0, len(g.Devices))
	for _, d := range g.Devices {
		out = append(out, r.ResolveDevice(g, d))
	}
	return out
}

// ResolveDevice resolves a single device of g.
func (r *Resolver) ResolveDevice(g model.Group, d model.Device) model.Params {
	hostVars, _ := g.Vars.Host(d.Address)

	merged := d.Inline.
		Merge(hostVars).
		Merge(g.Vars.Defaults).
		Merge(r.fleet).
		Merge(systemDefaults)

	return model.Params{
		Group:          g.Name,
		Hostname:       d.Address,
		Port:           merged.Port.Or(model.DefaultPort),
		Username:       merged.Username.Or(model.DefaultUsername),
		Password:       merged.Password.Or(model.DefaultPassword),
		BackupFilename: r.settings.Filename,
		BackupPassword: r.settings.Password,
	}
}

// ByAddress indexes records by device address.
func ByAddress(params []model.Params) map[string]model.Params {
	m := make(map[string]model.Params, len(params))
	for _, p := range params {
		m[p.Hostname] = p
	}
	return m
}
