// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package resolve

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/toeirei/mikrobak/internal/model"
)

var testSettings = model.BackupSettings{Filename: "backup-2026-01-02_03-04-05", Password: "bkpw"}

func branch1() model.Group {
	return model.Group{
		Name: "branch1",
		Devices: []model.Device{
			{Address: "10.0.0.1", Inline: model.Attributes{Port: model.Some(2222)}},
			{Address: "10.0.0.2"},
		},
		Vars: model.GroupVars{
			Defaults: model.Attributes{
				Port:     model.Some(22),
				Username: model.Some("groupuser"),
				Password: model.Some("secret"),
			},
			Hosts: map[string]model.Attributes{
				"10.0.0.2": {Username: model.Some("netadmin")},
			},
		},
	}
}

func TestResolve_Branch1Scenario(t *testing.T) {
	r := New(testSettings, model.Attributes{})
	got := ByAddress(r.Resolve(branch1()))

	want := map[string]model.Params{
		"10.0.0.1": {
			Group: "branch1", Hostname: "10.0.0.1", Port: 2222,
			Username: "groupuser", Password: "secret",
			BackupFilename: testSettings.Filename, BackupPassword: "bkpw",
		},
		"10.0.0.2": {
			Group: "branch1", Hostname: "10.0.0.2", Port: 22,
			Username: "netadmin", Password: "secret",
			BackupFilename: testSettings.Filename, BackupPassword: "bkpw",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestResolve_KeepsDeclarationOrder(t *testing.T) {
	r := New(testSettings, model.Attributes{})
	got := r.Resolve(branch1())
	if len(got) != 2 || got[0].Hostname != "10.0.0.1" || got[1].Hostname != "10.0.0.2" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestResolve_NoOverridesGetsGroupDefaults(t *testing.T) {
	g := branch1()
	g.Devices = append(g.Devices, model.Device{Address: "10.0.0.9"})

	p := ByAddress(New(testSettings, model.Attributes{}).Resolve(g))["10.0.0.9"]
	if p.Port != 22 || p.Username != "groupuser" || p.Password != "secret" {
		t.Errorf("expected the group-default triple, got %+v", p)
	}
	if p.BackupFilename != testSettings.Filename || p.BackupPassword != testSettings.Password {
		t.Errorf("expected global backup settings, got %+v", p)
	}
}

// TestResolve_PrecedencePerField checks every tier for every field
// independently: each case removes the tiers above the expected one.
func TestResolve_PrecedencePerField(t *testing.T) {
	fleet := model.Attributes{Port: model.Some(40), Username: model.Some("fleet"), Password: model.Some("fleetpw")}
	defaults := model.Attributes{Port: model.Some(30), Username: model.Some("group"), Password: model.Some("grouppw")}
	host := model.Attributes{Port: model.Some(20), Username: model.Some("host"), Password: model.Some("hostpw")}
	inline := model.Attributes{Port: model.Some(10), Username: model.Some("inline"), Password: model.Some("inlinepw")}

	type tiers struct{ inline, host, defaults, fleet bool }
	tests := []struct {
		name  string
		tiers tiers
		port  int
		user  string
		pass  string
	}{
		{"inline wins", tiers{true, true, true, true}, 10, "inline", "inlinepw"},
		{"host vars next", tiers{false, true, true, true}, 20, "host", "hostpw"},
		{"group default next", tiers{false, false, true, true}, 30, "group", "grouppw"},
		{"fleet default next", tiers{false, false, false, true}, 40, "fleet", "fleetpw"},
		{"system default last", tiers{false, false, false, false}, 22, "admin", "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := model.Group{Name: "g", Vars: model.GroupVars{Hosts: map[string]model.Attributes{}}}
			d := model.Device{Address: "h"}
			if tt.tiers.inline {
				d.Inline = inline
			}
			if tt.tiers.host {
				g.Vars.Hosts["h"] = host
			}
			if tt.tiers.defaults {
				g.Vars.Defaults = defaults
			}
			var f model.Attributes
			if tt.tiers.fleet {
				f = fleet
			}
			g.Devices = []model.Device{d}

			p := New(testSettings, f).Resolve(g)[0]
			if p.Port != tt.port || p.Username != tt.user || p.Password != tt.pass {
				t.Errorf("got port=%d user=%q pass=%q, want %d %q %q", p.Port, p.Username, p.Password, tt.port, tt.user, tt.pass)
			}
		})
	}
}

func TestResolve_MixedSources(t *testing.T) {
	g := model.Group{
		Name: "g",
		Devices: []model.Device{
			{Address: "h", Inline: model.Attributes{Password: model.Some("inlinepw")}},
		},
		Vars: model.GroupVars{
			Defaults: model.Attributes{Port: model.Some(8022)},
			Hosts:    map[string]model.Attributes{"h": {Username: model.Some("hostuser")}},
		},
	}
	p := New(testSettings, model.Attributes{}).Resolve(g)[0]
	if p.Port != 8022 || p.Username != "hostuser" || p.Password != "inlinepw" {
		t.Errorf("mixed-source record wrong: %+v", p)
	}
}

func TestResolve_EmptyStringIsAValue(t *testing.T) {
	g := model.Group{
		Name:    "g",
		Devices: []model.Device{{Address: "h", Inline: model.Attributes{Password: model.Some("")}}},
		Vars:    model.GroupVars{Defaults: model.Attributes{Password: model.Some("grouppw")}},
	}
	p := New(testSettings, model.Attributes{}).Resolve(g)[0]
	if p.Password != "" {
		t.Errorf("explicit empty password overridden by %q", p.Password)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := New(testSettings, model.Attributes{})
	g := branch1()
	first := r.Resolve(g)
	second := r.Resolve(g)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolving twice differs:\n%+v\n%+v", first, second)
	}
	for _, p := range first {
		if p.BackupFilename != first[0].BackupFilename {
			t.Errorf("devices of one run must share the backup filename")
		}
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	g := branch1()
	before := branch1()
	_ = New(testSettings, model.Attributes{}).Resolve(g)
	if !reflect.DeepEqual(g, before) {
		t.Errorf("Resolve mutated its input")
	}
}

func TestNew_FillsEmptySettings(t *testing.T) {
	r := New(model.BackupSettings{}, model.Attributes{})
	s := r.Settings()
	if s.Password != model.DefaultBackupPassword {
		t.Errorf("password = %q, want %q", s.Password, model.DefaultBackupPassword)
	}
	stamp, ok := strings.CutPrefix(s.Filename, model.DefaultBackupPrefix)
	if !ok {
		t.Fatalf("filename %q lacks prefix %q", s.Filename, model.DefaultBackupPrefix)
	}
	if _, err := time.Parse(model.BackupTimestampLayout, stamp); err != nil {
		t.Errorf("filename %q is not timestamp-derived: %v", s.Filename, err)
	}

	recs := r.Resolve(branch1())
	for _, p := range recs {
		if p.BackupFilename != s.Filename {
			t.Errorf("%s filename = %q, want shared %q", p.Hostname, p.BackupFilename, s.Filename)
		}
	}
}
