// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"errors"
	"reflect"
	"testing"

	"github.com/toeirei/mikrobak/internal/model"
)

func TestParseDeclaration(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    model.Device
		ignored []string
	}{
		{
			name: "bare address",
			line: "10.0.0.2",
			want: model.Device{Address: "10.0.0.2"},
		},
		{
			name: "port only",
			line: "10.0.0.1 port=2222",
			want: model.Device{Address: "10.0.0.1", Inline: model.Attributes{Port: model.Some(2222)}},
		},
		{
			name: "user alias and quoted password",
			line: `core-rtr user=ops password="p a ss"`,
			want: model.Device{Address: "core-rtr", Inline: model.Attributes{
				Username: model.Some("ops"),
				Password: model.Some("p a ss"),
			}},
		},
		{
			name: "space separated form",
			line: "10.0.0.3 port 8022 username netadmin",
			want: model.Device{Address: "10.0.0.3", Inline: model.Attributes{
				Port:     model.Some(8022),
				Username: model.Some("netadmin"),
			}},
		},
		{
			name: "spaces around equals",
			line: "10.0.0.4 port = 2200",
			want: model.Device{Address: "10.0.0.4", Inline: model.Attributes{Port: model.Some(2200)}},
		},
		{
			name: "empty password is present",
			line: "10.0.0.5 password=",
			want: model.Device{Address: "10.0.0.5", Inline: model.Attributes{Password: model.Some("")}},
		},
		{
			name:    "unknown keys reported",
			line:    "10.0.0.6 vlan=10 port=22 stray",
			want:    model.Device{Address: "10.0.0.6", Inline: model.Attributes{Port: model.Some(22)}},
			ignored: []string{"vlan=10", "stray"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeclaration(tt.line)
			if err != nil {
				t.Fatalf("ParseDeclaration(%q) error: %v", tt.line, err)
			}
			if !reflect.DeepEqual(got.Device, tt.want) {
				t.Errorf("device = %+v, want %+v", got.Device, tt.want)
			}
			if !reflect.DeepEqual(got.Ignored, tt.ignored) {
				t.Errorf("ignored = %v, want %v", got.Ignored, tt.ignored)
			}
		})
	}
}

func TestParseDeclaration_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", "   "},
		{"non numeric port", "10.0.0.1 port=ssh"},
		{"port out of range", "10.0.0.1 port=70000"},
		{"unterminated quote", `10.0.0.1 password="abc`},
		{"no address", "port=22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeclaration(tt.line)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
