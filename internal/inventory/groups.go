// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// readAggregates parses an aggregate groupings file. In INI form each section
// is an aggregate and each key a member group; in YAML form it is a mapping
// from aggregate name to a list of member groups.
func readAggregates(path string) (map[string][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		out := map[string][]string{}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		return out, nil
	default:
		f, err := ini.LoadSources(ini.LoadOptions{
			AllowBooleanKeys:    true,
			IgnoreInlineComment: true,
		}, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		out := map[string][]string{}
		for _, sec := range f.Sections() {
			if sec.Name() == ini.DefaultSection {
				continue
			}
			members := make([]string, 0, len(sec.Keys()))
			for _, k := range sec.Keys() {
				members = append(members, k.Name())
			}
			out[sec.Name()] = members
		}
		return out, nil
	}
}
