// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/model"
	"gopkg.in/ini.v1"
)

// readVars loads a group's variables file. Sections named after the group
// (or "<group>:vars") hold the group defaults; every other section is keyed
// by device address.
func readVars(path, group string) (model.GroupVars, error) {
	vars := model.GroupVars{Hosts: map[string]model.Attributes{}}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debugf("group %s: no variables file at %s", group, path)
			return vars, nil
		}
		return vars, err
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:    true,
		Loose:               true,
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return vars, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	// Group section beats "<group>:vars", which beats keys above any section.
	var named, suffixed, unsectioned model.Attributes
	for _, sec := range f.Sections() {
		name := sec.Name()
		attrs, err := sectionAttributes(sec)
		if err != nil {
			return vars, fmt.Errorf("%s [%s]: %w", path, name, err)
		}
		switch name {
		case ini.DefaultSection:
			unsectioned = attrs
		case group:
			named = attrs
		case group + ":vars":
			suffixed = attrs
		default:
			vars.Hosts[name] = attrs
		}
	}
	vars.Defaults = named.Merge(suffixed).Merge(unsectioned)
	return vars, nil
}

func sectionAttributes(sec *ini.Section) (model.Attributes, error) {
	var a model.Attributes
	for _, k := range sec.Keys() {
		ok, err := setAttribute(&a, k.Name(), unquote(k.Value()))
		if err != nil {
			return a, err
		}
		if !ok {
			logging.Debugf("variables [%s]: ignoring key %s", sec.Name(), k.Name())
		}
	}
	return a, nil
}
