// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toeirei/mikrobak/internal/config"
	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/model"
)

// hostExtensions are the recognized host-list file extensions, matched
// case-insensitively. For one base name a directory listing returns them in
// this order, so the first one present wins.
var hostExtensions = []string{".ini", ".yaml", ".yml"}

// Loader reads groups from the configured folders. It holds no state between
// calls; every Load reads the files again.
type Loader struct {
	hostsDir   string
	varsDir    string
	groupsFile string
}

// NewLoader creates a Loader for the given folder configuration.
func NewLoader(paths config.FolderPaths) *Loader {
	return &Loader{
		hostsDir:   paths.HostsFolderPath,
		varsDir:    paths.VarsFolderPath,
		groupsFile: paths.GroupsFile,
	}
}

// Load reads the host list and variables of one group.
//
// A missing host list yields ErrConfigNotFound. A missing variables file is
// not an error: the group simply has no overrides.
func (l *Loader) Load(group string) (model.Group, error) {
	if err := validateGroupName(group); err != nil {
		return model.Group{}, err
	}

	hostsPath, err := l.hostListPath(group)
	if err != nil {
		return model.Group{}, err
	}
	lines, err := readHostList(hostsPath)
	if err != nil {
		return model.Group{}, fmt.Errorf("group %s: %w", group, err)
	}

	g := model.Group{Name: group}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		decl, err := ParseDeclaration(line)
		if err != nil {
			return model.Group{}, fmt.Errorf("group %s (%s): %w", group, hostsPath, err)
		}
		if len(decl.Ignored) > 0 {
			logging.Warnf("group %s: host %s: ignoring unknown attributes %v", group, decl.Device.Address, decl.Ignored)
		}
		if _, dup := seen[decl.Device.Address]; dup {
			logging.Warnf("group %s: host %s declared more than once, keeping the first declaration", group, decl.Device.Address)
			continue
		}
		seen[decl.Device.Address] = struct{}{}
		g.Devices = append(g.Devices, decl.Device)
	}

	vars, err := readVars(filepath.Join(l.varsDir, group+".ini"), group)
	if err != nil {
		return model.Group{}, fmt.Errorf("group %s: %w", group, err)
	}
	g.Vars = vars
	return g, nil
}

// Groups lists the groups discoverable from the hosts folder, in directory
// listing order. A missing folder yields ErrConfigNotFound.
func (l *Loader) Groups() ([]string, error) {
	files, err := l.hostFiles()
	if err != nil {
		return nil, err
	}
	groups := make([]string, 0, len(files))
	for _, f := range files {
		if f.shadowed {
			logging.Warnf("hosts folder: %s shadowed by an earlier file for group %s", filepath.Base(f.path), f.group)
			continue
		}
		groups = append(groups, f.group)
	}
	return groups, nil
}

// hostFile is one host-list file found in the hosts folder.
type hostFile struct {
	group    string
	path     string
	shadowed bool
}

// hostFiles scans the hosts folder. Extensions match case-insensitively and
// the first file in listing order wins for a group name; later ones are
// marked shadowed. Groups and Load both go through here so discovery and
// loading always agree on the file.
func (l *Loader) hostFiles() ([]hostFile, error) {
	entries, err := os.ReadDir(l.hostsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: hosts folder %s", ErrConfigNotFound, l.hostsDir)
		}
		return nil, fmt.Errorf("failed to list hosts folder %s: %w", l.hostsDir, err)
	}

	var files []hostFile
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !isHostExtension(ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if name == "" {
			continue
		}
		_, dup := seen[name]
		seen[name] = struct{}{}
		files = append(files, hostFile{
			group:    name,
			path:     filepath.Join(l.hostsDir, e.Name()),
			shadowed: dup,
		})
	}
	return files, nil
}

// Aggregates reads the aggregate groupings file. A missing or unconfigured
// file yields an empty map.
func (l *Loader) Aggregates() (map[string][]string, error) {
	if l.groupsFile == "" {
		return map[string][]string{}, nil
	}
	if _, err := os.Stat(l.groupsFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, err
	}
	return readAggregates(l.groupsFile)
}

func (l *Loader) hostListPath(group string) (string, error) {
	files, err := l.hostFiles()
	if err != nil {
		return "", fmt.Errorf("group %s: %w", group, err)
	}
	for _, f := range files {
		if f.group == group && !f.shadowed {
			return f.path, nil
		}
	}
	return "", fmt.Errorf("%w: no host list for group %s in %s", ErrConfigNotFound, group, l.hostsDir)
}

func isHostExtension(ext string) bool {
	for _, e := range hostExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func validateGroupName(group string) error {
	if group == "" || group == "." || group == ".." || strings.ContainsAny(group, `/\`) {
		return fmt.Errorf("%w: invalid group name %q", ErrInvalidConfig, group)
	}
	return nil
}
