// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// hostListDoc is the mapping form of a YAML host list.
type hostListDoc struct {
	Hosts []string `yaml:"hosts"`
}

// readHostList returns the raw declaration lines of a host-list file.
func readHostList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return parseYAMLHostList(data)
	default:
		return parseINIHostList(data)
	}
}

// parseYAMLHostList accepts either a top-level sequence of declarations or a
// mapping with a "hosts" sequence.
func parseYAMLHostList(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var lines []string
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&lines); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	case yaml.MappingNode:
		var m hostListDoc
		if err := root.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		lines = m.Hosts
	default:
		return nil, fmt.Errorf("%w: host list must be a sequence or a mapping with a hosts key", ErrInvalidConfig)
	}
	return nonEmpty(lines), nil
}

// parseINIHostList reads a host list written as INI: every non-comment line
// below any section header is one declaration. Declarations are not key=value
// pairs (the first token is a bare address), so lines are read verbatim.
func parseINIHostList(data []byte) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"), strings.HasPrefix(line, ";"):
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		default:
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func nonEmpty(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}
