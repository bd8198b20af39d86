// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package selector decides which groups a run operates on.
package selector

import (
	"errors"
	"fmt"
	"strings"
)

// All is the selection argument meaning every discoverable group.
const All = "all"

// ErrUnknownGroup is returned when the argument matches neither an aggregate
// grouping nor a discoverable group.
var ErrUnknownGroup = errors.New("unknown group name")

// Source lists groups and aggregate groupings. *inventory.Loader implements it.
type Source interface {
	Groups() ([]string, error)
	Aggregates() (map[string][]string, error)
}

// Selector resolves selection arguments against a Source.
type Selector struct {
	src Source
}

// New returns a Selector backed by src.
func New(src Source) *Selector {
	return &Selector{src: src}
}

// Select returns the ordered group names for arg. An empty arg or "all"
// selects every discoverable group in listing order. An aggregate name
// expands to its members in declared order with duplicates dropped. Any other
// value must name a discoverable group.
func (s *Selector) Select(arg string) ([]string, error) {
	arg = strings.TrimSpace(arg)

	if arg == "" || strings.EqualFold(arg, All) {
		groups, err := s.src.Groups()
		if err != nil {
			return nil, err
		}
		return groups, nil
	}

	aggregates, err := s.src.Aggregates()
	if err != nil {
		return nil, err
	}
	if members, ok := aggregates[arg]; ok {
		return dedupe(members), nil
	}

	groups, err := s.src.Groups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g == arg {
			return []string{g}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, arg)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
