// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package inventory reads the fleet inventory from disk: one host list and one
// optional variables file per group, plus an optional file of aggregate
// groupings. It turns raw declarations into typed model values and never
// applies precedence rules itself; that is the resolver's job.
//
// Layout:
//
//	hosts/<group>.yml|.yaml|.ini   host list (required)
//	vars/<group>.ini               per-device and group-default variables
//	groups.ini|groups.yml          aggregate groupings
package inventory
