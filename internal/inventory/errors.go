// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package inventory

import "errors"

// ErrConfigNotFound is returned when a group's host list does not exist.
var ErrConfigNotFound = errors.New("config not found")

// ErrInvalidConfig is returned when an inventory file cannot be parsed or
// holds an invalid value.
var ErrInvalidConfig = errors.New("invalid config")
