// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the data structures shared by the inventory loader,
// the parameter resolver and the backup orchestrator: device declarations,
// per-group variable overrides, resolved parameter records and backup
// outcomes.
package model // import "github.com/toeirei/mikrobak/internal/model"
