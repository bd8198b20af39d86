// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for mikrobak using Cobra.
// It loads the global configuration and wires the inventory loader, resolver,
// orchestrator and SSH executor together. Backup logic lives in the internal
// packages; the commands only parse flags and print results.
package cli
