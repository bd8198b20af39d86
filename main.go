// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for mikrobak.
//
// Usage:
//
//	go run . [group] [flags]
//	./mikrobak [group] [flags]
//
// This runs a backup of the given group (default: all groups). See --help
// for the other commands.
package main

import (
	"os"

	"github.com/toeirei/mikrobak/ui/cli"
)

func main() {
	// cobra already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
