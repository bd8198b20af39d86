// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/mikrobak/internal/config"
)

// newInitCmd writes the effective configuration to a config file so it can
// be edited.
func newInitCmd(a *app) *cobra.Command {
	var system, force bool
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Writes the current effective configuration (defaults plus any values from an
existing config, environment and flags) as YAML. By default the file goes to
the user config directory; --system writes to the system location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			if target == "" {
				p, err := config.GetConfigPath(system)
				if err != nil {
					return err
				}
				target = p
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", target)
			}

			var err error
			if path != "" {
				err = config.WriteConfigFileTo(&a.cfg, path)
			} else {
				target, err = config.WriteConfigFile(&a.cfg, system)
			}
			if err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "Write to the system config location")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&path, "path", "", "Write to this path instead")
	return cmd
}
