// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/mikrobak/internal/inventory"
	"github.com/toeirei/mikrobak/internal/resolve"
	"github.com/toeirei/mikrobak/internal/selector"
)

const maskedSecret = "********"

// newResolveCmd prints the resolved parameter records without connecting.
func newResolveCmd(a *app) *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "resolve [group]",
		Short: "Print the resolved connection parameters of a group",
		Long: `Loads the selected group (or aggregate, or all groups) and prints the
parameters each device would be backed up with. Passwords are masked unless
--show-secrets is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := selector.All
			if len(args) > 0 {
				sel = args[0]
			}
			loader := inventory.NewLoader(a.cfg.FolderPaths)
			groups, err := selector.New(loader).Select(sel)
			if err != nil {
				return err
			}

			resolver := resolve.New(a.cfg.BackupSettings(time.Now()), a.cfg.FleetDefaults())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP\tHOST\tPORT\tUSERNAME\tPASSWORD\tBACKUP_FILENAME\tBACKUP_PASSWORD")
			var loadErrs []error
			for _, name := range groups {
				g, err := loader.Load(name)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					loadErrs = append(loadErrs, err)
					continue
				}
				for _, p := range resolver.Resolve(g) {
					pw, bpw := maskedSecret, maskedSecret
					if showSecrets {
						pw, bpw = p.Password, p.BackupPassword
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
						p.Group, p.Hostname, p.Port, p.Username, pw, p.BackupFilename, bpw)
				}
			}
			_ = w.Flush()
			return errors.Join(loadErrs...)
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print passwords in clear text")
	return cmd
}

// newGroupsCmd lists discoverable groups and the aggregates of the groups
// file.
func newGroupsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List groups and aggregates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := inventory.NewLoader(a.cfg.FolderPaths)
			groups, err := loader.Groups()
			if err != nil {
				return err
			}
			aggregates, err := loader.Aggregates()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Groups:")
			for _, g := range groups {
				fmt.Fprintf(out, "  %s\n", g)
			}
			if len(aggregates) == 0 {
				return nil
			}
			names := make([]string, 0, len(aggregates))
			for name := range aggregates {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(out, "Aggregates:")
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %s\n", name, strings.Join(aggregates[name], ", "))
			}
			return nil
		},
	}
}
