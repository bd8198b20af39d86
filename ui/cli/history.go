// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/mikrobak/internal/history"
)

// ErrHistoryDisabled is returned by the history command when no history
// database is configured.
var ErrHistoryDisabled = errors.New("history is disabled: set history.type and history.dsn in the config file")

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded backup runs",
		Long: `Lists the most recent backup runs from the history database, newest first.
With --run, prints the per-device results of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.History.Type == "" {
				return ErrHistoryDisabled
			}
			store, err := history.Open(cmd.Context(), a.cfg.History.Type, a.cfg.History.Dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if runID != "" {
				results, err := store.Results(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "GROUP\tHOST\tPORT\tSTATUS\tDURATION\tMESSAGE")
				for _, r := range results {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
						r.Params.Group, r.Params.Hostname, r.Params.Port, r.Outcome.Status,
						r.Outcome.Duration.Round(time.Millisecond), r.Outcome.Message())
				}
				return nil
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tSTARTED\tSELECTION\tDEVICES\tOK\tFAILED\tGROUP_ERRORS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Selection,
					r.Devices, r.Succeeded, r.Failed, strings.Join(r.GroupErrors, "; "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the device results of this run")
	cmd.Flags().String("history-type", "", "History database type: sqlite, postgres or mysql")
	cmd.Flags().String("history-dsn", "", "History database DSN")
	return cmd
}
