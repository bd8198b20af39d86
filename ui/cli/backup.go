// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/mikrobak/internal/history"
	"github.com/toeirei/mikrobak/internal/inventory"
	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/metrics"
	"github.com/toeirei/mikrobak/internal/model"
	"github.com/toeirei/mikrobak/internal/orchestrator"
	"github.com/toeirei/mikrobak/internal/remote"
	"github.com/toeirei/mikrobak/internal/resolve"
	"github.com/toeirei/mikrobak/internal/selector"
	"golang.org/x/term"
)

// ErrBackupFailed is returned when at least one device failed or a group
// could not be loaded.
var ErrBackupFailed = errors.New("backup failed")

// backupOptions holds flags that only affect the current invocation and have
// no configuration key.
type backupOptions struct {
	group       string
	dryRun      bool
	askPassword bool
}

// addBackupFlags registers the backup flags on cmd. Flags with a matching
// configuration key are bound by config.LoadConfig.
func addBackupFlags(cmd *cobra.Command, bo *backupOptions) {
	f := cmd.Flags()
	f.StringVarP(&bo.group, "group", "o", "", `Group or aggregate to back up (default "all")`)
	f.BoolVar(&bo.dryRun, "dry-run", false, "Resolve and list devices without connecting")
	f.BoolVar(&bo.askPassword, "ask-backup-password", false, "Prompt for the backup encryption password")
	f.Int("workers", 1, "Number of devices backed up concurrently")
	f.Duration("timeout", remote.DefaultTimeout, "SSH connect and handshake timeout")
	f.String("known-hosts", "", "known_hosts file used to verify device host keys")
	f.Bool("fetch", false, "Download the backup file over SFTP after saving")
	f.String("fetch-dir", "./backups", "Directory fetched backups are stored in")
	f.Bool("compress", false, "zstd-compress fetched backups")
	f.String("metrics-file", "", "Write Prometheus textfile metrics of the run to this path")
}

func newBackupCmd(a *app) *cobra.Command {
	bo := &backupOptions{}
	cmd := &cobra.Command{
		Use:   "backup [group]",
		Short: "Save an encrypted backup on every device of a group",
		Long: `Resolves the connection parameters of every device in the selected group,
group aggregate, or "all", and runs "system backup save" on each of them.
A device that fails is reported and the remaining devices still run. The
command exits non-zero when any device failed or any group could not be
loaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBackup(cmd, bo, args)
		},
	}
	addBackupFlags(cmd, bo)
	return cmd
}

// selection returns the requested group, preferring --group over the
// positional argument. An empty selection means all groups.
func (bo *backupOptions) selection(args []string) string {
	if bo.group != "" {
		return bo.group
	}
	if len(args) > 0 {
		return args[0]
	}
	return selector.All
}

func (a *app) runBackup(cmd *cobra.Command, bo *backupOptions, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := a.cfg

	if bo.askPassword {
		pw, err := readPassword(cmd, "Backup password: ")
		if err != nil {
			return fmt.Errorf("could not read backup password: %w", err)
		}
		cfg.DefaultParams.BackupPassword = pw
	}

	sel := bo.selection(args)
	loader := inventory.NewLoader(cfg.FolderPaths)
	groups, err := selector.New(loader).Select(sel)
	if err != nil {
		return err
	}
	logging.Debugf("selection %q: groups %v", sel, groups)

	var exec orchestrator.Executor
	if !bo.dryRun {
		e, err := remote.NewExecutor(remote.Options{
			Timeout:        cfg.SSH.Timeout,
			KnownHostsFile: cfg.SSH.KnownHosts,
			Fetch: remote.FetchOptions{
				Enabled:  cfg.Fetch.Enabled,
				Dir:      cfg.Fetch.Dir,
				Compress: cfg.Fetch.Compress,
			},
		})
		if err != nil {
			return err
		}
		exec = e
	}

	resolver := resolve.New(cfg.BackupSettings(time.Now()), cfg.FleetDefaults())
	orch := orchestrator.New(loader, resolver, exec, orchestrator.Options{
		Workers: cfg.Workers,
		DryRun:  bo.dryRun,
	})
	report := orch.Run(ctx, groups)
	report.Selection = sel

	printReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), report)
	a.recordRun(ctx, report)

	logging.Infof("run %s: %d succeeded, %d failed, %d group error(s)",
		report.ID, report.Succeeded(), report.Failed(), len(report.GroupErrs))
	if !report.OK() {
		return fmt.Errorf("%w: %d device(s) failed, %d group(s) not loaded",
			ErrBackupFailed, report.Failed(), len(report.GroupErrs))
	}
	return nil
}

// printReport writes one "<host> <message>" line per device in dispatch
// order, and one line per group that could not be loaded.
func printReport(out, errOut io.Writer, r model.Report) {
	for _, ge := range r.GroupErrs {
		fmt.Fprintf(errOut, "Error: %v\n", ge.Err)
	}
	for _, res := range r.Results {
		line := fmt.Sprintf("%s %s", res.Params.Hostname, res.Outcome.Message())
		if res.Outcome.FetchedPath != "" {
			line += " -> " + res.Outcome.FetchedPath
		}
		fmt.Fprintln(out, line)
	}
}

// recordRun stores the report in the history database and writes the
// metrics textfile when configured. Failures are logged, not returned.
func (a *app) recordRun(ctx context.Context, r model.Report) {
	if a.cfg.History.Type != "" {
		// A canceled run is still recorded.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		store, err := history.Open(hctx, a.cfg.History.Type, a.cfg.History.Dsn)
		if err != nil {
			logging.Warnf("history: %v", err)
		} else {
			if err := store.Record(hctx, r); err != nil {
				logging.Warnf("history: %v", err)
			}
			_ = store.Close()
		}
	}
	if a.cfg.Metrics.Textfile != "" {
		if err := metrics.Export(a.cfg.Metrics.Textfile, r); err != nil {
			logging.Warnf("metrics: %v", err)
		}
	}
}

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal, otherwise it reads one line from the command's input.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if in, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(in.Fd())) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
