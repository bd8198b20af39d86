// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package orchestrator drives a backup run: it loads and resolves every
// selected group, dispatches each device to the executor and collects one
// outcome per device into a report.
package orchestrator // import "github.com/toeirei/mikrobak/internal/orchestrator"

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/toeirei/mikrobak/internal/logging"
	"github.com/toeirei/mikrobak/internal/model"
	"github.com/toeirei/mikrobak/internal/remote"
	"github.com/toeirei/mikrobak/internal/resolve"
	"golang.org/x/sync/errgroup"
)

// Source loads one group from the inventory.
type Source interface {
	Load(group string) (model.Group, error)
}

// Executor performs the backup on a single device.
type Executor interface {
	Backup(ctx context.Context, p model.Params) (remote.Result, error)
}

// Options tunes a run.
type Options struct {
	// Workers bounds concurrent dispatches. Values below 1 mean 1.
	Workers int
	// DryRun resolves every device but contacts none.
	DryRun bool
	// OnResult, when set, is called once per device as soon as its outcome
	// is known. Calls may come from several goroutines.
	OnResult func(model.Result)
}

// Orchestrator runs backups for a set of groups.
type Orchestrator struct {
	src      Source
	resolver *resolve.Resolver
	exec     Executor
	opts     Options
	now      func() time.Time
}

// New returns an Orchestrator. exec may be nil when opts.DryRun is set.
func New(src Source, resolver *resolve.Resolver, exec Executor, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{src: src, resolver: resolver, exec: exec, opts: opts, now: time.Now}
}

// Run processes groups in order. A group that fails to load is recorded in
// Report.GroupErrs and the remaining groups still run. Every resolved device
// gets exactly one Result, in group order then declaration order.
func (o *Orchestrator) Run(ctx context.Context, groups []string) model.Report {
	report := model.Report{
		ID:        uuid.NewString(),
		Selection: strings.Join(groups, ","),
		StartedAt: o.now(),
	}

	var params []model.Params
	for _, name := range groups {
		g, err := o.src.Load(name)
		if err != nil {
			logging.Errorf("group %s: %v", name, err)
			report.GroupErrs = append(report.GroupErrs, model.GroupError{Group: name, Err: err})
			continue
		}
		resolved := o.resolver.Resolve(g)
		logging.Debugf("group %s: %d device(s)", name, len(resolved))
		params = append(params, resolved...)
	}

	report.Results = o.dispatch(ctx, params)
	report.FinishedAt = o.now()
	return report
}

func (o *Orchestrator) dispatch(ctx context.Context, params []model.Params) []model.Result {
	results := make([]model.Result, len(params))

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, p := range params {
		if err := ctx.Err(); err != nil {
			o.record(results, i, model.Result{Params: p, Outcome: canceledOutcome(err)})
			continue
		}
		g.Go(func() error {
			o.record(results, i, model.Result{Params: p, Outcome: o.backup(ctx, p)})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// record stores r at index i. Each index is written by exactly one goroutine.
func (o *Orchestrator) record(results []model.Result, i int, r model.Result) {
	results[i] = r
	if o.opts.OnResult != nil {
		o.opts.OnResult(r)
	}
}

func (o *Orchestrator) backup(ctx context.Context, p model.Params) model.Outcome {
	log := logging.With("group", p.Group, "host", p.Hostname)
	if o.opts.DryRun {
		log.Debug("dry run, not contacting device")
		return model.Outcome{Status: model.StatusSkipped}
	}
	if err := ctx.Err(); err != nil {
		return canceledOutcome(err)
	}

	start := o.now()
	res, err := o.exec.Backup(ctx, p)
	elapsed := o.now().Sub(start)
	if err != nil {
		log.Warn("backup failed", "err", err)
		status := model.StatusFailed
		var ce *remote.ConnectionError
		if errors.As(err, &ce) && ce.Kind == remote.KindCanceled {
			status = model.StatusCanceled
		}
		return model.Outcome{Status: status, Error: err.Error(), Duration: elapsed}
	}
	log.Debug("backup created", "duration", elapsed)
	return model.Outcome{Status: model.StatusSuccess, FetchedPath: res.FetchedPath, Duration: elapsed}
}

func canceledOutcome(err error) model.Outcome {
	return model.Outcome{Status: model.StatusCanceled, Error: err.Error()}
}
