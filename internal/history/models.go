// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package history

import (
	"strings"
	"time"

	"github.com/toeirei/mikrobak/internal/model"
	"github.com/uptrace/bun"
)

type runModel struct {
	bun.BaseModel `bun:"table:backup_runs"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	Selection     string    `bun:"selection"`
	StartedAt     time.Time `bun:"started_at"`
	FinishedAt    time.Time `bun:"finished_at"`
	Devices       int       `bun:"devices"`
	Succeeded     int       `bun:"succeeded"`
	Failed        int       `bun:"failed"`
	GroupErrors   string    `bun:"group_errors,type:text"`
}

type resultModel struct {
	bun.BaseModel  `bun:"table:backup_results"`
	ID             int64  `bun:"id,pk,autoincrement"`
	RunID          string `bun:"run_id,type:varchar(36)"`
	Seq            int    `bun:"seq"`
	GroupName      string `bun:"group_name"`
	Hostname       string `bun:"hostname"`
	Port           int    `bun:"port"`
	Username       string `bun:"username"`
	BackupFilename string `bun:"backup_filename"`
	Status         string `bun:"status"`
	Error          string `bun:"error,type:text"`
	FetchedPath    string `bun:"fetched_path,type:text"`
	DurationMs     int64  `bun:"duration_ms"`
}

// groupErrorSep separates group errors in the group_errors column.
const groupErrorSep = "\n"

func runFromReport(r model.Report) runModel {
	errs := make([]string, len(r.GroupErrs))
	for i, ge := range r.GroupErrs {
		errs[i] = ge.Group + ": " + ge.Err.Error()
	}
	return runModel{
		ID:          r.ID,
		Selection:   r.Selection,
		StartedAt:   r.StartedAt.UTC(),
		FinishedAt:  r.FinishedAt.UTC(),
		Devices:     len(r.Results),
		Succeeded:   r.Succeeded(),
		Failed:      r.Failed(),
		GroupErrors: strings.Join(errs, groupErrorSep),
	}
}

func (m runModel) toRun() Run {
	var errs []string
	if m.GroupErrors != "" {
		errs = strings.Split(m.GroupErrors, groupErrorSep)
	}
	return Run{
		ID:          m.ID,
		Selection:   m.Selection,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Devices:     m.Devices,
		Succeeded:   m.Succeeded,
		Failed:      m.Failed,
		GroupErrors: errs,
	}
}

func resultFromModel(runID string, seq int, r model.Result) resultModel {
	return resultModel{
		RunID:          runID,
		Seq:            seq,
		GroupName:      r.Params.Group,
		Hostname:       r.Params.Hostname,
		Port:           r.Params.Port,
		Username:       r.Params.Username,
		BackupFilename: r.Params.BackupFilename,
		Status:         string(r.Outcome.Status),
		Error:          r.Outcome.Error,
		FetchedPath:    r.Outcome.FetchedPath,
		DurationMs:     r.Outcome.Duration.Milliseconds(),
	}
}

func (m resultModel) toResult() model.Result {
	return model.Result{
		Params: model.Params{
			Group:          m.GroupName,
			Hostname:       m.Hostname,
			Port:           m.Port,
			Username:       m.Username,
			BackupFilename: m.BackupFilename,
		},
		Outcome: model.Outcome{
			Status:      model.OutcomeStatus(m.Status),
			Error:       m.Error,
			FetchedPath: m.FetchedPath,
			Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		},
	}
}
