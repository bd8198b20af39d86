// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// OutcomeStatus classifies the result of a single device dispatch.
type OutcomeStatus string

const (
	// StatusSuccess indicates the backup command was delivered.
	StatusSuccess OutcomeStatus = "success"

	// StatusFailed indicates a transport, authentication or execution error.
	StatusFailed OutcomeStatus = "failed"

	// StatusCanceled indicates the run was canceled before or during dispatch.
	StatusCanceled OutcomeStatus = "canceled"

	// StatusSkipped indicates the device was resolved but not contacted (dry run).
	StatusSkipped OutcomeStatus = "skipped"
)

// Outcome is the per-device result of a dispatch. It never carries a live
// error value so it can be stored and printed as is.
type Outcome struct {
	Status      OutcomeStatus
	Error       string
	FetchedPath string
	Duration    time.Duration
}

// Failed reports whether the outcome counts as a failure for the run.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed || o.Status == StatusCanceled
}

// Message returns the user-facing status line.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusSuccess:
		return "Backup created"
	case StatusSkipped:
		return "Skipped (dry run)"
	default:
		if o.Error != "" {
			return "Error: " + o.Error
		}
		return "Error: " + string(o.Status)
	}
}

// Result pairs a resolved record with its outcome.
type Result struct {
	Params  Params
	Outcome Outcome
}

// GroupError records a group that could not be resolved.
type GroupError struct {
	Group string
	Err   error
}

// Report is the aggregate of one run.
type Report struct {
	ID         string
	Selection  string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	GroupErrs  []GroupError
}

// Failed returns the number of failed or canceled devices.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of devices with a successful backup.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// OK reports whether every group resolved and no device failed.
func (r Report) OK() bool {
	return len(r.GroupErrs) == 0 && r.Failed() == 0
}
