// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/toeirei/mikrobak/internal/model"
)

func report() model.Report {
	start := time.Unix(1_700_000_000, 0)
	res := func(host string, status model.OutcomeStatus, d time.Duration) model.Result {
		return model.Result{
			Params:  model.Params{Group: "branch1", Hostname: host},
			Outcome: model.Outcome{Status: status, Duration: d},
		}
	}
	return model.Report{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Results: []model.Result{
			res("10.0.0.1", model.StatusSuccess, 2*time.Second),
			res("10.0.0.2", model.StatusFailed, 5*time.Second),
			res("10.0.0.3", model.StatusSuccess, time.Second),
		},
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(report())

	if got := testutil.ToFloat64(m.devices.WithLabelValues("success")); got != 2 {
		t.Errorf("success devices = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.devices.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed devices = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.devices.WithLabelValues("skipped")); got != 0 {
		t.Errorf("skipped devices = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.deviceSuccess.WithLabelValues("branch1", "10.0.0.2")); got != 0 {
		t.Errorf("failed device success gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.runDuration); got != 90 {
		t.Errorf("run duration = %v, want 90", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != 1_700_000_090 {
		t.Errorf("last run = %v", got)
	}
}

func TestObserve_SkippedHasNoDeviceSeries(t *testing.T) {
	m := New()
	m.Observe(model.Report{Results: []model.Result{{
		Params:  model.Params{Group: "g", Hostname: "h"},
		Outcome: model.Outcome{Status: model.StatusSkipped},
	}}})
	if n := testutil.CollectAndCount(m.deviceSuccess); n != 0 {
		t.Errorf("expected no per-device series for a dry run, got %d", n)
	}
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mikrobak.prom")
	if err := Export(path, report()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`mikrobak_devices{status="success"} 2`,
		`mikrobak_device_backup_success{group="branch1",host="10.0.0.1"} 1`,
		"# TYPE mikrobak_run_duration_seconds gauge",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q:\n%s", want, text)
		}
	}
}

func TestExport_BadPath(t *testing.T) {
	if err := Export(filepath.Join(t.TempDir(), "missing", "x.prom"), report()); err == nil {
		t.Fatalf("expected error for unwritable path")
	}
}
