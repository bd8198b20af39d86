// Copyright (c) 2026 Keymaster Team
// mikrobak - RouterOS fleet backup
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics exports the outcome of a run in the Prometheus text format
// for the node_exporter textfile collector.
package metrics // import "github.com/toeirei/mikrobak/internal/metrics"

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/toeirei/mikrobak/internal/model"
)

// RunMetrics holds the gauges describing one run on a private registry.
type RunMetrics struct {
	registry *prometheus.Registry

	lastRun        prometheus.Gauge
	runDuration    prometheus.Gauge
	devices        *prometheus.GaugeVec
	groupErrors    prometheus.Gauge
	deviceSuccess  *prometheus.GaugeVec
	deviceDuration *prometheus.GaugeVec
}

// New returns RunMetrics with all collectors registered.
func New() *RunMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &RunMetrics{
		registry: reg,
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "mikrobak_last_run_timestamp_seconds",
			Help: "Unix time the last backup run finished",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "mikrobak_run_duration_seconds",
			Help: "Wall clock duration of the last backup run",
		}),
		devices: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mikrobak_devices",
			Help: "Number of devices in the last run by outcome status",
		}, []string{"status"}),
		groupErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "mikrobak_group_errors",
			Help: "Number of groups that could not be loaded in the last run",
		}),
		deviceSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mikrobak_device_backup_success",
			Help: "1 if the last backup of the device succeeded, 0 otherwise",
		}, []string{"group", "host"}),
		deviceDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mikrobak_device_backup_duration_seconds",
			Help: "Duration of the last backup of the device",
		}, []string{"group", "host"}),
	}
}

// Observe sets every gauge from r. Skipped devices do not produce per-device
// series.
func (m *RunMetrics) Observe(r model.Report) {
	m.lastRun.Set(float64(r.FinishedAt.Unix()))
	m.runDuration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	m.groupErrors.Set(float64(len(r.GroupErrs)))

	for _, s := range []model.OutcomeStatus{model.StatusSuccess, model.StatusFailed, model.StatusCanceled, model.StatusSkipped} {
		m.devices.WithLabelValues(string(s)).Set(0)
	}
	for _, res := range r.Results {
		m.devices.WithLabelValues(string(res.Outcome.Status)).Inc()
		if res.Outcome.Status == model.StatusSkipped {
			continue
		}
		ok := 0.0
		if res.Outcome.Status == model.StatusSuccess {
			ok = 1
		}
		m.deviceSuccess.WithLabelValues(res.Params.Group, res.Params.Hostname).Set(ok)
		m.deviceDuration.WithLabelValues(res.Params.Group, res.Params.Hostname).Set(res.Outcome.Duration.Seconds())
	}
}

// WriteTextfile writes the registry to path atomically.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Export observes r and writes it to path.
func Export(path string, r model.Report) error {
	m := New()
	m.Observe(r)
	return m.WriteTextfile(path)
}
