// Package metrics defines Prometheus metrics for autobot.
//
// All metrics are registered with a package registry served by Handler, so
// the exposition contains only autobot series plus the Go and process
// collectors.
//
// Metric naming follows Prometheus conventions:
//   - autobot_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every autobot collector
	Registry = prometheus.NewRegistry()

	// ScansTotal counts scan runs that completed.
	ScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autobot_scans_total",
			Help: "Total number of completed scan runs.",
		},
	)

	// ScanHostsTotal counts scanned addresses by detection technique.
	ScanHostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobot_scan_hosts_total",
			Help: "Total scanned addresses by detection technique.",
		},
		[]string{"detection"},
	)

	// RemoteSweepFailuresTotal counts remote sweeps that returned nothing
	// because the intermediary could not be used.
	RemoteSweepFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autobot_remote_sweep_failures_total",
			Help: "Total remote sweeps that failed and were treated as empty.",
		},
	)

	// ScanInProgress is 1 while a scan run is executing.
	ScanInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autobot_scan_in_progress",
			Help: "Whether a scan run is currently executing.",
		},
	)

	// DeploymentsTotal counts configuration pushes by terminal status.
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobot_deployments_total",
			Help: "Total configuration pushes by status.",
		},
		[]string{"status"},
	)

	// DeploymentDurationSeconds is a histogram of push duration.
	DeploymentDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autobot_deployment_duration_seconds",
			Help:    "Duration of configuration pushes in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ScansTotal,
		ScanHostsTotal,
		RemoteSweepFailuresTotal,
		ScanInProgress,
		DeploymentsTotal,
		DeploymentDurationSeconds,
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordScanStarted marks a scan run as executing.
func RecordScanStarted() {
	ScanInProgress.Set(1)
}

// RecordScanComplete records metrics for a finished scan run.
func RecordScanComplete() {
	ScansTotal.Inc()
	ScanInProgress.Set(0)
}

// RecordHost records the verdict for one scanned address.
func RecordHost(detection string) {
	ScanHostsTotal.WithLabelValues(detection).Inc()
}

// RecordRemoteSweepFailure records a remote sweep that degraded to empty.
func RecordRemoteSweepFailure() {
	RemoteSweepFailuresTotal.Inc()
}

// RecordDeployment records metrics for a finished configuration push.
func RecordDeployment(status string, duration time.Duration) {
	DeploymentsTotal.WithLabelValues(status).Inc()
	DeploymentDurationSeconds.Observe(duration.Seconds())
}
