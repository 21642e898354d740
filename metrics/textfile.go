// Package metrics exports the outcome of an audit in the Prometheus text format,
// suitable for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/liamg/portaudit/audit"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portaudit"

// Run summarises a single audit.
type Run struct {
	Host     string
	Verdict  audit.Verdict
	Open     audit.PortSet
	Allowed  audit.PortSet
	Scanned  int
	Duration time.Duration
}

// NewRegistry builds a registry holding one gauge per figure of the run.
func NewRegistry(run Run) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"host": run.Host}

	values := []struct {
		name  string
		help  string
		value float64
	}{
		{"status", "Audit status: 0 ok, 1 warning, 2 critical, 3 unknown.", float64(run.Verdict.Status.ExitCode())},
		{"open_ports", "Number of open ports found.", float64(run.Open.Len())},
		{"allowed_ports", "Number of ports on the allow-list.", float64(run.Allowed.Len())},
		{"unauthorized_open_ports", "Number of open ports missing from the allow-list.", float64(audit.UnauthorizedOpen(run.Open, run.Allowed).Len())},
		{"unused_allowed_ports", "Number of allowed ports that are not open.", float64(audit.UnusedAllowed(run.Open, run.Allowed).Len())},
		{"ports_scanned", "Number of ports probed.", float64(run.Scanned)},
		{"scan_duration_seconds", "Wall clock time spent scanning.", run.Duration.Seconds()},
		{"last_run_timestamp_seconds", "Unix time the audit finished.", float64(time.Now().Unix())},
	}

	for _, v := range values {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        v.name,
			Help:        v.help,
			ConstLabels: labels,
		})
		gauge.Set(v.value)
		if err := registry.Register(gauge); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// WriteTextfile atomically replaces path with the metrics of the run.
func WriteTextfile(path string, run Run) error {
	registry, err := NewRegistry(run)
	if err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, registry)
}
