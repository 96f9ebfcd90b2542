package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quotaguard"

// RunMetrics collects the result of one guard run for the node_exporter
// textfile collector.
type RunMetrics struct {
	Path string

	registry    *prometheus.Registry
	utilization *prometheus.GaugeVec
	resetsAt    *prometheus.GaugeVec
	decision    *prometheus.GaugeVec
	waitSeconds prometheus.Gauge
	lastRun     prometheus.Gauge
}

// NewRunMetrics registers the run gauges on a private registry. Path is the
// textfile written by Flush; an empty path disables writing.
func NewRunMetrics(path string) *RunMetrics {
	m := &RunMetrics{
		Path:     path,
		registry: prometheus.NewRegistry(),
		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "utilization_percent",
				Help:      "Quota utilization reported by the usage endpoint",
			},
			[]string{"window"},
		),
		resetsAt: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "resets_at_timestamp_seconds",
				Help:      "Unix time at which the quota window resets",
			},
			[]string{"window"},
		),
		decision: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "decision",
				Help:      "Decision of the last run (1 for the active kind)",
			},
			[]string{"kind"},
		),
		waitSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "wait_seconds",
			Help:      "Seconds the last run blocked for",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last guard run",
		}),
	}

	m.registry.MustRegister(m.utilization, m.resetsAt, m.decision, m.waitSeconds, m.lastRun)
	return m
}

// ObserveWindow records utilization and reset time for a quota window.
func (m *RunMetrics) ObserveWindow(window string, percent float64, resetsAt *time.Time) {
	if m == nil {
		return
	}
	m.utilization.WithLabelValues(window).Set(percent)
	if resetsAt != nil {
		m.resetsAt.WithLabelValues(window).Set(float64(resetsAt.Unix()))
	}
}

// ObserveDecision records the decision kind and wait duration of the run.
func (m *RunMetrics) ObserveDecision(kind string, wait time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.decision.Reset()
	m.decision.WithLabelValues(kind).Set(1)
	m.waitSeconds.Set(wait.Seconds())
	m.lastRun.Set(float64(at.Unix()))
}

// Gatherer exposes the private registry.
func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Flush writes the registry to Path in text exposition format.
func (m *RunMetrics) Flush() error {
	if m == nil || m.Path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.Path, m.registry)
}
