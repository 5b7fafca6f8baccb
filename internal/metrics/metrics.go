// Package metrics holds the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts gateway decisions by outcome code.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Scan submissions by outcome.",
	}, []string{"outcome"})

	// AbsentMarkedTotal counts students swept into Absent, per shift.
	AbsentMarkedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_absent_marked_total",
		Help: "Students auto-marked absent by the sweep.",
	}, []string{"shift"})

	// SweepErrorsTotal counts per-student failures during sweeps.
	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_errors_total",
		Help: "Individual student failures during absence sweeps.",
	})
)

// RegisterDedupGauge exposes the live size of a dedup cache. Re-registering
// the same cache name is a no-op so short-lived gateways (tests) are safe.
func RegisterDedupGauge(name string, size func() float64) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "attendance_dedup_entries",
		Help:        "Live entries in a dedup cache.",
		ConstLabels: prometheus.Labels{"cache": name},
	}, size)
	_ = prometheus.Register(g)
}
