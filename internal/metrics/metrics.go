// Package metrics exposes Prometheus instrumentation for payroll
// calculations and runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rgehrsitz/paycalc/internal/batch"
)

const namespace = "paycalc"

// Metrics implements batch.Recorder on Prometheus collectors.
type Metrics struct {
	calculations *prometheus.CounterVec
	duration     prometheus.Histogram
	runs         *prometheus.CounterVec
	negativeNet  prometheus.Counter
	httpRequests *prometheus.CounterVec
}

var _ batch.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Payslip calculations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Duration of one payslip calculation.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Payroll runs by final status.",
		}, []string{"status"}),
		negativeNet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negative_net_total",
			Help:      "Payslips whose deductions exceed gross pay.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.calculations, m.duration, m.runs, m.negativeNet, m.httpRequests)
	}
	return m
}

// ObserveCalculation records one calculation.
func (m *Metrics) ObserveCalculation(outcome string, d time.Duration) {
	m.calculations.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

// ObserveNegativeNet records a payslip with negative net pay.
func (m *Metrics) ObserveNegativeNet() {
	m.negativeNet.Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status batch.RunStatus) {
	m.runs.WithLabelValues(string(status)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, code string) {
	m.httpRequests.WithLabelValues(route, code).Inc()
}
