// Package metrics exposes Prometheus collectors for the workbench.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pushchain/piet/workbench/history"
)

const namespace = "piet"

// Metrics groups the orchestrator collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	readCalls          *prometheus.CounterVec
	readDuration       prometheus.Histogram
	estimationFailures *prometheus.CounterVec
	transactions       *prometheus.CounterVec
	historySize        prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		readCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "read_total",
			Help:      "Read-only contract calls by outcome",
		}, []string{"outcome"}),
		readDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calls",
			Name:      "read_duration_seconds",
			Help:      "Duration of read-only contract calls",
			Buckets:   prometheus.DefBuckets,
		}),
		estimationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gas",
			Name:      "estimation_failures_total",
			Help:      "Gas estimations that failed, by operation",
		}, []string{"operation"}),
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "records_total",
			Help:      "Recorded transactions by kind and outcome",
		}, []string{"kind", "outcome"}),
		historySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "size",
			Help:      "Number of records in the session history",
		}),
	}
}

// ObserveRead records one read call.
func (m *Metrics) ObserveRead(err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.readCalls.WithLabelValues(outcome).Inc()
	m.readDuration.Observe(took.Seconds())
}

// EstimationFailed counts a failed gas estimation for operation.
func (m *Metrics) EstimationFailed(operation string) {
	if m == nil {
		return
	}
	m.estimationFailures.WithLabelValues(operation).Inc()
}

// ObserveRecord counts an appended history record.
func (m *Metrics) ObserveRecord(r history.TransactionRecord) {
	if m == nil {
		return
	}
	kind := "call"
	if r.IsDeployment() {
		kind = "deployment"
	}
	outcome := "success"
	switch {
	case r.Result.Failed():
		outcome = "error"
	case r.Result.Reverted():
		outcome = "reverted"
	}
	m.transactions.WithLabelValues(kind, outcome).Inc()
	m.historySize.Inc()
}

// Attach counts every record appended to log from now on.
func (m *Metrics) Attach(log *history.Log) {
	if m == nil || log == nil {
		return
	}
	m.historySize.Add(float64(log.Len()))
	log.OnAppend(m.ObserveRecord)
}
