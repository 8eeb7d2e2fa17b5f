// Package metrics exposes Prometheus collectors for the ingestion engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wikigraph"

// Metrics holds the collectors updated during a load.
type Metrics struct {
	batches       *prometheus.CounterVec
	records       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	writes        *prometheus.CounterVec
	retries       *prometheus.CounterVec
	stashItems    prometheus.Gauge
	stageDuration *prometheus.GaugeVec
}

// New registers the collectors with reg. It returns nil when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &Metrics{
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Number of batches processed per stage",
		}, []string{"stage"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Number of corpus records extracted per stage",
		}, []string{"stage"}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time spent on one batch, from pull to last write",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Store writes by operation and outcome",
		}, []string{"operation", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_retries_total",
			Help:      "Store writes retried after a transient failure",
		}, []string{"operation"}),
		stashItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stash_items",
			Help:      "Literal claim items buffered in the grouping stash",
		}),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of the last run of each stage",
		}, []string{"stage"}),
	}
}

// BatchProcessed records a finished batch of n records.
func (m *Metrics) BatchProcessed(stage string, n int, d time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(stage).Inc()
	m.records.WithLabelValues(stage).Add(float64(n))
	m.batchDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StoreWrite records the outcome of one write, retries included.
func (m *Metrics) StoreWrite(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.writes.WithLabelValues(operation, outcome).Inc()
}

// WriteRetried records one retry of a write.
func (m *Metrics) WriteRetried(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// StashAdd moves the stash gauge by delta.
func (m *Metrics) StashAdd(delta int) {
	if m == nil {
		return
	}
	m.stashItems.Add(float64(delta))
}

// StageFinished records how long a stage ran.
func (m *Metrics) StageFinished(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}
