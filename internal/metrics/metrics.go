// Package metrics exposes Prometheus counters for batch submission and frame
// reconciliation. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the iomanager metrics.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted   *prometheus.CounterVec
	jobFailures     *prometheus.CounterVec
	rowsProcessed   *prometheus.CounterVec
	edits           *prometheus.CounterVec
	submitLatency   prometheus.Histogram
	batchDuration   prometheus.Histogram
	batchesInFlight prometheus.Gauge
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iomanager",
			Name:      "jobs_submitted_total",
			Help:      "Farm jobs accepted, by job kind.",
		}, []string{"kind"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iomanager",
			Name:      "job_submit_failures_total",
			Help:      "Farm submissions that failed, by job kind and failure class.",
		}, []string{"kind", "failure"}),
		rowsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iomanager",
			Name:      "rows_processed_total",
			Help:      "Rows handled by batch runs, by outcome.",
		}, []string{"outcome"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "iomanager",
			Name:      "reconcile_edits_total",
			Help:      "Frame edits applied, by field and result.",
		}, []string{"field", "result"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iomanager",
			Name:      "job_submit_seconds",
			Help:      "Latency of single farm submissions.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iomanager",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of batch runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		batchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "iomanager",
			Name:      "batches_in_flight",
			Help:      "Batch runs currently executing.",
		}),
	}
	c.registry.MustRegister(
		c.jobsSubmitted,
		c.jobFailures,
		c.rowsProcessed,
		c.edits,
		c.submitLatency,
		c.batchDuration,
		c.batchesInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// JobSubmitted records an accepted job.
func (c *Collector) JobSubmitted(kind string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.jobsSubmitted.WithLabelValues(kind).Inc()
	c.submitLatency.Observe(elapsed.Seconds())
}

// JobFailed records a rejected or timed-out submission.
func (c *Collector) JobFailed(kind, failure string) {
	if c == nil {
		return
	}
	c.jobFailures.WithLabelValues(kind, failure).Inc()
}

// RowProcessed records a row outcome.
func (c *Collector) RowProcessed(outcome string) {
	if c == nil {
		return
	}
	c.rowsProcessed.WithLabelValues(outcome).Inc()
}

// EditApplied records a reconcile edit; result is "applied" or "rejected".
func (c *Collector) EditApplied(field, result string) {
	if c == nil {
		return
	}
	c.edits.WithLabelValues(field, result).Inc()
}

// BatchStarted marks a batch as running and returns a func that records its
// duration when called.
func (c *Collector) BatchStarted() func() {
	if c == nil {
		return func() {}
	}
	start := time.Now()
	c.batchesInFlight.Inc()
	return func() {
		c.batchesInFlight.Dec()
		c.batchDuration.Observe(time.Since(start).Seconds())
	}
}
