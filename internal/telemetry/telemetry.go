// Package telemetry exposes Prometheus metrics for the matching engine and
// its HTTP surface.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Throughput (Counters)
	RegisterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biomatch_register_requests_total",
		Help: "Total number of registration requests processed",
	}, []string{"result"})

	CompareRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biomatch_compare_requests_total",
		Help: "Total number of comparison requests processed",
	}, []string{"result"})

	DeleteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biomatch_delete_requests_total",
		Help: "Total number of delete requests processed",
	}, []string{"result"})

	// Latency (Histograms)
	RegisterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "biomatch_register_duration_seconds",
		Help:    "Time taken to process registrations (extraction + dedup scan + insert)",
		Buckets: prometheus.DefBuckets,
	})

	CompareDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "biomatch_compare_duration_seconds",
		Help:    "Time taken to process comparisons (extraction + population scan)",
		Buckets: prometheus.DefBuckets,
	})

	// State (Gauges)
	ScannedPopulation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "biomatch_scanned_population",
		Help: "Population size of the most recent comparison scan",
	})

	// HTTP layer
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biomatch_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biomatch_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Collector feeds engine operation metrics into Prometheus. It satisfies the
// engine's MetricsCollector interface.
type Collector struct{}

func (Collector) RecordRegister(duration time.Duration, err error) {
	RegisterRequests.WithLabelValues(result(err)).Inc()
	RegisterDuration.Observe(duration.Seconds())
}

func (Collector) RecordCompare(population int, duration time.Duration, err error) {
	CompareRequests.WithLabelValues(result(err)).Inc()
	CompareDuration.Observe(duration.Seconds())
	ScannedPopulation.Set(float64(population))
}

func (Collector) RecordDelete(duration time.Duration, err error) {
	DeleteRequests.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
