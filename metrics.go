package biomatch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus (see internal/telemetry for the server's collector).
type MetricsCollector interface {
	// RecordRegister is called after each registration attempt.
	// duration is the total time taken, err is nil if successful.
	RecordRegister(duration time.Duration, err error)

	// RecordCompare is called after each comparison.
	// population is the number of records scanned.
	RecordCompare(population int, duration time.Duration, err error)

	// RecordDelete is called after each delete.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRegister(time.Duration, error)     {}
func (NoopMetricsCollector) RecordCompare(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RegisterCount      atomic.Int64
	RegisterErrors     atomic.Int64
	RegisterTotalNanos atomic.Int64
	CompareCount       atomic.Int64
	CompareErrors      atomic.Int64
	CompareTotalNanos  atomic.Int64
	ComparedRecords    atomic.Int64
	DeleteCount        atomic.Int64
	DeleteErrors       atomic.Int64
}

// RecordRegister implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegister(duration time.Duration, err error) {
	b.RegisterCount.Add(1)
	b.RegisterTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RegisterErrors.Add(1)
	}
}

// RecordCompare implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompare(population int, duration time.Duration, err error) {
	b.CompareCount.Add(1)
	b.CompareTotalNanos.Add(duration.Nanoseconds())
	b.ComparedRecords.Add(int64(population))
	if err != nil {
		b.CompareErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}
