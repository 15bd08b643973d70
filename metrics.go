package filesaga

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems. The
// internal/metrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordCreate is called after each create-file call.
	// duration is the total time taken, err is nil if successful.
	RecordCreate(duration time.Duration, err error)

	// RecordCompensation is called after each attempt to delete a master
	// entry that the failed call had created. err is nil if it was removed.
	RecordCompensation(err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCreate(time.Duration, error) {}
func (NoopMetricsCollector) RecordCompensation(error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	CreateCount        atomic.Int64
	CreateErrors       atomic.Int64
	CreateTotalNanos   atomic.Int64
	CompensationCount  atomic.Int64
	CompensationErrors atomic.Int64
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(duration time.Duration, err error) {
	b.CreateCount.Add(1)
	b.CreateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordCompensation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompensation(err error) {
	b.CompensationCount.Add(1)
	if err != nil {
		b.CompensationErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CreateCount:        b.CreateCount.Load(),
		CreateErrors:       b.CreateErrors.Load(),
		CreateAvgNanos:     b.getAvgCreateNanos(),
		CompensationCount:  b.CompensationCount.Load(),
		CompensationErrors: b.CompensationErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCreateNanos() int64 {
	count := b.CreateCount.Load()
	if count == 0 {
		return 0
	}
	return b.CreateTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CreateCount        int64
	CreateErrors       int64
	CreateAvgNanos     int64
	CompensationCount  int64
	CompensationErrors int64
}
