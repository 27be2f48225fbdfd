package mindex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each build.
	// objects is the number of indexed objects, err is nil if successful.
	RecordBuild(objects int, duration time.Duration, err error)

	// RecordRangeQuery is called after each range query.
	// stats describes the pruning work, err is nil if successful.
	RecordRangeQuery(stats QueryStats, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordRangeQuery(QueryStats, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildObjects    atomic.Int64
	BuildTotalNanos atomic.Int64

	QueryCount          atomic.Int64
	QueryErrors         atomic.Int64
	QueryTotalNanos     atomic.Int64
	QueryPrunedClusters atomic.Int64
	QueryCandidates     atomic.Int64
	QueryDistanceChecks atomic.Int64
	QueryResults        atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(objects int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildObjects.Add(int64(objects))
}

// RecordRangeQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeQuery(stats QueryStats, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryPrunedClusters.Add(int64(stats.PrunedByDoublePivot + stats.PrunedByRange))
	b.QueryCandidates.Add(int64(stats.Candidates))
	b.QueryDistanceChecks.Add(int64(stats.DistanceComputations))
	b.QueryResults.Add(int64(stats.Results))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:          b.BuildCount.Load(),
		BuildErrors:         b.BuildErrors.Load(),
		BuildObjects:        b.BuildObjects.Load(),
		BuildAvgNanos:       avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		QueryCount:          b.QueryCount.Load(),
		QueryErrors:         b.QueryErrors.Load(),
		QueryAvgNanos:       avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		QueryPrunedClusters: b.QueryPrunedClusters.Load(),
		QueryCandidates:     b.QueryCandidates.Load(),
		QueryDistanceChecks: b.QueryDistanceChecks.Load(),
		QueryResults:        b.QueryResults.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount          int64
	BuildErrors         int64
	BuildObjects        int64
	BuildAvgNanos       int64
	QueryCount          int64
	QueryErrors         int64
	QueryAvgNanos       int64
	QueryPrunedClusters int64
	QueryCandidates     int64
	QueryDistanceChecks int64
	QueryResults        int64
}
