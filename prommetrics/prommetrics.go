// Package prommetrics exports index build and range query metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/mindex"
)

// Collector implements mindex.MetricsCollector with Prometheus counters and
// histograms.
type Collector struct {
	BuildsTotal          *prometheus.CounterVec
	BuildDuration        prometheus.Histogram
	BuildObjects         prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        prometheus.Histogram
	PrunedClustersTotal  *prometheus.CounterVec
	CandidatesPerQuery   prometheus.Histogram
	DistancesPerQuery    prometheus.Histogram
	ResultsPerQuery      prometheus.Histogram
	FilteredByPivotTotal prometheus.Counter
}

var _ mindex.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers it with reg. A nil reg leaves the
// metrics unregistered.
func New(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of index builds",
		}, []string{"status"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		BuildObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_objects",
			Help:      "Number of objects in the last successful build",
		}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "range_queries_total",
			Help:      "Total number of range queries",
		}, []string{"status"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "range_query_duration_seconds",
			Help:      "Duration of range queries",
			Buckets:   prometheus.DefBuckets,
		}),
		PrunedClustersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_clusters_total",
			Help:      "Clusters skipped by range queries",
		}, []string{"rule"}),
		CandidatesPerQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "range_query_candidates",
			Help:      "Distinct candidates scanned per range query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		DistancesPerQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "range_query_distance_computations",
			Help:      "Exact distance evaluations per range query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ResultsPerQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "range_query_results",
			Help:      "Results returned per range query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		FilteredByPivotTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pivot_filtered_candidates_total",
			Help:      "Candidates discarded by the pivot lower bound",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.BuildsTotal,
			c.BuildDuration,
			c.BuildObjects,
			c.QueriesTotal,
			c.QueryDuration,
			c.PrunedClustersTotal,
			c.CandidatesPerQuery,
			c.DistancesPerQuery,
			c.ResultsPerQuery,
			c.FilteredByPivotTotal,
		)
	}

	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild implements mindex.MetricsCollector.
func (c *Collector) RecordBuild(objects int, duration time.Duration, err error) {
	c.BuildsTotal.WithLabelValues(status(err)).Inc()
	c.BuildDuration.Observe(duration.Seconds())
	if err == nil {
		c.BuildObjects.Set(float64(objects))
	}
}

// RecordRangeQuery implements mindex.MetricsCollector.
func (c *Collector) RecordRangeQuery(stats mindex.QueryStats, duration time.Duration, err error) {
	c.QueriesTotal.WithLabelValues(status(err)).Inc()
	c.QueryDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}

	c.PrunedClustersTotal.WithLabelValues("double_pivot").Add(float64(stats.PrunedByDoublePivot))
	c.PrunedClustersTotal.WithLabelValues("range").Add(float64(stats.PrunedByRange))
	c.CandidatesPerQuery.Observe(float64(stats.Candidates))
	c.DistancesPerQuery.Observe(float64(stats.DistanceComputations))
	c.ResultsPerQuery.Observe(float64(stats.Results))
	c.FilteredByPivotTotal.Add(float64(stats.FilteredByPivots))
}
