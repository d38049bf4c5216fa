package metric

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// Metrics holds every collector exported by the process.
type Metrics struct {
	InflightRequests prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec

	PoolRecreations *prometheus.CounterVec
	ConnectionLost  prometheus.Counter

	SweepRuns      *prometheus.CounterVec
	SweepMarked    prometheus.Counter
	SweepDuration  prometheus.Histogram
	SweepLastRunAt prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		InflightRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),

		PoolRecreations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "recreations_total",
			Help:      "Pool recreation attempts after a lost connection.",
		}, []string{"result"}),
		ConnectionLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "connection_lost_total",
			Help:      "Connection-lost errors observed by the pool.",
		}),

		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Overdue invoice sweep runs.",
		}, []string{"result"}),
		SweepMarked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "invoices_marked_total",
			Help:      "Invoices moved to overdue by the sweep.",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "run_duration_seconds",
			Help:      "Duration of overdue invoice sweep runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		SweepLastRunAt: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed sweep run.",
		}),
	}
}

// NewNop returns collectors registered nowhere, for callers that do not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

var _ prometheus.Collector = (*DBStatsCollector)(nil)

// DBStatsCollector exports database/sql pool statistics read through a function,
// so the collector keeps following the pool after it is replaced.
type DBStatsCollector struct {
	stats func() sql.DBStats

	maxOpen      *prometheus.Desc
	open         *prometheus.Desc
	inUse        *prometheus.Desc
	idle         *prometheus.Desc
	waitCount    *prometheus.Desc
	waitDuration *prometheus.Desc
}

func NewDBStatsCollector(stats func() sql.DBStats) *DBStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil)
	}

	return &DBStatsCollector{
		stats:        stats,
		maxOpen:      desc("max_open_connections", "Maximum number of open connections."),
		open:         desc("open_connections", "Established connections, in use and idle."),
		inUse:        desc("in_use_connections", "Connections currently checked out."),
		idle:         desc("idle_connections", "Idle connections."),
		waitCount:    desc("wait_count_total", "Acquisitions that had to wait, for the current pool."),
		waitDuration: desc("wait_duration_seconds_total", "Time spent waiting for a connection, for the current pool."),
	}
}

func (c *DBStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxOpen
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCount
	ch <- c.waitDuration
}

func (c *DBStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()

	ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(s.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, s.WaitDuration.Seconds())
}
