// Package telemetry records eager-load metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives fetch and resolve observations from the resolver.
type Recorder interface {
	FetchCompleted(kind, table string, rows int, elapsed time.Duration, err error)
	ResolveCompleted(table string, queries int, elapsed time.Duration, err error)
}

// Noop discards all observations.
type Noop struct{}

// FetchCompleted implements Recorder.
func (Noop) FetchCompleted(string, string, int, time.Duration, error) {}

// ResolveCompleted implements Recorder.
func (Noop) ResolveCompleted(string, int, time.Duration, error) {}

// Metrics is a Prometheus-backed Recorder.
type Metrics struct {
	fetchesTotal      *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	rowsFetched       *prometheus.CounterVec
	resolvesTotal     *prometheus.CounterVec
	resolveDuration   *prometheus.HistogramVec
	queriesPerResolve *prometheus.HistogramVec
}

// NewMetrics creates the eager-load collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eagerload_fetches_total",
				Help: "Total number of eager-load fetches dispatched to the source",
			},
			[]string{"kind", "table", "status"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eagerload_fetch_duration_seconds",
				Help:    "Eager-load fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "table"},
		),
		rowsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eagerload_rows_fetched_total",
				Help: "Total number of related rows returned by eager-load fetches",
			},
			[]string{"kind", "table"},
		),
		resolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eagerload_resolves_total",
				Help: "Total number of eager-load resolutions",
			},
			[]string{"table", "status"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eagerload_resolve_duration_seconds",
				Help:    "Eager-load resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table"},
		),
		queriesPerResolve: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eagerload_queries_per_resolve",
				Help:    "Number of queries issued per eager-load resolution",
				Buckets: prometheus.LinearBuckets(0, 2, 10),
			},
			[]string{"table"},
		),
	}

	collectors := []prometheus.Collector{
		m.fetchesTotal, m.fetchDuration, m.rowsFetched,
		m.resolvesTotal, m.resolveDuration, m.queriesPerResolve,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FetchCompleted implements Recorder.
func (m *Metrics) FetchCompleted(kind, table string, rows int, elapsed time.Duration, err error) {
	m.fetchesTotal.WithLabelValues(kind, table, status(err)).Inc()
	m.fetchDuration.WithLabelValues(kind, table).Observe(elapsed.Seconds())
	if err == nil {
		m.rowsFetched.WithLabelValues(kind, table).Add(float64(rows))
	}
}

// ResolveCompleted implements Recorder.
func (m *Metrics) ResolveCompleted(table string, queries int, elapsed time.Duration, err error) {
	m.resolvesTotal.WithLabelValues(table, status(err)).Inc()
	m.resolveDuration.WithLabelValues(table).Observe(elapsed.Seconds())
	m.queriesPerResolve.WithLabelValues(table).Observe(float64(queries))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
