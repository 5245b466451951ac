// Package metrics exposes Prometheus metrics for the resolution engine.
//
// All metrics are registered on the default registry at package load and
// are safe for concurrent use, even though a single DataTable is not.
//
// # Basic Usage
//
//	timer := metrics.NewTimer("index_build")
//	idx, err := index.Build(src, schema, roles, opts)
//	metrics.IndexBuildDuration.WithLabelValues("flat").Observe(timer.Stop().Seconds())
//
//	metrics.Resolves.WithLabelValues("broadcast", "men").Inc()
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction labels of the Resolves counter
const (
	DirectionSameLevel = "same_level"
	DirectionBroadcast = "broadcast"
	DirectionAggregate = "aggregate"
	DirectionCross     = "cross"
)

var (
	// Resolves counts resolved queries.
	// Labels: direction (same_level/broadcast/aggregate/cross), target (entity key)
	Resolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfisca_resolves_total",
			Help: "Total number of resolved variable queries",
		},
		[]string{"direction", "target"},
	)

	// ResolveErrors counts failed queries by error type
	ResolveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfisca_resolve_errors_total",
			Help: "Total number of failed variable queries",
		},
		[]string{"type"},
	)

	// Writes counts values written back into storage.
	// Labels: target (entity key)
	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfisca_writes_total",
			Help: "Total number of variable writes",
		},
		[]string{"target"},
	)

	// Warnings counts consistency and coercion warnings.
	// Labels: kind (consistency/type_coercion)
	Warnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfisca_warnings_total",
			Help: "Total number of recorded warnings",
		},
		[]string{"kind"},
	)

	// IndexBuildDuration tracks index construction time in seconds.
	// Labels: layout (flat/split)
	IndexBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "openfisca_index_build_duration_seconds",
			Help: "Index construction duration in seconds",
			Buckets: []float64{
				0.0001, // 100μs - toy samples
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms - regional survey
				1,      // 1s - full survey
				10,
			},
		},
		[]string{"layout"},
	)

	// StageDuration tracks traced stages of the command line (load, conform,
	// build, resolve). Labels: stage, status (success/error)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openfisca_stage_duration_seconds",
			Help:    "Duration of traced processing stages in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 7),
		},
		[]string{"stage", "status"},
	)

	// SourceRows counts rows read from tabular sources.
	// Labels: source (arrow/sqlite/pgx/mysql), entity
	SourceRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfisca_source_rows_total",
			Help: "Total number of rows read from input sources",
		},
		[]string{"source", "entity"},
	)

	// IndividualsLoaded tracks the individual count of the last built table
	IndividualsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openfisca_individuals_loaded",
			Help: "Number of individuals in the most recently built table",
		},
		[]string{"table"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name given at creation
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called
// several times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
