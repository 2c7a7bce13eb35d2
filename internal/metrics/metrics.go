// Package metrics instruments the pipeline with Prometheus counters. The
// instruments hang off an explicit registry so embedding programs can expose
// or drop them as they see fit; nothing registers globally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the pipeline's instruments. A nil *Set is valid and records
// nothing, so callers never guard their hot paths.
type Set struct {
	registry *prometheus.Registry

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	invocations  *prometheus.CounterVec
	taskCalls    *prometheus.CounterVec
	taskFailures *prometheus.CounterVec
	taskSeconds  *prometheus.HistogramVec
	launches     *prometheus.CounterVec
	deaths       *prometheus.CounterVec
}

// New builds a Set backed by a fresh registry.
func New() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracdr_cache_hits_total",
			Help: "Compiled-unit cache lookups answered without recompiling",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oracdr_cache_misses_total",
			Help: "Compiled-unit cache lookups that (re)compiled a source",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracdr_primitive_invocations_total",
			Help: "Primitive invocations by name",
		}, []string{"primitive"}),
		taskCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracdr_task_calls_total",
			Help: "Engine task dispatches",
		}, []string{"engine", "task"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracdr_task_failures_total",
			Help: "Engine task dispatches that returned a non-success status",
		}, []string{"engine", "task", "status"}),
		taskSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "oracdr_task_duration_seconds",
			Help: "Wall-clock duration of engine task dispatches",
		}, []string{"engine", "task"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracdr_engine_launches_total",
			Help: "Engine process launches",
		}, []string{"engine"}),
		deaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oracdr_engine_deaths_total",
			Help: "Engines dropped after being presumed dead",
		}, []string{"engine"}),
	}
	s.registry.MustRegister(
		s.cacheHits, s.cacheMisses, s.invocations,
		s.taskCalls, s.taskFailures, s.taskSeconds,
		s.launches, s.deaths,
	)
	return s
}

// Registry exposes the backing registry for HTTP handlers. Nil for a nil Set.
func (s *Set) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Set) CacheHit() {
	if s != nil {
		s.cacheHits.Inc()
	}
}

func (s *Set) CacheMiss() {
	if s != nil {
		s.cacheMisses.Inc()
	}
}

func (s *Set) Invocation(primitive string) {
	if s != nil {
		s.invocations.WithLabelValues(primitive).Inc()
	}
}

func (s *Set) TaskCall(engine, task string) {
	if s != nil {
		s.taskCalls.WithLabelValues(engine, task).Inc()
	}
}

func (s *Set) TaskFailure(engine, task, status string) {
	if s != nil {
		s.taskFailures.WithLabelValues(engine, task, status).Inc()
	}
}

func (s *Set) ObserveTask(engine, task string, seconds float64) {
	if s != nil {
		s.taskSeconds.WithLabelValues(engine, task).Observe(seconds)
	}
}

func (s *Set) EngineLaunch(engine string) {
	if s != nil {
		s.launches.WithLabelValues(engine).Inc()
	}
}

func (s *Set) EngineDeath(engine string) {
	if s != nil {
		s.deaths.WithLabelValues(engine).Inc()
	}
}
