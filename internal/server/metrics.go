package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rj-04/mimotune/internal/sweep"
)

// Metrics holds the sweep metrics exposed at /metrics. Each Metrics owns its
// registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	SweepsTotal     *prometheus.CounterVec
	IterationsTotal *prometheus.CounterVec
	ClampedTotal    *prometheus.CounterVec
	SolveLatency    prometheus.Histogram
	Fitness         prometheus.Histogram
	BestFitness     *prometheus.GaugeVec
	RunningSweeps   prometheus.Gauge
}

// NewMetrics creates and registers the sweep metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mimotune_sweeps_total",
				Help: "Total number of finished sweeps by final state",
			},
			[]string{"state"},
		),

		IterationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mimotune_iterations_total",
				Help: "Total number of scored sweep iterations",
			},
			[]string{"parameter"},
		),

		ClampedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mimotune_clamped_observations_total",
				Help: "Observations clamped into their variable's universe",
			},
			[]string{"variable"},
		),

		SolveLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mimotune_solve_seconds",
				Help:    "Simulation solve latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),

		Fitness: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mimotune_iteration_fitness",
				Help:    "Distribution of per-iteration fuzzy scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		BestFitness: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mimotune_best_fitness",
				Help: "Best score found so far by a running sweep job",
			},
			[]string{"job"},
		),

		RunningSweeps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mimotune_running_sweeps",
				Help: "Number of sweeps currently running",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observer returns a sweep observer recording iteration metrics for a job.
func (m *Metrics) Observer(jobID, parameter string) sweep.Observer {
	best := 0.0
	return sweep.ObserverFunc(func(it sweep.Iteration) {
		m.IterationsTotal.WithLabelValues(parameter).Inc()
		m.SolveLatency.Observe(it.SolveTime.Seconds())
		m.Fitness.Observe(it.Fitness)
		for _, v := range it.Clamped {
			m.ClampedTotal.WithLabelValues(v).Inc()
		}
		if it.Fitness > best {
			best = it.Fitness
		}
		m.BestFitness.WithLabelValues(jobID).Set(best)
	})
}

// RecordSweep counts a finished sweep and drops its best-fitness series.
func (m *Metrics) RecordSweep(jobID string, state JobState) {
	m.SweepsTotal.WithLabelValues(string(state)).Inc()
	m.BestFitness.DeleteLabelValues(jobID)
}
