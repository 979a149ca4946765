// Package metric provides the Prometheus metrics registry for the routing
// bus and its collaborators. Core bus metrics are always registered;
// plugins and surfaces register their own collectors through the registry.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/15532th/avtdl/errors"
)

// Metrics contains the core bus metrics (not plugin-specific).
type Metrics struct {
	// Delivery engine
	EmissionsTotal    *prometheus.CounterVec // by category of the emitting entity
	DeliveriesTotal   *prometheus.CounterVec // by target category and chain
	EntityErrorsTotal *prometheus.CounterVec // by actor
	DroppedTotal      *prometheus.CounterVec // by reason (chain_end, cycle, stale)
	WaveDuration      prometheus.Histogram   // full fan-out of one fresh emission
	ActiveWaves       prometheus.Gauge

	// Scheduler
	PollsTotal     *prometheus.CounterVec // by actor and status
	ReloadsTotal   *prometheus.CounterVec // by status
	GenerationInfo prometheus.Gauge       // current configuration generation
}

// NewMetrics creates the core metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		EmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "emissions_total",
				Help:      "Total records emitted into the bus",
			},
			[]string{"category"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "deliveries_total",
				Help:      "Total records delivered to entities",
			},
			[]string{"category", "chain"},
		),
		EntityErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "entity_errors_total",
				Help:      "Processing errors converted to error events",
			},
			[]string{"actor"},
		),
		DroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "dropped_total",
				Help:      "Records silently terminated by the engine",
			},
			[]string{"reason"},
		),
		WaveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "wave_duration_seconds",
				Help:      "Duration of one fresh emission's complete fan-out",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		ActiveWaves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "avtdl",
				Subsystem: "bus",
				Name:      "active_waves",
				Help:      "Emission waves currently in flight",
			},
		),
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "scheduler",
				Name:      "polls_total",
				Help:      "Monitor poll invocations",
			},
			[]string{"actor", "status"},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avtdl",
				Subsystem: "config",
				Name:      "reloads_total",
				Help:      "Configuration reload attempts",
			},
			[]string{"status"},
		),
		GenerationInfo: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "avtdl",
				Subsystem: "config",
				Name:      "generation",
				Help:      "Current configuration generation number",
			},
		),
	}
}

// collectors returns every core collector for registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EmissionsTotal, m.DeliveriesTotal, m.EntityErrorsTotal, m.DroppedTotal,
		m.WaveDuration, m.ActiveWaves, m.PollsTotal, m.ReloadsTotal, m.GenerationInfo,
	}
}

// Registry manages metric registration and lifecycle on top of a private
// Prometheus registry.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a registry with core bus metrics and Go runtime
// collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	for _, c := range r.Metrics.collectors() {
		r.prometheusRegistry.MustRegister(c)
	}
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry, for the
// /metrics handler.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Register registers a plugin- or surface-specific collector under an owner
// and metric name. Duplicate names are rejected.
func (r *Registry) Register(owner, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", name, owner),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", "Register", "prometheus registration")
	}

	r.registered[key] = c
	return nil
}

// Unregister removes a previously registered collector.
func (r *Registry) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	c, ok := r.registered[key]
	if !ok {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(c)
}
