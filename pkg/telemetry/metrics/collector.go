package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/registry"
	"github.com/systemic-engineering/witness/pkg/span"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Namespace and Subsystem prefix every metric name.
	// Defaults: "witness", "spans".
	Namespace string
	Subsystem string

	// DurationBuckets are the span duration histogram buckets in
	// seconds. Default buckets cover 1ms to 30s.
	DurationBuckets []float64
}

// Collector owns the Prometheus metrics for one observability context.
type Collector struct {
	registry *prometheus.Registry

	spansStarted  prometheus.Counter
	spansFinished *prometheus.CounterVec
	spanDuration  prometheus.Histogram

	registryEntries       prometheus.Gauge
	registrySubscriptions prometheus.Gauge
	tombstonesSwept       prometheus.Counter
	sweepsTotal           prometheus.Counter
	lookupsTotal          *prometheus.CounterVec

	busDropped prometheus.Gauge

	subIDs []uint64
}

// NewCollector creates a collector registered against reg. A nil reg
// creates a private registry.
func NewCollector(cfg *Config, reg *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{}
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "witness"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "spans"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30}
	}

	c := &Collector{
		registry: reg,
		spansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "started_total",
			Help:      "Total number of spans started.",
		}),
		spansFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "finished_total",
			Help:      "Total number of spans finished, by status.",
		}, []string{"status"}),
		spanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "duration_seconds",
			Help:      "Span durations in seconds.",
			Buckets:   cfg.DurationBuckets,
		}),
		registryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Current span registry entries, active and tombstoned.",
		}),
		registrySubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "subscriptions",
			Help:      "Current liveness subscriptions held by the registry.",
		}),
		tombstonesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "tombstones_swept_total",
			Help:      "Total tombstones removed by sweeps.",
		}),
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "sweeps_total",
			Help:      "Total sweep passes executed.",
		}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Total registry lookups, by outcome.",
		}, []string{"outcome"}),
		busDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "bus",
			Name:      "dropped_events",
			Help:      "Async bus events dropped due to a full worker queue.",
		}),
	}

	reg.MustRegister(
		c.spansStarted,
		c.spansFinished,
		c.spanDuration,
		c.registryEntries,
		c.registrySubscriptions,
		c.tombstonesSwept,
		c.sweepsTotal,
		c.lookupsTotal,
		c.busDropped,
	)

	return c
}

// Attach subscribes the collector to span boundary events on the bus.
func (c *Collector) Attach(b *bus.Bus) {
	c.subIDs = append(c.subIDs,
		b.Subscribe(span.TopicStart, func(bus.Event) {
			c.spansStarted.Inc()
		}),
		b.Subscribe(span.TopicFinish, func(evt bus.Event) {
			s, ok := evt.Payload.(span.Span)
			if !ok {
				return
			}
			c.spansFinished.WithLabelValues(string(s.Status)).Inc()
			c.spanDuration.Observe(s.Duration.Seconds())
		}),
	)
}

// Detach removes the bus subscriptions.
func (c *Collector) Detach(b *bus.Bus) {
	for _, id := range c.subIDs {
		b.Unsubscribe(id)
	}
	c.subIDs = nil
}

// RecordSweep counts one sweep pass; wire it to registry.Config.OnSweep.
func (c *Collector) RecordSweep(removed int) {
	c.sweepsTotal.Inc()
	c.tombstonesSwept.Add(float64(removed))
}

// RecordLookup counts one lookup by outcome; wire it to
// registry.Config.OnLookup.
func (c *Collector) RecordLookup(found bool) {
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	c.lookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRegistry updates the registry size gauges from a stats snapshot.
func (c *Collector) ObserveRegistry(stats registry.Stats) {
	c.registryEntries.Set(float64(stats.Entries))
	c.registrySubscriptions.Set(float64(stats.Subscriptions))
}

// ObserveBusDropped records the bus's cumulative dropped-event count.
func (c *Collector) ObserveBusDropped(n uint64) {
	c.busDropped.Set(float64(n))
}
