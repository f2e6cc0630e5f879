package span

import (
	"context"

	"github.com/zoobzio/clockz"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/registry"
	"github.com/systemic-engineering/witness/pkg/unit"
)

// Bus topics published at span boundaries. Payload is a Span value.
const (
	TopicStart  bus.Topic = "span.start"
	TopicFinish bus.Topic = "span.finish"
)

// Config contains configuration for a Tracer. Registry and Bus may each be
// nil: the tracer still produces spans, it just skips the corresponding
// wiring.
type Config struct {
	// Registry receives register/unregister calls at span boundaries.
	Registry *registry.Registry

	// Bus receives TopicStart and TopicFinish events.
	Bus *bus.Bus

	// Clock supplies span timestamps. Default: the real clock.
	Clock clockz.Clock
}

// Tracer creates spans and wires their boundaries into the registry and
// the event bus. Safe for concurrent use by multiple goroutines.
type Tracer struct {
	registry *registry.Registry
	bus      *bus.Bus
	clock    clockz.Clock
}

// NewTracer creates a tracer. A zero Config yields a standalone tracer
// with no registry or bus wiring.
func NewTracer(cfg Config) *Tracer {
	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Tracer{
		registry: cfg.Registry,
		bus:      cfg.Bus,
		clock:    clock,
	}
}

// StartSpan creates a new span named name and returns it wrapped in an
// ActiveSpan, along with a context carrying it.
//
// Parent resolution tries the context first (nesting on the same call
// path), then falls back to the registry's ancestor chain, which resolves
// the spawning unit's span even when that span lives on another goroutine.
// If the context carries a unit, the span is registered as that unit's
// active span.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *ActiveSpan) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := t.clock.Now()
	s := &Span{
		TraceID:   newTraceID(now),
		SpanID:    newSpanID(now),
		Name:      name,
		StartTime: now,
	}

	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		s.ParentID = parent.SpanID
	} else if parentID, ok := t.registry.LookupParent(ctx); ok {
		s.ParentID = parentID
	}

	owner, _ := unit.FromContext(ctx)
	if owner != nil {
		s.UnitID = owner.ID()
		t.registry.Register(owner, s.SpanID)
	}

	active := &ActiveSpan{
		span:   s,
		tracer: t,
		owner:  owner,
	}

	if t.bus != nil {
		t.bus.Publish(TopicStart, *s)
	}

	return context.WithValue(ctx, ctxKey{}, s), active
}

// finishSpan tombstones the owner's registry entry and publishes the
// finished span.
func (t *Tracer) finishSpan(owner *unit.Unit, finished Span) {
	if owner != nil {
		t.registry.Unregister(owner, finished.SpanID)
	}
	if t.bus != nil {
		t.bus.Publish(TopicFinish, finished)
	}
}
