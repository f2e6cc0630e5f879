package registry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/systemic-engineering/witness/pkg/unit"
)

// DefaultTombstoneTTL is how long a tombstone stays discoverable after a
// span ends, and DefaultSweepInterval is how often expired tombstones are
// reclaimed. Memory is bounded by live spans plus the tombstones created
// within one sweep interval.
const (
	DefaultTombstoneTTL  = 30 * time.Second
	DefaultSweepInterval = 30 * time.Second
)

// Config contains configuration for a Registry.
type Config struct {
	// TombstoneTTL is the retention window for Done entries.
	// Default: 30 seconds.
	TombstoneTTL time.Duration

	// SweepInterval is the period of the automatic tombstone sweep.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// Clock supplies time; inject a fake clock for deterministic tests.
	// Default: the real clock.
	Clock clockz.Clock

	// Logger is the base structured logger. Default: slog.Default().
	Logger *slog.Logger

	// OnSweep, if set, is called after every sweep with the number of
	// entries removed, including zero. Used for metrics wiring.
	OnSweep func(removed int)

	// OnLookup, if set, is called after every Lookup and LookupParent
	// with the outcome. Must be cheap; it runs on the lookup path.
	OnLookup func(found bool)
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() *Config {
	return &Config{
		TombstoneTTL:  DefaultTombstoneTTL,
		SweepInterval: DefaultSweepInterval,
	}
}

func (cfg *Config) withDefaults() *Config {
	out := *cfg
	if out.TombstoneTTL <= 0 {
		out.TombstoneTTL = DefaultTombstoneTTL
	}
	if out.SweepInterval <= 0 {
		out.SweepInterval = DefaultSweepInterval
	}
	if out.Clock == nil {
		out.Clock = clockz.RealClock
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// Stats is a point-in-time snapshot of registry bookkeeping, exposed for
// operational visibility and tests.
type Stats struct {
	// Entries is the number of table entries, active and tombstoned.
	Entries int

	// Subscriptions is the number of units with a live termination watch.
	Subscriptions int
}

// Registry resolves execution units to their active or most recent span.
//
// All methods are safe on a nil or stopped Registry: writes become no-ops
// and lookups report not found. Instrumentation call sites therefore never
// need to special-case "not instrumented", and can never surface an error
// into business logic.
type Registry struct {
	table    *table
	coord    *coordinator
	logger   *slog.Logger
	onLookup func(found bool)
	started  atomic.Bool
	stopped  atomic.Bool
}

// New creates a registry. It does not begin monitoring or sweeping until
// Start is called. A nil cfg uses defaults.
func New(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()
	t := newTable()
	return &Registry{
		table:    t,
		coord:    newCoordinator(t, cfg),
		logger:   cfg.Logger.With("component", "registry"),
		onLookup: cfg.OnLookup,
	}
}

// Start launches the coordinator. The first sweep tick is armed before
// the coordinator goroutine exists, so periodic sweeping is scheduled by
// the time Start returns. Calling Start on an already started registry
// is a no-op, as is Start on a stopped one: a Registry runs at most
// once, and a stopped registry stays in the "registry absent" state.
func (r *Registry) Start() {
	if r == nil || r.stopped.Load() || !r.started.CompareAndSwap(false, true) {
		return
	}
	r.coord.armTick()
	go r.coord.run()
	r.logger.Info("span registry started",
		"tombstone_ttl", r.coord.ttl,
		"sweep_interval", r.coord.interval,
	)
}

// Stop shuts the coordinator down and cancels all liveness watches. Table
// contents are dropped with the registry; after Stop every operation
// degrades to a no-op. Stopping is permanent: the coordinator's shutdown
// channel is closed exactly once, and a later Start does not revive the
// registry. Build a new one instead.
func (r *Registry) Stop() {
	if r == nil || !r.started.CompareAndSwap(true, false) {
		return
	}
	r.stopped.Store(true)
	close(r.coord.done)
	r.logger.Info("span registry stopped")
}

// Register records spanID as the active span for u and establishes (or
// refcounts) a termination watch on u. The table write is synchronous; the
// watch is set up through a fire-and-forget command to the coordinator.
// Registering a new span for a unit overwrites any prior entry for it.
func (r *Registry) Register(u *unit.Unit, spanID string) {
	if r == nil || !r.started.Load() || u.ID() == unit.None || spanID == "" {
		return
	}
	r.table.put(u.ID(), &entry{spanID: spanID, status: StatusActive})
	r.coord.send(coordCmd{kind: cmdSubscribe, u: u})
}

// Unregister tombstones the span for u and drops one watch reference. The
// entry stays resolvable through Lookup until the tombstone TTL elapses;
// that retention is what lets exporters and processors that outlive the
// unit still answer "what span was this".
func (r *Registry) Unregister(u *unit.Unit, spanID string) {
	if r == nil || !r.started.Load() || u.ID() == unit.None {
		return
	}
	r.table.tombstone(u.ID(), spanID, r.coord.clock.Now())
	r.coord.send(coordCmd{kind: cmdUnsubscribe, id: u.ID()})
}

// Lookup returns the span id registered for the given unit. Tombstoned
// entries resolve the same as active ones; callers that only want live
// spans must filter on their side.
func (r *Registry) Lookup(id unit.ID) (string, bool) {
	if r == nil || !r.started.Load() {
		return "", false
	}
	spanID, ok := r.lookup(id)
	if r.onLookup != nil {
		r.onLookup(ok)
	}
	return spanID, ok
}

func (r *Registry) lookup(id unit.ID) (string, bool) {
	e, ok := r.table.get(id)
	if !ok {
		return "", false
	}
	return e.spanID, true
}

// LookupParent resolves the span of the unit that spawned the unit carried
// by ctx. It reports not found when ctx carries no unit, the unit is a
// root, the parent never registered, or the parent's tombstone was already
// swept.
func (r *Registry) LookupParent(ctx context.Context) (string, bool) {
	if r == nil || !r.started.Load() {
		return "", false
	}
	u, ok := unit.FromContext(ctx)
	if !ok || u.Parent() == unit.None {
		if r.onLookup != nil {
			r.onLookup(false)
		}
		return "", false
	}
	return r.Lookup(u.Parent())
}

// Sweep synchronously removes tombstones older than ttl and returns the
// number removed. Sweep(0) removes every tombstone. The periodic sweep
// uses the configured TTL; this form exists for operational control and
// deterministic tests.
func (r *Registry) Sweep(ttl time.Duration) int {
	if r == nil || !r.started.Load() {
		return 0
	}
	reply := make(chan int, 1)
	r.coord.send(coordCmd{kind: cmdSweep, ttl: ttl, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-r.coord.done:
		return 0
	}
}

// Stats reports current table and subscription counts.
func (r *Registry) Stats() Stats {
	if r == nil || !r.started.Load() {
		return Stats{}
	}
	reply := make(chan int, 1)
	r.coord.send(coordCmd{kind: cmdStats, reply: reply})
	var subs int
	select {
	case subs = <-reply:
	case <-r.coord.done:
	}
	return Stats{Entries: r.table.len(), Subscriptions: subs}
}
