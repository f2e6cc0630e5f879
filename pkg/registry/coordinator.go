package registry

import (
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/systemic-engineering/witness/pkg/unit"
)

// cmdKind discriminates coordinator commands.
type cmdKind int

const (
	cmdSubscribe cmdKind = iota
	cmdUnsubscribe
	cmdTerminated
	cmdSweep
	cmdStats
)

// coordCmd is one unit of work for the coordinator loop. Exactly one of
// the payload fields is meaningful per kind.
type coordCmd struct {
	kind  cmdKind
	u     *unit.Unit    // subscribe
	id    unit.ID       // unsubscribe, terminated
	ttl   time.Duration // sweep
	reply chan int      // sweep (removed count), stats (subscription count)
}

// subscription is the refcounted liveness watch on one unit. The watch
// goroutine exists while refs > 0 and is torn down through cancel.
type subscription struct {
	refs   int
	cancel chan struct{}
}

// coordinator serializes the only order-sensitive registry state:
// subscription bookkeeping and sweep scheduling. Everything it does is an
// in-memory operation, so commands never wait on anything unbounded.
type coordinator struct {
	table    *table
	clock    clockz.Clock
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration
	onSweep  func(removed int)

	cmds chan coordCmd
	done chan struct{}
	subs map[unit.ID]*subscription

	// tick delivers the next periodic sweep. Armed before the run loop
	// starts and re-armed only inside it.
	tick <-chan time.Time
}

func newCoordinator(t *table, cfg *Config) *coordinator {
	return &coordinator{
		table:    t,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("component", "registry.coordinator"),
		ttl:      cfg.TombstoneTTL,
		interval: cfg.SweepInterval,
		onSweep:  cfg.OnSweep,
		cmds:     make(chan coordCmd, 256),
		done:     make(chan struct{}),
		subs:     make(map[unit.ID]*subscription),
	}
}

// send delivers a command without ever blocking past coordinator shutdown.
// Commands sent to a stopped coordinator are dropped, matching the
// "registry absent" degradation: callers get success-shaped no-ops.
func (c *coordinator) send(cmd coordCmd) {
	select {
	case c.cmds <- cmd:
	case <-c.done:
	}
}

// armTick schedules the next periodic sweep. The first arm happens
// before run is launched, so a clock waiter exists by the time Start
// returns and an immediately following fake-clock advance is observed.
func (c *coordinator) armTick() {
	c.tick = c.clock.After(c.interval)
}

func (c *coordinator) run() {
	for {
		select {
		case cmd := <-c.cmds:
			c.handle(cmd)
		case <-c.tick:
			c.sweep(c.ttl)
			c.armTick()
		case <-c.done:
			c.teardown()
			return
		}
	}
}

func (c *coordinator) handle(cmd coordCmd) {
	switch cmd.kind {
	case cmdSubscribe:
		c.subscribe(cmd.u)
	case cmdUnsubscribe:
		c.unsubscribe(cmd.id)
	case cmdTerminated:
		c.terminated(cmd.id)
	case cmdSweep:
		removed := c.sweep(cmd.ttl)
		if cmd.reply != nil {
			cmd.reply <- removed
		}
	case cmdStats:
		if cmd.reply != nil {
			cmd.reply <- len(c.subs)
		}
	}
}

// subscribe establishes the liveness watch on u, or bumps the refcount if
// one already exists. Nested span registration on the same unit therefore
// never creates duplicate watches.
func (c *coordinator) subscribe(u *unit.Unit) {
	id := u.ID()
	if id == unit.None {
		return
	}
	if s, ok := c.subs[id]; ok {
		s.refs++
		return
	}
	s := &subscription{refs: 1, cancel: make(chan struct{})}
	c.subs[id] = s
	go c.watch(u, s.cancel)
}

// watch is the one-shot termination watch for a single unit. It fires at
// most one terminated command, even for units that were already dead when
// the watch was taken, and exits silently when cancelled or when the
// coordinator shuts down.
func (c *coordinator) watch(u *unit.Unit, cancel <-chan struct{}) {
	select {
	case <-u.Done():
		select {
		case c.cmds <- coordCmd{kind: cmdTerminated, id: u.ID()}:
		case <-cancel:
		case <-c.done:
		}
	case <-cancel:
	case <-c.done:
	}
}

// unsubscribe decrements the refcount and releases the watch at zero.
// Unknown units are already-clean state, not an error.
func (c *coordinator) unsubscribe(id unit.ID) {
	s, ok := c.subs[id]
	if !ok {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	close(s.cancel)
	delete(c.subs, id)
}

// terminated handles the runtime's notice that a watched unit is gone.
// The watch is one-shot, so bookkeeping is dropped unconditionally; the
// table entry is tombstoned only if an explicit unregister did not race
// ahead.
func (c *coordinator) terminated(id unit.ID) {
	if s, ok := c.subs[id]; ok {
		close(s.cancel)
		delete(c.subs, id)
	}
	c.table.tombstone(id, "", c.clock.Now())
}

func (c *coordinator) sweep(ttl time.Duration) int {
	now := c.clock.Now()
	removed := c.table.deleteWhere(func(e *entry) bool {
		return e.status == StatusDone && now.Sub(e.doneAt) >= ttl
	})
	if removed > 0 {
		c.logger.Debug("swept expired tombstones", "removed", removed, "ttl", ttl)
	}
	if c.onSweep != nil {
		c.onSweep(removed)
	}
	return removed
}

// teardown cancels every outstanding watch on shutdown.
func (c *coordinator) teardown() {
	for id, s := range c.subs {
		close(s.cancel)
		delete(c.subs, id)
	}
}
