package registry

import (
	"sync"
	"time"

	"github.com/systemic-engineering/witness/pkg/unit"
)

// Status reports whether a table entry belongs to a running span or to one
// that has ended and is retained as a tombstone.
type Status int

const (
	// StatusActive marks a span whose unit is still doing the work.
	StatusActive Status = iota
	// StatusDone marks a tombstone: the span ended but the entry is kept
	// discoverable until the tombstone TTL elapses.
	StatusDone
)

// entry is the value stored per unit. Entries are immutable after
// creation; every status change stores a fresh entry, so concurrent
// readers can never observe a torn tuple.
type entry struct {
	spanID string
	status Status
	doneAt time.Time
}

// table is the concurrent span store. Point reads and writes are
// lock-free from the caller's perspective; the bulk delete used by sweep
// walks the map without blocking unrelated keys.
type table struct {
	m sync.Map // unit.ID -> *entry
}

func newTable() *table {
	return &table{}
}

// put unconditionally upserts the entry for id. Last write wins: a unit
// re-registering a new span replaces whatever was there, tombstone or not.
func (t *table) put(id unit.ID, e *entry) {
	t.m.Store(id, e)
}

func (t *table) get(id unit.ID) (*entry, bool) {
	v, ok := t.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// tombstone transitions id's entry from Active to Done at the given time.
// It is a no-op if the entry is absent or already Done, which makes the
// race between an explicit unregister and a termination notice
// order-independent in outcome. The compare-and-swap loop covers the
// remaining race against a concurrent re-registration.
func (t *table) tombstone(id unit.ID, spanID string, at time.Time) {
	for {
		v, ok := t.m.Load(id)
		if !ok {
			// unregister may legally arrive before the first put became
			// visible, or after a sweep; store the tombstone directly so
			// late readers can still resolve the span within the TTL.
			if spanID == "" {
				return
			}
			if _, loaded := t.m.LoadOrStore(id, &entry{spanID: spanID, status: StatusDone, doneAt: at}); !loaded {
				return
			}
			continue
		}
		e := v.(*entry)
		if e.status == StatusDone {
			return
		}
		next := &entry{spanID: e.spanID, status: StatusDone, doneAt: at}
		if spanID != "" {
			next.spanID = spanID
		}
		if t.m.CompareAndSwap(id, v, next) {
			return
		}
	}
}

// deleteWhere removes every entry matching pred and reports how many were
// removed. Entries written concurrently with the walk are left alone.
func (t *table) deleteWhere(pred func(*entry) bool) int {
	removed := 0
	t.m.Range(func(k, v any) bool {
		if pred(v.(*entry)) {
			if t.m.CompareAndDelete(k, v) {
				removed++
			}
		}
		return true
	})
	return removed
}

// len counts entries. O(n); used for stats and tests, not hot paths.
func (t *table) len() int {
	n := 0
	t.m.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
