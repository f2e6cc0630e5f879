package unit

import (
	"context"
	"sync"
	"sync/atomic"
)

// ID is an opaque, process-unique identifier for a unit of execution.
// The zero value None never identifies a real unit.
type ID uint64

// None is the absent unit identifier.
const None ID = 0

// nextID is the process-wide ID allocator. IDs are never recycled.
var nextID atomic.Uint64

// Unit is the identity of one concurrent unit of execution. A Unit is
// created at spawn time, carries the ID of the unit that spawned it, and
// exposes a done channel that is closed exactly once when the unit's
// function returns, whether normally or by panic.
type Unit struct {
	id     ID
	parent ID
	done   chan struct{}
	once   sync.Once
}

// New creates a root unit with no parent. Callers that need an identity on
// a goroutine they did not spawn through this package (for example the
// main goroutine) create one with New and signal termination themselves
// with Finish.
func New() *Unit {
	return newUnit(None)
}

func newUnit(parent ID) *Unit {
	return &Unit{
		id:     ID(nextID.Add(1)),
		parent: parent,
		done:   make(chan struct{}),
	}
}

// ID returns the unit's identifier.
func (u *Unit) ID() ID {
	if u == nil {
		return None
	}
	return u.id
}

// Parent returns the identifier of the unit that spawned this one, or None
// for a root unit.
func (u *Unit) Parent() ID {
	if u == nil {
		return None
	}
	return u.parent
}

// Done returns a channel closed when the unit has terminated. A receive on
// the channel of an already-terminated unit completes immediately, so a
// liveness watch taken after termination still fires.
func (u *Unit) Done() <-chan struct{} {
	return u.done
}

// Finish marks the unit as terminated. It is idempotent. Units spawned via
// Go or GoWithRecover are finished automatically; Finish only needs to be
// called directly for units created with New.
func (u *Unit) Finish() {
	u.once.Do(func() {
		close(u.done)
	})
}

type ctxKey struct{}

// NewContext returns a context carrying the given unit.
func NewContext(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the unit carried by ctx, if any.
func FromContext(ctx context.Context) (*Unit, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(ctxKey{}).(*Unit)
	return u, ok
}

// CurrentID returns the ID of the unit carried by ctx, or None.
func CurrentID(ctx context.Context) ID {
	u, _ := FromContext(ctx)
	return u.ID()
}

// Go spawns fn on a new goroutine under a fresh child unit whose parent is
// the unit carried by ctx (None if ctx carries no unit). The child's
// context carries the child unit, so nested spawns build the ancestor
// chain without any caller bookkeeping. The returned Unit is the handle
// the spawner can watch or join on.
func Go(ctx context.Context, fn func(ctx context.Context)) *Unit {
	child := newUnit(CurrentID(ctx))
	cctx := NewContext(ctx, child)
	go func() {
		defer child.Finish()
		fn(cctx)
	}()
	return child
}

// GoWithRecover behaves like Go but recovers a panic in fn and hands the
// recovered value to hook instead of crashing the process. The unit is
// finished before hook runs, so liveness watchers observe the abnormal
// termination the same way they observe a normal return.
func GoWithRecover(ctx context.Context, fn func(ctx context.Context), hook func(r any)) *Unit {
	child := newUnit(CurrentID(ctx))
	cctx := NewContext(ctx, child)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				child.Finish()
				if hook != nil {
					hook(r)
				}
				return
			}
			child.Finish()
		}()
		fn(cctx)
	}()
	return child
}
