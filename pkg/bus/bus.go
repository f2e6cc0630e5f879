package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// Topic is a structured event name, dotted by convention
// ("span.start", "span.finish", "policy.denied").
type Topic string

// Event is one published occurrence. Payload is owned by the publisher and
// must be treated as read-only by handlers.
type Event struct {
	Topic   Topic
	Time    time.Time
	Payload any
}

// Handler receives published events.
type Handler func(evt Event)

type handlerEntry struct {
	handler Handler
	id      uint64
	topic   Topic
	async   bool
}

// Bus dispatches events to attached handlers by topic.
// Safe for concurrent use by multiple goroutines.
type Bus struct {
	handlers     map[Topic][]handlerEntry
	handlersLock sync.RWMutex
	panicHook    func(handlerID uint64, r any)
	workers      *workerPool
	clock        clockz.Clock
	nextID       atomic.Uint64
	dropped      atomic.Uint64
	closed       atomic.Bool
}

// New creates a bus using the real clock.
func New() *Bus {
	return NewWithClock(clockz.RealClock)
}

// NewWithClock creates a bus with an injected clock for deterministic
// event timestamps in tests.
func NewWithClock(clock clockz.Clock) *Bus {
	return &Bus{
		handlers: make(map[Topic][]handlerEntry),
		clock:    clock,
	}
}

// Subscribe attaches a synchronous handler to topic and returns its id.
// Synchronous handlers run on the publisher's goroutine, in attach order.
func (b *Bus) Subscribe(topic Topic, handler Handler) uint64 {
	return b.subscribe(topic, handler, false)
}

// SubscribeAsync attaches a handler that runs off the publisher's
// goroutine, on the worker pool when one is enabled.
func (b *Bus) SubscribeAsync(topic Topic, handler Handler) uint64 {
	return b.subscribe(topic, handler, true)
}

func (b *Bus) subscribe(topic Topic, handler Handler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := b.nextID.Add(1)

	b.handlersLock.Lock()
	defer b.handlersLock.Unlock()

	b.handlers[topic] = append(b.handlers[topic], handlerEntry{
		id:      id,
		topic:   topic,
		handler: handler,
		async:   async,
	})

	return id
}

// Unsubscribe detaches a handler by id. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(id uint64) {
	b.handlersLock.Lock()
	defer b.handlersLock.Unlock()

	for topic, entries := range b.handlers {
		for i, h := range entries {
			if h.id == id {
				copy(entries[i:], entries[i+1:])
				b.handlers[topic] = entries[:len(entries)-1]
				return
			}
		}
	}
}

// SetPanicHook sets a function called when a handler panics. Without a
// hook, handler panics are swallowed so instrumentation cannot take down
// the publisher.
func (b *Bus) SetPanicHook(hook func(handlerID uint64, r any)) {
	b.panicHook = hook
}

// Publish delivers an event to every handler attached to topic. Publishing
// on a closed bus is a no-op.
func (b *Bus) Publish(topic Topic, payload any) {
	if b.closed.Load() {
		return
	}

	b.handlersLock.RLock()
	entries := b.handlers[topic]
	if len(entries) == 0 {
		b.handlersLock.RUnlock()
		return
	}
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	b.handlersLock.RUnlock()

	evt := Event{Topic: topic, Time: b.clock.Now(), Payload: payload}

	for _, h := range snapshot {
		if h.async {
			entry := h
			if b.workers != nil {
				b.workers.submit(func() {
					b.safeCall(entry, evt)
				})
			} else {
				go b.safeCall(entry, evt)
			}
		} else {
			b.safeCall(h, evt)
		}
	}
}

func (b *Bus) safeCall(entry handlerEntry, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.panicHook != nil {
				b.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(evt)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
// Without a pool, each async delivery spawns its own goroutine.
func (b *Bus) EnableWorkerPool(workers, queueSize int) error {
	if b.workers != nil {
		return errors.New("worker pool already enabled")
	}
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	b.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &b.dropped,
	}

	b.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.workers.run()
	}

	return nil
}

// Dropped returns the number of async deliveries dropped because the
// worker queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close detaches all handlers and drains the worker pool. The bus accepts
// no further publishes.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	b.handlersLock.Lock()
	b.handlers = make(map[Topic][]handlerEntry)
	b.handlersLock.Unlock()

	if b.workers != nil {
		b.workers.shutdown()
		b.workers = nil
	}
}

// workerPool manages a fixed number of workers for async handler delivery.
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
