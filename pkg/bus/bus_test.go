package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestBus_PublishDeliversToTopicHandlers(t *testing.T) {
	b := New()
	defer b.Close()

	var got []Event
	b.Subscribe("span.start", func(evt Event) {
		got = append(got, evt)
	})

	b.Publish("span.start", "payload-1")
	b.Publish("span.finish", "payload-2") // different topic, not delivered

	if len(got) != 1 {
		t.Fatalf("handler received %d events, want 1", len(got))
	}
	if got[0].Topic != "span.start" || got[0].Payload != "payload-1" {
		t.Errorf("handler received %+v", got[0])
	}
}

func TestBus_MultipleHandlersAttachOrder(t *testing.T) {
	b := New()
	defer b.Close()

	var order []int
	b.Subscribe("evt", func(Event) { order = append(order, 1) })
	b.Subscribe("evt", func(Event) { order = append(order, 2) })

	b.Publish("evt", nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("synchronous handlers ran in order %v, want [1 2]", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var calls atomic.Int64
	id := b.Subscribe("evt", func(Event) { calls.Add(1) })

	b.Publish("evt", nil)
	b.Unsubscribe(id)
	b.Publish("evt", nil)

	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}

	// Unknown ids must be absorbed silently.
	b.Unsubscribe(9999)
}

func TestBus_AsyncDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	done := make(chan Event, 1)
	b.SubscribeAsync("evt", func(evt Event) { done <- evt })

	b.Publish("evt", 42)

	select {
	case evt := <-done:
		if evt.Payload != 42 {
			t.Errorf("async handler got payload %v, want 42", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestBus_WorkerPoolDropsWhenFull(t *testing.T) {
	b := New()
	defer b.Close()

	if err := b.EnableWorkerPool(1, 1); err != nil {
		t.Fatalf("EnableWorkerPool() failed: %v", err)
	}
	if err := b.EnableWorkerPool(1, 1); err == nil {
		t.Error("second EnableWorkerPool() did not fail")
	}

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	b.SubscribeAsync("evt", func(Event) {
		wg.Done()
		<-block
	})

	// First publish occupies the worker, second fills the queue, the rest
	// must be counted as dropped rather than blocking the publisher.
	b.Publish("evt", nil)
	wg.Wait()
	b.Publish("evt", nil)
	for i := 0; i < 5; i++ {
		b.Publish("evt", nil)
	}

	if b.Dropped() == 0 {
		t.Error("no deliveries recorded as dropped with a full worker queue")
	}
	close(block)
}

func TestBus_PanicHook(t *testing.T) {
	b := New()
	defer b.Close()

	var hookID atomic.Uint64
	b.SetPanicHook(func(handlerID uint64, r any) {
		hookID.Store(handlerID)
	})

	id := b.Subscribe("evt", func(Event) { panic("handler bug") })
	after := make(chan struct{}, 1)
	b.Subscribe("evt", func(Event) { after <- struct{}{} })

	b.Publish("evt", nil)

	if hookID.Load() != id {
		t.Errorf("panic hook saw handler %d, want %d", hookID.Load(), id)
	}
	select {
	case <-after:
	default:
		t.Error("handler after the panicking one was not called")
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	b := New()

	var calls atomic.Int64
	b.Subscribe("evt", func(Event) { calls.Add(1) })

	b.Close()
	b.Publish("evt", nil)
	b.Close() // idempotent

	if calls.Load() != 0 {
		t.Errorf("handler called %d times after Close(), want 0", calls.Load())
	}
}

func TestBus_EventTimestampsUseInjectedClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewWithClock(clockz.NewFakeClockAt(at))
	defer b.Close()

	var got time.Time
	b.Subscribe("evt", func(evt Event) { got = evt.Time })
	b.Publish("evt", nil)

	if !got.Equal(at) {
		t.Errorf("event time = %v, want %v", got, at)
	}
}
