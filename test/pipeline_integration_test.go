//go:build integration

package test

import (
	"context"
	"testing"
	"time"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/record"
	"github.com/systemic-engineering/witness/pkg/record/recorder"
	"github.com/systemic-engineering/witness/pkg/record/storage"
	"github.com/systemic-engineering/witness/pkg/registry"
	"github.com/systemic-engineering/witness/pkg/span"
	"github.com/systemic-engineering/witness/pkg/unit"
)

// TestPipelineEndToEnd runs the full span pipeline in process: units
// spawn across goroutines, spans register with the registry, boundary
// events flow over the bus, and the recorder persists every finished
// span.
func TestPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	reg, err := registry.Install("integration", registry.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to install registry: %v", err)
	}
	defer registry.Uninstall("integration")

	eventBus := bus.New()
	defer eventBus.Close()
	if err := eventBus.EnableWorkerPool(4, 256); err != nil {
		t.Fatalf("failed to enable worker pool: %v", err)
	}

	store := storage.NewMemoryStorage()
	defer store.Close()

	rec := recorder.New(store, recorder.DefaultConfig())
	rec.Attach(eventBus)
	defer rec.Close()
	defer rec.Detach(eventBus)

	tracer := span.NewTracer(span.Config{
		Registry: reg,
		Bus:      eventBus,
	})

	// A parent unit starts a span, then hands work to a child unit on
	// another goroutine. The child's span must nest under the parent
	// span even though the two units run concurrently.
	done := make(chan string, 1)
	parent := unit.Go(context.Background(), func(ctx context.Context) {
		ctx, parentSpan := tracer.StartSpan(ctx, "request.handle")
		defer parentSpan.Finish()

		child := unit.Go(ctx, func(ctx context.Context) {
			_, childSpan := tracer.StartSpan(ctx, "request.persist")
			childSpan.SetTag("table", "orders")
			childSpan.Finish()
			done <- childSpan.TraceID()
		})
		<-child.Done()
	})

	var childTrace string
	select {
	case childTrace = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for child span")
	}
	<-parent.Done()

	// Delivery and persistence are both async; wait for the records to
	// land before asserting.
	ctx := context.Background()
	waitDeadline := time.Now().Add(5 * time.Second)
	for {
		n, err := store.Count(ctx, &record.Query{})
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n == 2 {
			break
		}
		if time.Now().After(waitDeadline) {
			t.Fatalf("expected 2 recorded spans, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	records, err := store.Query(ctx, &record.Query{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	byName := make(map[string]*record.SpanRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}
	parentRec, ok := byName["request.handle"]
	if !ok {
		t.Fatal("missing parent span record")
	}
	childRec, ok := byName["request.persist"]
	if !ok {
		t.Fatal("missing child span record")
	}

	if childRec.TraceID != parentRec.TraceID {
		t.Errorf("expected child to share the parent trace, got %q and %q",
			childRec.TraceID, parentRec.TraceID)
	}
	if childRec.TraceID != childTrace {
		t.Errorf("recorded trace %q does not match live trace %q", childRec.TraceID, childTrace)
	}
	if childRec.ParentID != parentRec.SpanID {
		t.Errorf("expected child parent %q, got %q", parentRec.SpanID, childRec.ParentID)
	}
	if v, ok := childRec.Tags["table"]; !ok || v != "orders" {
		t.Errorf("expected tag table=orders, got %v", childRec.Tags)
	}

	// Spans unregistered on finish, so only tombstones remain; a manual
	// sweep with zero TTL must clear them all.
	deadline := time.Now().Add(5 * time.Second)
	swept := 0
	for time.Now().Before(deadline) {
		swept += reg.Sweep(0)
		if swept >= 2 && reg.Stats().Entries == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if stats := reg.Stats(); stats.Entries != 0 {
		t.Errorf("expected empty registry after sweep, got %d entries", stats.Entries)
	}
}

// TestPipelineSQLiteBackend runs the recording path against the SQLite
// backend to cover the on-disk storage wiring.
func TestPipelineSQLiteBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
		Path: t.TempDir() + "/spans.db",
	})
	if err != nil {
		t.Fatalf("failed to create sqlite storage: %v", err)
	}
	defer store.Close()

	eventBus := bus.New()
	defer eventBus.Close()

	rec := recorder.New(store, recorder.DefaultConfig())
	rec.Attach(eventBus)
	defer rec.Detach(eventBus)

	tracer := span.NewTracer(span.Config{Bus: eventBus})

	u := unit.Go(context.Background(), func(ctx context.Context) {
		_, s := tracer.StartSpan(ctx, "batch.process")
		s.Finish()
	})
	<-u.Done()

	deadline := time.Now().Add(5 * time.Second)
	for {
		count, err := store.Count(context.Background(), &record.Query{Name: "batch.process"})
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 record, got %d", count)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec.Close()
}
