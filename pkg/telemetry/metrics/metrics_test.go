package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/registry"
	"github.com/systemic-engineering/witness/pkg/span"
)

func TestCollector_CountsBusEvents(t *testing.T) {
	c := NewCollector(nil, nil)
	b := bus.New()
	defer b.Close()
	c.Attach(b)

	b.Publish(span.TopicStart, span.Span{Name: "op"})
	b.Publish(span.TopicStart, span.Span{Name: "op"})
	b.Publish(span.TopicFinish, span.Span{
		Name:     "op",
		Status:   span.StatusOK,
		Duration: 25 * time.Millisecond,
	})
	b.Publish(span.TopicFinish, span.Span{
		Name:     "op",
		Status:   span.StatusError,
		Duration: 5 * time.Millisecond,
	})

	if got := testutil.ToFloat64(c.spansStarted); got != 2 {
		t.Errorf("started_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.spansFinished.WithLabelValues("ok")); got != 1 {
		t.Errorf("finished_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.spansFinished.WithLabelValues("error")); got != 1 {
		t.Errorf("finished_total{error} = %v, want 1", got)
	}

	c.Detach(b)
	b.Publish(span.TopicStart, span.Span{Name: "op"})
	if got := testutil.ToFloat64(c.spansStarted); got != 2 {
		t.Errorf("started_total = %v after Detach, want 2", got)
	}
}

func TestCollector_SweepAndRegistryGauges(t *testing.T) {
	c := NewCollector(nil, nil)

	c.RecordSweep(3)
	c.RecordSweep(0)

	if got := testutil.ToFloat64(c.sweepsTotal); got != 2 {
		t.Errorf("sweeps_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tombstonesSwept); got != 3 {
		t.Errorf("tombstones_swept_total = %v, want 3", got)
	}

	c.ObserveRegistry(registry.Stats{Entries: 7, Subscriptions: 4})
	if got := testutil.ToFloat64(c.registryEntries); got != 7 {
		t.Errorf("registry entries gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.registrySubscriptions); got != 4 {
		t.Errorf("registry subscriptions gauge = %v, want 4", got)
	}
}

func TestCollector_LookupsAndBusDrops(t *testing.T) {
	c := NewCollector(nil, nil)

	c.RecordLookup(true)
	c.RecordLookup(true)
	c.RecordLookup(false)

	if got := testutil.ToFloat64(c.lookupsTotal.WithLabelValues("hit")); got != 2 {
		t.Errorf("lookups_total{hit} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.lookupsTotal.WithLabelValues("miss")); got != 1 {
		t.Errorf("lookups_total{miss} = %v, want 1", got)
	}

	c.ObserveBusDropped(9)
	if got := testutil.ToFloat64(c.busDropped); got != 9 {
		t.Errorf("bus dropped gauge = %v, want 9", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(&Config{Namespace: "testns"}, nil)
	c.RecordSweep(1)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("metrics scrape failed: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if !strings.Contains(body, "testns_registry_sweeps_total") {
		t.Errorf("metrics exposition is missing expected series:\n%s", body)
	}
}
