package otlp

import (
	"context"
	"testing"
	"time"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/span"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed for disabled config: %v", err)
	}
	if e.Enabled() {
		t.Error("Enabled() = true for disabled config")
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on noop exporter failed: %v", err)
	}
}

func TestNew_RejectsNilAndEmptyEndpoint(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) did not fail")
	}
	if _, err := New(&Config{Enabled: true, Endpoint: ""}); err == nil {
		t.Error("New() accepted an enabled config with no endpoint")
	}
}

func TestExporter_NoopExportViaBus(t *testing.T) {
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	b := bus.New()
	defer b.Close()
	e.Attach(b)

	// A noop exporter must absorb finish events without touching any
	// backend; this exercises the full bus path.
	now := time.Now()
	b.Publish(span.TopicFinish, span.Span{
		TraceID:   "t",
		SpanID:    "s",
		Name:      "noop-export",
		Status:    span.StatusOK,
		StartTime: now.Add(-time.Second),
		EndTime:   now,
	})
	b.Publish(span.TopicFinish, "not-a-span") // wrong payload type, ignored

	e.Detach(b)
}
