package span

import (
	"context"
	"sync"
	"time"

	"github.com/systemic-engineering/witness/pkg/unit"
)

// Status is the result classification of a finished span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Span represents a single named unit of work with start/stop boundaries.
// Spans are value payloads once published; mutate them only through the
// owning ActiveSpan while the work is running.
type Span struct {
	Tags      map[string]string `json:"tags,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration"`
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Name      string            `json:"name"`
	UnitID    unit.ID           `json:"unit_id,omitempty"`
	Status    Status            `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// ActiveSpan wraps a Span with thread-safe tag operations and lifecycle
// management. Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	span   *Span
	tracer *Tracer
	owner  *unit.Unit
	mu     sync.Mutex
}

// SetTag adds a key-value pair to the span. No-op once finished.
func (a *ActiveSpan) SetTag(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.span.EndTime.IsZero() {
		return
	}
	if a.span.Tags == nil {
		a.span.Tags = make(map[string]string)
	}
	a.span.Tags[key] = value
}

// GetTag retrieves a tag value by key.
func (a *ActiveSpan) GetTag(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.span.Tags == nil {
		return "", false
	}
	v, ok := a.span.Tags[key]
	return v, ok
}

// TraceID returns the span's trace identifier.
func (a *ActiveSpan) TraceID() string {
	return a.span.TraceID
}

// SpanID returns the span's identifier.
func (a *ActiveSpan) SpanID() string {
	return a.span.SpanID
}

// Finish completes the span with StatusOK. Safe to call multiple times;
// subsequent calls are no-ops.
func (a *ActiveSpan) Finish() {
	a.finish(StatusOK, nil)
}

// FinishWithError completes the span with StatusError and records err. A
// nil err finishes with StatusOK.
func (a *ActiveSpan) FinishWithError(err error) {
	if err == nil {
		a.finish(StatusOK, nil)
		return
	}
	a.finish(StatusError, err)
}

func (a *ActiveSpan) finish(status Status, err error) {
	a.mu.Lock()

	if !a.span.EndTime.IsZero() {
		a.mu.Unlock()
		return
	}

	a.span.EndTime = a.tracer.clock.Now()
	a.span.Duration = a.span.EndTime.Sub(a.span.StartTime)
	a.span.Status = status
	if err != nil {
		a.span.Error = err.Error()
	}
	finished := *a.span
	a.mu.Unlock()

	a.tracer.finishSpan(a.owner, finished)
}

type ctxKey struct{}

// FromContext extracts the current span from a context. Returns nil if no
// span is present.
func FromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(ctxKey{}).(*Span); ok {
		return s
	}
	return nil
}
