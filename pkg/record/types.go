package record

import (
	"context"
	"time"

	"github.com/systemic-engineering/witness/pkg/unit"
)

// SpanRecord is the persisted form of one finished span.
type SpanRecord struct {
	// Identity
	ID      string `json:"id"` // UUID v4, assigned at recording time
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
	ParentID string `json:"parent_id,omitempty"`

	// Span content
	Name   string            `json:"name"`
	UnitID unit.ID           `json:"unit_id,omitempty"`
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`

	// Timing
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	RecordedTime time.Time     `json:"recorded_time"`
}

// Query defines filter parameters for querying span records. Zero-valued
// fields do not filter.
type Query struct {
	// TraceID restricts results to one trace.
	TraceID string `json:"trace_id,omitempty"`

	// Name restricts results to spans with this exact name.
	Name string `json:"name,omitempty"`

	// Status restricts results to one status ("ok", "error").
	Status string `json:"status,omitempty"`

	// StartTime and EndTime bound the records' EndTime, inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Pagination. Limit 0 means unlimited.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Storage persists span records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, rec *SpanRecord) error

	// Query returns records matching the filters, oldest first.
	Query(ctx context.Context, q *Query) ([]*SpanRecord, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching the filters and returns how many
	// were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}
