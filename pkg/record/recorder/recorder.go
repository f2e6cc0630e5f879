package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/record"
	"github.com/systemic-engineering/witness/pkg/span"
)

// Config contains configuration for the span recorder.
type Config struct {
	// Enabled enables span recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000.
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists finished spans as records. Spans are enqueued on a
// buffered channel and written by a background worker; a full buffer drops
// the span rather than blocking the publisher.
type Recorder struct {
	storage    record.Storage
	config     *Config
	recordChan chan *record.SpanRecord
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger
	subID      uint64
	dropped    atomic.Uint64
}

// New creates a recorder writing to the provided storage backend and
// starts its background worker.
func New(storage record.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *record.SpanRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "record.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("span recorder started",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Attach subscribes the recorder to span finish events on the bus.
func (r *Recorder) Attach(b *bus.Bus) {
	r.subID = b.Subscribe(span.TopicFinish, func(evt bus.Event) {
		s, ok := evt.Payload.(span.Span)
		if !ok {
			return
		}
		r.Record(&s)
	})
}

// Detach removes the bus subscription.
func (r *Recorder) Detach(b *bus.Bus) {
	if r.subID != 0 {
		b.Unsubscribe(r.subID)
		r.subID = 0
	}
}

// Record enqueues one finished span for persistence. It returns
// immediately; a full queue increments the drop counter.
func (r *Recorder) Record(s *span.Span) {
	if !r.config.Enabled {
		return
	}

	rec := &record.SpanRecord{
		ID:           uuid.NewString(),
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentID:     s.ParentID,
		Name:         s.Name,
		UnitID:       s.UnitID,
		Status:       string(s.Status),
		Error:        s.Error,
		Tags:         s.Tags,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Duration:     s.Duration,
		RecordedTime: time.Now(),
	}

	select {
	case r.recordChan <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Warn("span record dropped, buffer full", "span_id", s.SpanID)
	}
}

// Dropped returns the number of spans dropped because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close drains queued records and stops the worker.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.recordChan:
			r.write(rec)
		case <-r.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case rec := <-r.recordChan:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec *record.SpanRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.Error("failed to persist span record",
			"record_id", rec.ID,
			"span_id", rec.SpanID,
			"error", err,
		)
	}
}
