package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/systemic-engineering/witness/pkg/record"
)

// MemoryStorage implements record.Storage using an in-memory map. It is
// intended for tests and ephemeral deployments.
type MemoryStorage struct {
	records map[string]*record.SpanRecord
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*record.SpanRecord),
	}
}

// Store persists a span record in memory.
func (s *MemoryStorage) Store(_ context.Context, rec *record.SpanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Query retrieves span records matching the query filters, oldest first.
func (s *MemoryStorage) Query(_ context.Context, q *record.Query) ([]*record.SpanRecord, error) {
	s.mu.RLock()
	var results []*record.SpanRecord
	for _, rec := range s.records {
		if matches(rec, q) {
			cp := *rec
			results = append(results, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].EndTime.Before(results[j].EndTime)
	})

	start := q.Offset
	if start > len(results) {
		return []*record.SpanRecord{}, nil
	}
	results = results[start:]
	if q.Limit > 0 && q.Limit < len(results) {
		results = results[:q.Limit]
	}
	return results, nil
}

// Count returns the number of span records matching the query filters.
func (s *MemoryStorage) Count(_ context.Context, q *record.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.records {
		if matches(rec, q) {
			n++
		}
	}
	return n, nil
}

// Delete removes span records matching the query filters.
func (s *MemoryStorage) Delete(_ context.Context, q *record.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if matches(rec, q) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

func matches(rec *record.SpanRecord, q *record.Query) bool {
	if q == nil {
		return true
	}
	if q.TraceID != "" && rec.TraceID != q.TraceID {
		return false
	}
	if q.Name != "" && rec.Name != q.Name {
		return false
	}
	if q.Status != "" && rec.Status != q.Status {
		return false
	}
	if q.StartTime != nil && rec.EndTime.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && rec.EndTime.After(*q.EndTime) {
		return false
	}
	return true
}
