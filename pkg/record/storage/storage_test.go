package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/systemic-engineering/witness/pkg/record"
)

// backends returns a fresh instance of every storage backend under test.
func backends(t *testing.T) map[string]record.Storage {
	t.Helper()

	sqlite, err := NewSQLiteStorage(&SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "spans.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}

	return map[string]record.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func makeRecord(i int, name string, end time.Time) *record.SpanRecord {
	return &record.SpanRecord{
		ID:           fmt.Sprintf("rec-%s-%d", name, i),
		TraceID:      fmt.Sprintf("trace-%d", i%2),
		SpanID:       fmt.Sprintf("span-%d", i),
		Name:         name,
		Status:       "ok",
		Tags:         map[string]string{"idx": fmt.Sprintf("%d", i)},
		StartTime:    end.Add(-10 * time.Millisecond),
		EndTime:      end,
		Duration:     10 * time.Millisecond,
		RecordedTime: end,
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			for i := 0; i < 4; i++ {
				rec := makeRecord(i, "op", now.Add(time.Duration(i)*time.Second))
				if err := s.Store(ctx, rec); err != nil {
					t.Fatalf("Store() failed: %v", err)
				}
			}

			got, err := s.Query(ctx, &record.Query{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(got) != 4 {
				t.Fatalf("Query() returned %d records, want 4", len(got))
			}
			// Oldest first.
			for i := 1; i < len(got); i++ {
				if got[i].EndTime.Before(got[i-1].EndTime) {
					t.Fatal("Query() results not ordered oldest first")
				}
			}
			if got[0].Tags["idx"] != "0" {
				t.Errorf("tags did not round-trip: %v", got[0].Tags)
			}
		})
	}
}

func TestStorage_QueryFilters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			fail := makeRecord(0, "op-a", now)
			fail.Status = "error"
			fail.Error = "boom"
			if err := s.Store(ctx, fail); err != nil {
				t.Fatalf("Store() failed: %v", err)
			}
			if err := s.Store(ctx, makeRecord(1, "op-b", now.Add(time.Minute))); err != nil {
				t.Fatalf("Store() failed: %v", err)
			}

			byName, err := s.Query(ctx, &record.Query{Name: "op-a"})
			if err != nil {
				t.Fatalf("Query(name) failed: %v", err)
			}
			if len(byName) != 1 || byName[0].Error != "boom" {
				t.Errorf("Query(name) = %+v, want the op-a error record", byName)
			}

			byStatus, err := s.Count(ctx, &record.Query{Status: "error"})
			if err != nil {
				t.Fatalf("Count(status) failed: %v", err)
			}
			if byStatus != 1 {
				t.Errorf("Count(status=error) = %d, want 1", byStatus)
			}

			cutoff := now.Add(30 * time.Second)
			old, err := s.Count(ctx, &record.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Count(end_time) failed: %v", err)
			}
			if old != 1 {
				t.Errorf("Count(end_time<=cutoff) = %d, want 1", old)
			}
		})
	}
}

func TestStorage_QueryPagination(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			for i := 0; i < 5; i++ {
				if err := s.Store(ctx, makeRecord(i, "op", now.Add(time.Duration(i)*time.Second))); err != nil {
					t.Fatalf("Store() failed: %v", err)
				}
			}

			page, err := s.Query(ctx, &record.Query{Limit: 2, Offset: 2})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(page) != 2 {
				t.Fatalf("paged Query() returned %d records, want 2", len(page))
			}
			if page[0].SpanID != "span-2" || page[1].SpanID != "span-3" {
				t.Errorf("paged Query() = [%s, %s], want [span-2, span-3]",
					page[0].SpanID, page[1].SpanID)
			}
		})
	}
}

func TestStorage_Delete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			for i := 0; i < 3; i++ {
				if err := s.Store(ctx, makeRecord(i, "op", now.Add(time.Duration(i)*time.Hour))); err != nil {
					t.Fatalf("Store() failed: %v", err)
				}
			}

			cutoff := now.Add(90 * time.Minute)
			deleted, err := s.Delete(ctx, &record.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete() failed: %v", err)
			}
			if deleted != 2 {
				t.Errorf("Delete() removed %d records, want 2", deleted)
			}

			remaining, err := s.Count(ctx, &record.Query{})
			if err != nil {
				t.Fatalf("Count() failed: %v", err)
			}
			if remaining != 1 {
				t.Errorf("Count() = %d after delete, want 1", remaining)
			}
		})
	}
}

func TestSQLiteStorage_RejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(&SQLiteConfig{Path: ""})
	if err == nil {
		t.Fatal("NewSQLiteStorage() accepted an empty path")
	}
	var serr *record.StorageError
	if errors.As(err, &serr) {
		t.Log("got storage error:", serr)
	}
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.db")
	ctx := context.Background()

	s1, err := NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s1.Store(ctx, makeRecord(0, "durable", now)); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s2, err := NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	n, err := s2.Count(ctx, &record.Query{Name: "durable"})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d after reopen, want 1", n)
	}
}

func TestSQLiteStorage_AppliesPragmas(t *testing.T) {
	s, err := NewSQLiteStorage(&SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "spans.db"),
		BusyTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	defer s.Close()

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("querying journal_mode failed: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	var busyTimeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("querying busy_timeout failed: %v", err)
	}
	if busyTimeout != 2000 {
		t.Errorf("busy_timeout = %d, want 2000", busyTimeout)
	}

	// synchronous: 1 is NORMAL.
	var synchronous int
	if err := s.db.QueryRow("PRAGMA synchronous").Scan(&synchronous); err != nil {
		t.Fatalf("querying synchronous failed: %v", err)
	}
	if synchronous != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", synchronous)
	}
}
