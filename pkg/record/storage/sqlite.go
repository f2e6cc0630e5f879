package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/systemic-engineering/witness/pkg/record"
	"github.com/systemic-engineering/witness/pkg/unit"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/spans.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements record.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend. It opens the
// database in WAL mode and initializes the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	// modernc.org/sqlite takes pragmas as _pragma=name(value) pairs;
	// mattn-style _journal_mode parameters are silently ignored.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		config.Path, int(config.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, record.NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "record.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite span storage initialized", "path", config.Path)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return record.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return record.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return record.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return record.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists a span record.
func (s *SQLiteStorage) Store(ctx context.Context, rec *record.SpanRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return record.NewStorageError("sqlite", "marshal_tags", err)
	}

	const q = `
		INSERT INTO spans (
			id, trace_id, span_id, parent_id,
			name, unit_id, status, error, tags,
			start_time, end_time, duration_ns, recorded_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		rec.ID, rec.TraceID, rec.SpanID, rec.ParentID,
		rec.Name, uint64(rec.UnitID), rec.Status, rec.Error, string(tags),
		rec.StartTime, rec.EndTime, rec.Duration.Nanoseconds(), rec.RecordedTime,
	)
	if err != nil {
		return record.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves span records matching the filters, oldest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *record.Query) ([]*record.SpanRecord, error) {
	where, args := buildWhere(q)

	sqlq := `
		SELECT id, trace_id, span_id, parent_id,
		       name, unit_id, status, error, tags,
		       start_time, end_time, duration_ns, recorded_time
		FROM spans` + where + ` ORDER BY end_time ASC`
	if q != nil && q.Limit > 0 {
		sqlq += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	} else if q != nil && q.Offset > 0 {
		sqlq += fmt.Sprintf(" LIMIT -1 OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlq, args...)
	if err != nil {
		return nil, record.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	var results []*record.SpanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, record.NewStorageError("sqlite", "scan", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("sqlite", "query", err)
	}
	return results, nil
}

// Count returns the number of span records matching the filters.
func (s *SQLiteStorage) Count(ctx context.Context, q *record.Query) (int64, error) {
	where, args := buildWhere(q)

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spans"+where, args...).Scan(&n)
	if err != nil {
		return 0, record.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Delete removes span records matching the filters.
func (s *SQLiteStorage) Delete(ctx context.Context, q *record.Query) (int64, error) {
	where, args := buildWhere(q)

	res, err := s.db.ExecContext(ctx, "DELETE FROM spans"+where, args...)
	if err != nil {
		return 0, record.NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, record.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// buildWhere translates a record.Query into a WHERE clause and arguments.
func buildWhere(q *record.Query) (string, []any) {
	if q == nil {
		return "", nil
	}

	var conds []string
	var args []any

	if q.TraceID != "" {
		conds = append(conds, "trace_id = ?")
		args = append(args, q.TraceID)
	}
	if q.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, q.Name)
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	if q.StartTime != nil {
		conds = append(conds, "end_time >= ?")
		args = append(args, *q.StartTime)
	}
	if q.EndTime != nil {
		conds = append(conds, "end_time <= ?")
		args = append(args, *q.EndTime)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*record.SpanRecord, error) {
	var rec record.SpanRecord
	var unitID uint64
	var durationNs int64
	var parentID, errMsg, tags sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.TraceID, &rec.SpanID, &parentID,
		&rec.Name, &unitID, &rec.Status, &errMsg, &tags,
		&rec.StartTime, &rec.EndTime, &durationNs, &rec.RecordedTime,
	)
	if err != nil {
		return nil, err
	}

	rec.ParentID = parentID.String
	rec.Error = errMsg.String
	rec.UnitID = unit.ID(unitID)
	rec.Duration = time.Duration(durationNs)
	if tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
