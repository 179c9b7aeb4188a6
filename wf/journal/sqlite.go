package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteJournal is a SQLite-backed Store: a single-file transcript
// database with zero setup, suitable for local runs that want an audit
// trail surviving the process. Use ":memory:" for a throwaway database
// in tests.
//
// WAL mode is enabled so readers (transcript inspection) don't block
// the appending engine.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewSQLiteJournal opens (creating if needed) the transcript database
// at path and migrates the schema.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS run_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			kind TEXT NOT NULL,
			state TEXT NOT NULL,
			op TEXT NOT NULL DEFAULT '',
			detail TEXT,
			UNIQUE (run_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_run_records_run ON run_records (run_id, seq);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Append adds a record to the run's transcript.
func (j *SQLiteJournal) Append(ctx context.Context, runID string, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal is closed")
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_records (run_id, seq, at, kind, state, op, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Seq, rec.At.UTC().Format(time.RFC3339Nano), rec.Kind, rec.State, rec.Op, string(rec.Detail))
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// LoadRun returns the run's transcript ordered by sequence number.
func (j *SQLiteJournal) LoadRun(ctx context.Context, runID string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, at, kind, state, op, detail FROM run_records WHERE run_id = ? ORDER BY seq`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var at string
		var detail sql.NullString
		if err := rows.Scan(&rec.Seq, &at, &rec.Kind, &rec.State, &rec.Op, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse record time %q: %w", at, err)
		}
		rec.At = parsed
		if detail.Valid {
			rec.Detail = []byte(detail.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Runs lists recorded run IDs, most recently started first.
func (j *SQLiteJournal) Runs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id FROM run_records GROUP BY run_id ORDER BY MIN(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
