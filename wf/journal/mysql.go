package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLJournal is a MySQL/MariaDB-backed Store for deployments that
// keep workflow transcripts centrally (audit trails, compliance,
// cross-host inspection).
//
// DSN format follows go-sql-driver/mysql:
//
//	user:password@tcp(localhost:3306)/workflows?parseTime=true
//
// parseTime=true is required so timestamp columns scan into time.Time.
// Keep credentials out of source; read the DSN from the environment or
// config.
type MySQLJournal struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLJournal connects to the database, verifies the connection,
// and migrates the schema.
func NewMySQLJournal(dsn string) (*MySQLJournal, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	j := &MySQLJournal{db: db}
	if err := j.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *MySQLJournal) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS run_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			at TIMESTAMP(6) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			state VARCHAR(255) NOT NULL,
			op VARCHAR(32) NOT NULL DEFAULT '',
			detail JSON,
			INDEX idx_run_records_run (run_id, seq),
			UNIQUE KEY unique_run_seq (run_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Append adds a record to the run's transcript.
func (j *MySQLJournal) Append(ctx context.Context, runID string, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal is closed")
	}
	var detail any
	if len(rec.Detail) > 0 {
		detail = string(rec.Detail)
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_records (run_id, seq, at, kind, state, op, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Seq, rec.At, rec.Kind, rec.State, rec.Op, detail)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// LoadRun returns the run's transcript ordered by sequence number.
func (j *MySQLJournal) LoadRun(ctx context.Context, runID string) ([]Record, error) {
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
		var detail sql.NullString
		if err := rows.Scan(&rec.Seq, &rec.At, &rec.Kind, &rec.State, &rec.Op, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
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
func (j *MySQLJournal) Runs(ctx context.Context) ([]string, error) {
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

// Close closes the connection pool.
func (j *MySQLJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
