package wake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// schema creates the single table backing the repository.
const schema = `
CREATE TABLE IF NOT EXISTS pending_wakes (
	id         INTEGER PRIMARY KEY,
	trigger_at INTEGER NOT NULL,
	payload    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS pending_wakes_trigger_at ON pending_wakes(trigger_at);
`

var errSQLitePathRequired = errors.New("sqlite path is required")

// SQLiteRepository persists records in a SQLite database.
// Trigger instants are stored as Unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, busyTimeout time.Duration) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errSQLitePathRequired
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		if _, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Save inserts or replaces the record.
func (r *SQLiteRepository) Save(ctx context.Context, record Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_wakes(id, trigger_at, payload) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET trigger_at = excluded.trigger_at, payload = excluded.payload`,
		record.ID, record.TriggerAt.UnixMilli(), record.Payload,
	)
	if err != nil {
		return fmt.Errorf("save wake %d: %w", record.ID, err)
	}

	return nil
}

// Delete removes the record if present.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_wakes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete wake %d: %w", id, err)
	}

	return nil
}

// List returns all records ordered by trigger instant.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, trigger_at, payload FROM pending_wakes ORDER BY trigger_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list wakes: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []Record

	for rows.Next() {
		var (
			record    Record
			triggerMS int64
		)

		if err = rows.Scan(&record.ID, &triggerMS, &record.Payload); err != nil {
			return nil, fmt.Errorf("scan wake: %w", err)
		}

		record.TriggerAt = time.UnixMilli(triggerMS)
		result = append(result, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wakes: %w", err)
	}

	return result, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	return r.db.Close()
}
