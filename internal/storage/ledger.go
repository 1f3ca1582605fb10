package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/hashutil"

	_ "modernc.org/sqlite"
)

/*
Ledger keeps an auditable record of every dispatched target in a SQLite
database. One row per page, keyed by a BLAKE3 digest of the normalized URL.
Re-recording a page replaces its row.
*/
type Ledger struct {
	db *sql.DB
}

// LedgerRow is one recorded page.
type LedgerRow struct {
	ID          string
	URL         string
	Outcome     metadata.PageOutcome
	StatusCode  int
	ContentType string
	DurationMs  int64
	ObservedAt  time.Time
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Cause: ErrCauseOpenFailure, Path: path}
	}
	// a single writer avoids SQLITE_BUSY under concurrent workers
	db.SetMaxOpenConns(1)

	if err := initLedgerSchema(db); err != nil {
		db.Close()
		return nil, &StorageError{Message: err.Error(), Cause: ErrCauseOpenFailure, Path: path}
	}
	return &Ledger{db: db}, nil
}

func initLedgerSchema(db *sql.DB) error {
	statements := []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS pages (
			id           TEXT PRIMARY KEY,
			url          TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			status       INTEGER NOT NULL DEFAULT 0,
			content_type TEXT NOT NULL DEFAULT '',
			duration_ms  INTEGER NOT NULL DEFAULT 0,
			observed_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_outcome ON pages(outcome)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// SavePage implements metadata.PageStore.
func (l *Ledger) SavePage(ctx context.Context, event metadata.PageEvent) error {
	observedAt := event.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pages (id, url, outcome, status, content_type, duration_ms, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hashutil.PageID(event.URL),
		event.URL,
		string(event.Outcome),
		event.StatusCode,
		event.ContentType,
		event.Duration.Milliseconds(),
		observedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure}
	}
	return nil
}

// Page looks up the row recorded for a normalized URL.
func (l *Ledger) Page(ctx context.Context, url string) (LedgerRow, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, url, outcome, status, content_type, duration_ms, observed_at FROM pages WHERE id = ?`,
		hashutil.PageID(url),
	)
	var r LedgerRow
	var outcome, observedAt string
	err := row.Scan(&r.ID, &r.URL, &outcome, &r.StatusCode, &r.ContentType, &r.DurationMs, &observedAt)
	if err == sql.ErrNoRows {
		return LedgerRow{}, false, nil
	}
	if err != nil {
		return LedgerRow{}, false, &StorageError{Message: err.Error(), Cause: ErrCauseQueryFailure}
	}
	r.Outcome = metadata.PageOutcome(outcome)
	r.ObservedAt, err = time.Parse(time.RFC3339Nano, observedAt)
	if err != nil {
		return LedgerRow{}, false, &StorageError{Message: err.Error(), Cause: ErrCauseQueryFailure}
	}
	return r, true, nil
}

// CountByOutcome returns the number of recorded pages per outcome.
func (l *Ledger) CountByOutcome(ctx context.Context) (map[metadata.PageOutcome]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM pages GROUP BY outcome`)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Cause: ErrCauseQueryFailure}
	}
	defer rows.Close()

	counts := make(map[metadata.PageOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, &StorageError{Message: err.Error(), Cause: ErrCauseQueryFailure}
		}
		counts[metadata.PageOutcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: err.Error(), Cause: ErrCauseQueryFailure}
	}
	return counts, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
