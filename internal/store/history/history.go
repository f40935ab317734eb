package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	input_path   TEXT NOT NULL,
	output_path  TEXT NOT NULL DEFAULT '',
	language     TEXT NOT NULL DEFAULT '',
	encoding     TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	total        INTEGER NOT NULL DEFAULT 0,
	categorized  INTEGER NOT NULL DEFAULT 0,
	unknown      INTEGER NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);

CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      DATETIME NOT NULL,
	run_id         TEXT NOT NULL DEFAULT '',
	operation      TEXT NOT NULL,
	provider_name  TEXT NOT NULL DEFAULT '',
	model_name     TEXT NOT NULL DEFAULT '',
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	cost           REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ai_usage_logs_run_id ON ai_usage_logs (run_id);
`

// Store implements store.HistoryStore on a local SQLite file.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ store.HistoryStore = (*Store)(nil)

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("unable to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_loc=UTC&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open history database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to apply history schema: %w", err)
	}
	log.Debugf("Opened history database %s", path)
	return &Store{db: db}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database. Later calls are no-ops and every other method
// then fails with store.ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) usable() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}
