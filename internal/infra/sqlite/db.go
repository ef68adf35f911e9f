// Package sqlite provides SQLite-based persistent storage for governance state.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the SQLite database at dir/governance.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "governance.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, logger: logger.With("component", "sqlite")}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	d.logger.Debug("database opened", "path", dbPath)
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Per-kind id sequences (proposal, vote, comment)
		`CREATE TABLE IF NOT EXISTS id_counters (
			kind  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,

		// Proposals: full record as JSON, hot fields as columns for listing
		`CREATE TABLE IF NOT EXISTS proposals (
			id            INTEGER PRIMARY KEY,
			proposal_type TEXT NOT NULL,
			proposer      TEXT NOT NULL,
			status        TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			body          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_created ON proposals(created_at)`,

		// Vote ledger: the UNIQUE pair is the one-vote-per-principal index
		`CREATE TABLE IF NOT EXISTS votes (
			id          INTEGER PRIMARY KEY,
			proposal_id INTEGER NOT NULL REFERENCES proposals(id),
			voter       TEXT NOT NULL,
			vote_type   TEXT NOT NULL,
			weight      INTEGER NOT NULL,
			cast_at     INTEGER NOT NULL,
			rationale   TEXT NOT NULL DEFAULT '',
			relevance   INTEGER NOT NULL DEFAULT 50,
			UNIQUE (proposal_id, voter)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_proposal ON votes(proposal_id)`,

		// Audit trail
		`CREATE TABLE IF NOT EXISTS audit_log (
			id         TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			actor      TEXT NOT NULL,
			target_id  INTEGER NOT NULL,
			details    TEXT NOT NULL,
			severity   TEXT NOT NULL,
			ts         INTEGER NOT NULL,
			data_hash  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
