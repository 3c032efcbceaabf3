package repository

import (
	"context"
	"fmt"
)

// Timestamps and dates are stored as RFC 3339 / YYYY-MM-DD text, uuids as
// text: the schema stays portable between SQLite and Postgres.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		client     TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		notes      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id         TEXT PRIMARY KEY,
		site_id    TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		full_name  TEXT NOT NULL,
		tax_code   TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		site_id       TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
		worker_id     TEXT REFERENCES workers(id) ON DELETE SET NULL,
		file_name     TEXT NOT NULL,
		original_name TEXT NOT NULL,
		stored_path   TEXT NOT NULL,
		doc_type      TEXT NOT NULL,
		holder_name   TEXT,
		tax_code      TEXT,
		issue_date    TEXT,
		expiry_date   TEXT,
		confidence    REAL NOT NULL DEFAULT 0,
		ocr_text      TEXT NOT NULL DEFAULT '',
		ocr_stub      INTEGER NOT NULL DEFAULT 0,
		needs_review  INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_workers_site ON workers(site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_site ON documents(site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_worker ON documents(worker_id)`,
}

// Migrate applies the schema idempotently.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
