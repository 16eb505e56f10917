package database

import (
	"context"
	"database/sql"
	"fmt"

	"notesync/pkg/logger"
)

// Schema is applied statement by statement; every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id             UUID PRIMARY KEY,
		user_id        TEXT NOT NULL,
		note_id        TEXT NOT NULL,
		subject_id     TEXT NOT NULL,
		variant        TEXT NOT NULL DEFAULT 'main',
		content        TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		last_edited_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS notes_key_idx ON notes (user_id, note_id, subject_id, variant)`,
	`CREATE TABLE IF NOT EXISTS items (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT,
		subjects    TEXT[] NOT NULL DEFAULT '{}',
		date        TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS items_user_created_idx ON items (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id              UUID PRIMARY KEY,
		parent_id       UUID NOT NULL REFERENCES items (id) ON DELETE CASCADE,
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		description     TEXT,
		last_clicked_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS cards_parent_clicked_idx ON cards (parent_id, last_clicked_at DESC)`,
}

// Migrate applies Schema inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			logger.Sugar.Errorf("Migration statement %d failed: %v", i, err)
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	logger.Sugar.Infof("Applied %d schema statements", len(Schema))
	return nil
}
