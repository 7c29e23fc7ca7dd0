package database

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version     string
	description string
	sql         string
}

// migrations are applied in slice order, each once, inside a transaction.
var migrations = []migration{
	{
		version:     "001",
		description: "chat_messages",
		sql: `
			CREATE TABLE IF NOT EXISTS chat_messages (
				seq        INTEGER PRIMARY KEY,
				id         TEXT NOT NULL UNIQUE,
				session_id TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				user_name  TEXT NOT NULL,
				is_teacher INTEGER NOT NULL DEFAULT 0,
				text       TEXT NOT NULL,
				timestamp  TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq);
		`,
	},
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	versions := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions[v] = true
	}
	return versions, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}
