package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is the ordered schema history. Entries are append-only; applied
// versions are tracked in schema_migrations and never re-run.
var migrations = []struct {
	version int
	name    string
	stmts   []string
}{
	{
		version: 1,
		name:    "create_tasks",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL CHECK (length(title) > 0),
				notes TEXT,
				due_at TEXT,
				estimated_seconds INTEGER NOT NULL DEFAULT 0 CHECK (estimated_seconds >= 0),
				completed INTEGER NOT NULL DEFAULT 0,
				event_id TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "create_time_blocks",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS time_blocks (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
				start_time TEXT NOT NULL,
				duration_seconds INTEGER NOT NULL CHECK (duration_seconds > 0),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_time_blocks_task ON time_blocks(task_id)`,
			`CREATE INDEX IF NOT EXISTS idx_time_blocks_start ON time_blocks(start_time)`,
		},
	},
	{
		version: 3,
		name:    "create_repeat_rules",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS repeat_rules (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
				frequency INTEGER NOT NULL,
				weekdays INTEGER NOT NULL DEFAULT 0,
				starts_on TEXT NOT NULL,
				ends_on TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_repeat_rules_task ON repeat_rules(task_id)`,
		},
	},
	{
		version: 4,
		name:    "create_sync_snapshots",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sync_snapshots (
				record_id TEXT PRIMARY KEY,
				change_token TEXT NOT NULL,
				modified_at TEXT NOT NULL,
				deleted INTEGER NOT NULL DEFAULT 0,
				fields TEXT NOT NULL DEFAULT '{}',
				updated_at TEXT NOT NULL
			)`,
		},
	},
}

// Migrate brings the schema up to the latest version. Each pending migration
// runs in its own transaction together with its version bookkeeping.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("sqlite: failed to create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := pool.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("sqlite: failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if current.Valid && int64(migration.version) <= current.Int64 {
			continue
		}
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range migration.stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("sqlite: migration %d (%s) failed: %w", migration.version, migration.name, err)
				}
			}
			if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, migration.version, migration.name); err != nil {
				return fmt.Errorf("sqlite: failed to record migration %d: %w", migration.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
