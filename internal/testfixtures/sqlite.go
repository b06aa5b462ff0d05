package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/momentum-planner/internal/persistence"
	"github.com/example/momentum-planner/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Tasks     persistence.TaskRepository
	Blocks    persistence.TimeBlockRepository
	Repeats   persistence.RepeatRepository
	Snapshots persistence.SnapshotRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness backed by a temporary database
// file that is migrated automatically. Callers may optionally invoke Close,
// but the helper also registers a cleanup callback with the provided
// testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	dsn := "file:" + filepath.Join(dir, "planner.db")

	pool, err := sqlite.Open(dsn)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Tasks:     sqlite.NewTaskRepository(pool),
		Blocks:    sqlite.NewTimeBlockRepository(pool),
		Repeats:   sqlite.NewRepeatRepository(pool),
		Snapshots: sqlite.NewSnapshotRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
