package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

func TestSnapshotRepository_SaveAndGet(t *testing.T) {
	repo := NewSnapshotRepository(newTestPool(t))
	ctx := context.Background()

	snapshot := persistence.SyncSnapshot{
		RecordID:    "rec-1",
		ChangeToken: "tok-7",
		ModifiedAt:  time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		Fields:      map[string]string{"title": "Prepare review"},
	}
	if err := repo.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	retrieved, err := repo.GetSnapshot(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if retrieved.ChangeToken != "tok-7" {
		t.Errorf("Expected token tok-7, got %s", retrieved.ChangeToken)
	}
	if !retrieved.ModifiedAt.Equal(snapshot.ModifiedAt) {
		t.Errorf("Expected modified at %v, got %v", snapshot.ModifiedAt, retrieved.ModifiedAt)
	}
	if retrieved.Fields["title"] != "Prepare review" {
		t.Errorf("Field map did not round trip: %+v", retrieved.Fields)
	}
}

func TestSnapshotRepository_SaveReplacesExisting(t *testing.T) {
	repo := NewSnapshotRepository(newTestPool(t))
	ctx := context.Background()

	base := persistence.SyncSnapshot{
		RecordID:    "rec-1",
		ChangeToken: "tok-1",
		ModifiedAt:  time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveSnapshot(ctx, base); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	base.ChangeToken = "tok-2"
	base.Deleted = true
	if err := repo.SaveSnapshot(ctx, base); err != nil {
		t.Fatalf("second SaveSnapshot failed: %v", err)
	}

	retrieved, err := repo.GetSnapshot(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if retrieved.ChangeToken != "tok-2" || !retrieved.Deleted {
		t.Errorf("Replace did not stick: %+v", retrieved)
	}
}

func TestSnapshotRepository_ListOrdered(t *testing.T) {
	repo := NewSnapshotRepository(newTestPool(t))
	ctx := context.Background()

	modified := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"rec-c", "rec-a", "rec-b"} {
		snapshot := persistence.SyncSnapshot{RecordID: id, ChangeToken: "tok", ModifiedAt: modified}
		if err := repo.SaveSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("SaveSnapshot %s failed: %v", id, err)
		}
	}

	snapshots, err := repo.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(snapshots))
	}
	for i, want := range []string{"rec-a", "rec-b", "rec-c"} {
		if snapshots[i].RecordID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, snapshots[i].RecordID)
		}
	}
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo := NewSnapshotRepository(newTestPool(t))
	ctx := context.Background()

	snapshot := persistence.SyncSnapshot{
		RecordID:    "rec-1",
		ChangeToken: "tok",
		ModifiedAt:  time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := repo.DeleteSnapshot(ctx, "rec-1"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := repo.GetSnapshot(ctx, "rec-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteSnapshot(ctx, "rec-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on repeated delete, got %v", err)
	}
}
