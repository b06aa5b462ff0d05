package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

func TestTaskRepository_CreateAndGet(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	due := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	notes := "bring the printed draft"
	task := persistence.Task{
		ID:                "task-1",
		Title:             "Prepare review",
		Notes:             &notes,
		DueDate:           &due,
		EstimatedDuration: 45 * time.Minute,
	}

	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	retrieved, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if retrieved.Title != "Prepare review" {
		t.Errorf("Expected title 'Prepare review', got '%s'", retrieved.Title)
	}
	if retrieved.Notes == nil || *retrieved.Notes != notes {
		t.Errorf("Expected notes %q, got %v", notes, retrieved.Notes)
	}
	if retrieved.DueDate == nil || !retrieved.DueDate.Equal(due) {
		t.Errorf("Expected due date %v, got %v", due, retrieved.DueDate)
	}
	if retrieved.EstimatedDuration != 45*time.Minute {
		t.Errorf("Expected estimate 45m, got %v", retrieved.EstimatedDuration)
	}
	if retrieved.EventID != nil {
		t.Errorf("Expected no event binding on a fresh task, got %v", retrieved.EventID)
	}
}

func TestTaskRepository_SubMinuteEstimateRoundTrip(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	task := persistence.Task{
		ID:                "task-1",
		Title:             "Quick check-in",
		EstimatedDuration: 90 * time.Second,
	}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	retrieved, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if retrieved.EstimatedDuration != 90*time.Second {
		t.Errorf("Estimate 90s came back as %v", retrieved.EstimatedDuration)
	}
}

func TestTaskRepository_CreateTask_EmptyTitle(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))

	err := repo.CreateTask(context.Background(), persistence.Task{ID: "task-1"})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("Expected constraint violation for empty title, got %v", err)
	}
}

func TestTaskRepository_CreateTask_Duplicate(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	task := persistence.Task{ID: "task-1", Title: "Prepare review"}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := repo.CreateTask(ctx, task); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
}

func TestTaskRepository_UpdateTask(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	if err := repo.CreateTask(ctx, persistence.Task{ID: "task-1", Title: "Prepare review"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	updated := persistence.Task{ID: "task-1", Title: "Prepare review v2", Completed: true}
	if err := repo.UpdateTask(ctx, updated); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	retrieved, err := repo.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if retrieved.Title != "Prepare review v2" || !retrieved.Completed {
		t.Errorf("Update did not stick: %+v", retrieved)
	}
}

func TestTaskRepository_UpdateTask_NotFound(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))

	err := repo.UpdateTask(context.Background(), persistence.Task{ID: "missing", Title: "x"})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepository_SetEventID(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	if err := repo.CreateTask(ctx, persistence.Task{ID: "task-1", Title: "Prepare review"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	eventID := "evt-9"
	if err := repo.SetEventID(ctx, "task-1", &eventID); err != nil {
		t.Fatalf("SetEventID failed: %v", err)
	}
	retrieved, _ := repo.GetTask(ctx, "task-1")
	if retrieved.EventID == nil || *retrieved.EventID != "evt-9" {
		t.Fatalf("Expected event binding evt-9, got %v", retrieved.EventID)
	}

	// Clearing the binding.
	if err := repo.SetEventID(ctx, "task-1", nil); err != nil {
		t.Fatalf("SetEventID(nil) failed: %v", err)
	}
	retrieved, _ = repo.GetTask(ctx, "task-1")
	if retrieved.EventID != nil {
		t.Fatalf("Expected cleared binding, got %v", retrieved.EventID)
	}
}

func TestTaskRepository_DeleteTask_CascadesTimeBlocks(t *testing.T) {
	pool := newTestPool(t)
	tasks := NewTaskRepository(pool)
	blocks := NewTimeBlockRepository(pool)
	ctx := context.Background()

	if err := tasks.CreateTask(ctx, persistence.Task{ID: "task-1", Title: "Prepare review"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	block := persistence.TimeBlock{
		ID:       "block-1",
		TaskID:   "task-1",
		Start:    time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
		Duration: 30 * time.Minute,
	}
	if err := blocks.CreateTimeBlock(ctx, block); err != nil {
		t.Fatalf("CreateTimeBlock failed: %v", err)
	}

	if err := tasks.DeleteTask(ctx, "task-1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := blocks.GetTimeBlock(ctx, "block-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected cascade delete of time blocks, got %v", err)
	}
}

func TestTaskRepository_ListTasks_OrderedByCreation(t *testing.T) {
	repo := NewTaskRepository(newTestPool(t))
	ctx := context.Background()

	for _, id := range []string{"task-a", "task-b", "task-c"} {
		if err := repo.CreateTask(ctx, persistence.Task{ID: id, Title: "t"}); err != nil {
			t.Fatalf("CreateTask %s failed: %v", id, err)
		}
	}

	tasks, err := repo.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("Expected 3 tasks, got %d", len(tasks))
	}
}
