package persistence

import (
	"context"
	"time"
)

// TaskRepository exposes CRUD operations for tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task Task) error
	UpdateTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	DeleteTask(ctx context.Context, id string) error
	// SetEventID records or clears the external calendar event binding.
	SetEventID(ctx context.Context, taskID string, eventID *string) error
}

// TimeBlockFilter narrows time-block queries.
type TimeBlockFilter struct {
	TaskID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// TimeBlockRepository stores planned working intervals.
type TimeBlockRepository interface {
	CreateTimeBlock(ctx context.Context, block TimeBlock) error
	GetTimeBlock(ctx context.Context, id string) (TimeBlock, error)
	ListTimeBlocks(ctx context.Context, filter TimeBlockFilter) ([]TimeBlock, error)
	DeleteTimeBlock(ctx context.Context, id string) error
	DeleteTimeBlocksForTask(ctx context.Context, taskID string) error
}

// RepeatRepository stores repeat rules attached to tasks.
type RepeatRepository interface {
	UpsertRepeat(ctx context.Context, rule RepeatRule) error
	ListRepeatsForTask(ctx context.Context, taskID string) ([]RepeatRule, error)
	DeleteRepeat(ctx context.Context, id string) error
	DeleteRepeatsForTask(ctx context.Context, taskID string) error
}

// SnapshotRepository stores the sync engine's record snapshots.
type SnapshotRepository interface {
	ListSnapshots(ctx context.Context) ([]SyncSnapshot, error)
	GetSnapshot(ctx context.Context, recordID string) (SyncSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot SyncSnapshot) error
	DeleteSnapshot(ctx context.Context, recordID string) error
}
