package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/persistence"
)

// TaskBinder persists event-reference transitions into the task store. It is
// the calendarsync.Binder used in production wiring.
type TaskBinder struct {
	tasks TaskRepository
}

// NewTaskBinder wraps a task repository as a binder.
func NewTaskBinder(tasks TaskRepository) *TaskBinder {
	return &TaskBinder{tasks: tasks}
}

// EventRef implements calendarsync.Binder. A missing task reads as
// NotSynced; the orchestrator treats it as having nothing bound.
func (b *TaskBinder) EventRef(ctx context.Context, taskID string) (calendarsync.EventRef, error) {
	record, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return calendarsync.NotSynced(), nil
		}
		return calendarsync.EventRef{}, fmt.Errorf("application: failed to load task %s: %w", taskID, err)
	}
	if record.EventID == nil {
		return calendarsync.NotSynced(), nil
	}
	return calendarsync.Synced(*record.EventID), nil
}

// SaveEventRef implements calendarsync.Binder.
func (b *TaskBinder) SaveEventRef(ctx context.Context, taskID string, ref calendarsync.EventRef) error {
	var eventID *string
	if id, ok := ref.EventID(); ok {
		eventID = &id
	}
	if err := b.tasks.SetEventID(ctx, taskID, eventID); err != nil {
		return fmt.Errorf("application: failed to persist event binding for task %s: %w", taskID, err)
	}
	return nil
}
