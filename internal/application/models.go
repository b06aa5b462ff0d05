package application

import "time"

// TaskInput captures caller provided task fields.
type TaskInput struct {
	Title             string
	Notes             string
	DueDate           *time.Time
	EstimatedDuration time.Duration
	Completed         bool
}

// Task represents a persisted task exposed by the application services.
type Task struct {
	ID                string
	Title             string
	Notes             string
	DueDate           *time.Time
	EstimatedDuration time.Duration
	Completed         bool
	// EventID is the bound external calendar event, empty when not synced.
	EventID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeBlock represents a planned working interval exposed by the planner.
type TimeBlock struct {
	ID        string
	TaskID    string
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OverlapWarning flags a time block that overlaps at least one other block
// in the inspected window.
type OverlapWarning struct {
	BlockID string
	TaskID  string
	Start   time.Time
	End     time.Time
}

// TaskOccurrence represents an expanded occurrence generated from a repeat
// rule.
type TaskOccurrence struct {
	TaskID string
	RuleID string
	Start  time.Time
	End    time.Time
}

// CreateTaskParams wraps the data required to create a task.
type CreateTaskParams struct {
	Input TaskInput
}

// UpdateTaskParams wraps the data required to update an existing task.
type UpdateTaskParams struct {
	TaskID string
	Input  TaskInput
}

// ScheduleBlockParams wraps the data required to reserve a time block for a
// task.
type ScheduleBlockParams struct {
	TaskID   string
	Start    time.Time
	Duration time.Duration
}

// RescheduleBlockParams wraps the data required to move an existing block.
type RescheduleBlockParams struct {
	BlockID  string
	Start    time.Time
	Duration time.Duration
}

// ListBlocksParams wraps the data required to list time blocks.
type ListBlocksParams struct {
	TaskID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// RepeatInput captures caller provided repeat rule fields.
type RepeatInput struct {
	TaskID    string
	Frequency int
	Weekdays  []time.Weekday
	StartsOn  time.Time
	EndsOn    *time.Time
}

// ExpandRepeatsParams wraps the data required to expand repeat rules into
// occurrences.
type ExpandRepeatsParams struct {
	TaskID     string
	RangeStart time.Time
	RangeEnd   time.Time
}
