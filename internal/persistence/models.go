package persistence

import "time"

// Task represents a to-do item stored in persistence. EventID carries the
// external calendar event binding; nil means the task is not synced.
type Task struct {
	ID                string
	Title             string
	Notes             *string
	DueDate           *time.Time
	EstimatedDuration time.Duration
	Completed         bool
	EventID           *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TimeBlock represents a planned working interval reserved for a task.
type TimeBlock struct {
	ID        string
	TaskID    string
	Start     time.Time
	Duration  time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepeatRule represents a repeat configuration attached to a task.
type RepeatRule struct {
	ID        string
	TaskID    string
	Frequency int
	Weekdays  []time.Weekday
	StartsOn  time.Time
	EndsOn    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncSnapshot is the locally cached view of a record as last seen by the
// sync engine: its change token, modification instant, tombstone flag, and
// a flat field map.
type SyncSnapshot struct {
	RecordID    string
	ChangeToken string
	ModifiedAt  time.Time
	Deleted     bool
	Fields      map[string]string
	UpdatedAt   time.Time
}
