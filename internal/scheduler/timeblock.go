package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidDuration indicates a time block was constructed with a
// non-positive duration.
var ErrInvalidDuration = errors.New("scheduler: duration must be positive")

// TimeBlock is a scheduled interval bound to a task. Blocks are immutable
// once created; rescheduling destroys the block and creates a new one.
type TimeBlock struct {
	ID       string
	TaskID   string
	Start    time.Time
	Duration time.Duration
}

// NewTimeBlock validates the interval before returning a block. Malformed
// intervals are rejected here so the conflict detector never sees them.
func NewTimeBlock(id, taskID string, start time.Time, duration time.Duration) (TimeBlock, error) {
	if duration <= 0 {
		return TimeBlock{}, ErrInvalidDuration
	}
	return TimeBlock{
		ID:       id,
		TaskID:   taskID,
		Start:    start,
		Duration: duration,
	}, nil
}

// EndTime returns the exclusive end of the block's interval.
func (b TimeBlock) EndTime() time.Time {
	return b.Start.Add(b.Duration)
}

// Overlaps reports whether two blocks occupy overlapping half-open
// intervals. A block whose end touches the other's start does not overlap.
func (b TimeBlock) Overlaps(other TimeBlock) bool {
	return b.Start.Before(other.EndTime()) && other.Start.Before(b.EndTime())
}
