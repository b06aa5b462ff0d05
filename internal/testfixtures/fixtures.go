package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/momentum-planner/internal/application"
	"github.com/example/momentum-planner/internal/persistence"
	"github.com/example/momentum-planner/internal/scheduler"
)

var (
	taskCounter     uint64
	blockCounter    uint64
	repeatCounter   uint64
	snapshotCounter uint64
)

var referenceTime = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Task fixtures -----------------------------

// TaskFixture represents a deterministic task record that can be materialised
// for application or persistence tests.
type TaskFixture struct {
	ID                string
	Title             string
	Notes             string
	DueDate           *time.Time
	EstimatedDuration time.Duration
	Completed         bool
	EventID           *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TaskOption configures the generated task fixture.
type TaskOption func(*TaskFixture)

// NewTaskFixture returns a deterministic task fixture with optional overrides.
// Tasks are due one day after the reference time by default.
func NewTaskFixture(opts ...TaskOption) TaskFixture {
	idx := atomic.AddUint64(&taskCounter, 1)
	id := fmt.Sprintf("task-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	due := referenceTime.AddDate(0, 0, 1)
	fixture := TaskFixture{
		ID:                id,
		Title:             fmt.Sprintf("Task %03d", idx),
		DueDate:           &due,
		EstimatedDuration: time.Hour,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTaskID overrides the generated task ID.
func WithTaskID(id string) TaskOption {
	return func(f *TaskFixture) {
		f.ID = id
	}
}

// WithTaskTitle overrides the generated title.
func WithTaskTitle(title string) TaskOption {
	return func(f *TaskFixture) {
		f.Title = title
	}
}

// WithTaskNotes sets the notes field.
func WithTaskNotes(notes string) TaskOption {
	return func(f *TaskFixture) {
		f.Notes = notes
	}
}

// WithTaskDueDate sets the due date.
func WithTaskDueDate(t time.Time) TaskOption {
	return func(f *TaskFixture) {
		due := t
		f.DueDate = &due
	}
}

// WithoutTaskDueDate clears the due date.
func WithoutTaskDueDate() TaskOption {
	return func(f *TaskFixture) {
		f.DueDate = nil
	}
}

// WithTaskEstimate sets the estimated duration.
func WithTaskEstimate(d time.Duration) TaskOption {
	return func(f *TaskFixture) {
		f.EstimatedDuration = d
	}
}

// WithTaskCompleted marks the fixture completed.
func WithTaskCompleted(completed bool) TaskOption {
	return func(f *TaskFixture) {
		f.Completed = completed
	}
}

// WithTaskEventID binds the fixture to a calendar event.
func WithTaskEventID(eventID string) TaskOption {
	return func(f *TaskFixture) {
		id := eventID
		f.EventID = &id
	}
}

// WithTaskTimestamps sets both created and updated timestamps.
func WithTaskTimestamps(created, updated time.Time) TaskOption {
	return func(f *TaskFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Task value.
func (f TaskFixture) Application() application.Task {
	var eventID string
	if f.EventID != nil {
		eventID = *f.EventID
	}
	return application.Task{
		ID:                f.ID,
		Title:             f.Title,
		Notes:             f.Notes,
		DueDate:           copyTimePtr(f.DueDate),
		EstimatedDuration: f.EstimatedDuration,
		Completed:         f.Completed,
		EventID:           eventID,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Task value.
func (f TaskFixture) Persistence() persistence.Task {
	var notes *string
	if f.Notes != "" {
		value := f.Notes
		notes = &value
	}
	return persistence.Task{
		ID:                f.ID,
		Title:             f.Title,
		Notes:             notes,
		DueDate:           copyTimePtr(f.DueDate),
		EstimatedDuration: f.EstimatedDuration,
		Completed:         f.Completed,
		EventID:           copyStringPtr(f.EventID),
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

// Input returns the fixture as an application.TaskInput.
func (f TaskFixture) Input() application.TaskInput {
	return application.TaskInput{
		Title:             f.Title,
		Notes:             f.Notes,
		DueDate:           copyTimePtr(f.DueDate),
		EstimatedDuration: f.EstimatedDuration,
		Completed:         f.Completed,
	}
}

// --------------------------- Time block fixtures --------------------------

// TimeBlockFixture represents a deterministic time block record.
type TimeBlockFixture struct {
	ID        string
	TaskID    string
	Start     time.Time
	Duration  time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeBlockOption configures the generated time block fixture.
type TimeBlockOption func(*TimeBlockFixture)

// NewTimeBlockFixture returns a deterministic time block fixture with optional
// overrides. Consecutive fixtures occupy consecutive hours and do not overlap.
func NewTimeBlockFixture(opts ...TimeBlockOption) TimeBlockFixture {
	idx := atomic.AddUint64(&blockCounter, 1)
	id := fmt.Sprintf("block-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := TimeBlockFixture{
		ID:        id,
		TaskID:    fmt.Sprintf("task-%03d", idx),
		Start:     start,
		Duration:  time.Hour,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBlockID overrides the generated block ID.
func WithBlockID(id string) TimeBlockOption {
	return func(f *TimeBlockFixture) {
		f.ID = id
	}
}

// WithBlockTaskID sets the owning task ID.
func WithBlockTaskID(taskID string) TimeBlockOption {
	return func(f *TimeBlockFixture) {
		f.TaskID = taskID
	}
}

// WithBlockStart sets the block start.
func WithBlockStart(start time.Time) TimeBlockOption {
	return func(f *TimeBlockFixture) {
		f.Start = start
	}
}

// WithBlockDuration sets the block duration.
func WithBlockDuration(d time.Duration) TimeBlockOption {
	return func(f *TimeBlockFixture) {
		f.Duration = d
	}
}

// WithBlockTimestamps sets both created and updated timestamps.
func WithBlockTimestamps(created, updated time.Time) TimeBlockOption {
	return func(f *TimeBlockFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.TimeBlock value.
func (f TimeBlockFixture) Persistence() persistence.TimeBlock {
	return persistence.TimeBlock{
		ID:        f.ID,
		TaskID:    f.TaskID,
		Start:     f.Start,
		Duration:  f.Duration,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Scheduler returns the fixture as a scheduler.TimeBlock value for conflict
// detection tests.
func (f TimeBlockFixture) Scheduler() scheduler.TimeBlock {
	return scheduler.TimeBlock{
		ID:       f.ID,
		TaskID:   f.TaskID,
		Start:    f.Start,
		Duration: f.Duration,
	}
}

// ---------------------------- Repeat fixtures -----------------------------

// RepeatFixture represents a deterministic repeat rule.
type RepeatFixture struct {
	ID        string
	TaskID    string
	Frequency int
	Weekdays  []time.Weekday
	StartsOn  time.Time
	EndsOn    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RepeatOption configures the generated repeat fixture.
type RepeatOption func(*RepeatFixture)

// NewRepeatFixture returns a deterministic repeat fixture with optional
// overrides. The default rule repeats weekly on Mondays.
func NewRepeatFixture(opts ...RepeatOption) RepeatFixture {
	idx := atomic.AddUint64(&repeatCounter, 1)
	id := fmt.Sprintf("repeat-%03d", idx)
	startsOn := referenceTime.Truncate(24 * time.Hour)
	fixture := RepeatFixture{
		ID:        id,
		TaskID:    fmt.Sprintf("task-%03d", idx),
		Frequency: 2,
		Weekdays:  []time.Weekday{time.Monday},
		StartsOn:  startsOn,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRepeatID overrides the rule ID.
func WithRepeatID(id string) RepeatOption {
	return func(f *RepeatFixture) {
		f.ID = id
	}
}

// WithRepeatTaskID sets the owning task ID.
func WithRepeatTaskID(id string) RepeatOption {
	return func(f *RepeatFixture) {
		f.TaskID = id
	}
}

// WithRepeatFrequency sets the rule frequency.
func WithRepeatFrequency(freq int) RepeatOption {
	return func(f *RepeatFixture) {
		f.Frequency = freq
	}
}

// WithRepeatWeekdays sets the rule weekdays.
func WithRepeatWeekdays(days ...time.Weekday) RepeatOption {
	return func(f *RepeatFixture) {
		f.Weekdays = append([]time.Weekday(nil), days...)
	}
}

// WithRepeatStartsOn sets the start date.
func WithRepeatStartsOn(t time.Time) RepeatOption {
	return func(f *RepeatFixture) {
		f.StartsOn = t
	}
}

// WithRepeatEndsOn sets the optional end date.
func WithRepeatEndsOn(t time.Time) RepeatOption {
	return func(f *RepeatFixture) {
		end := t
		f.EndsOn = &end
	}
}

// WithoutRepeatEndsOn clears any end date on the fixture.
func WithoutRepeatEndsOn() RepeatOption {
	return func(f *RepeatFixture) {
		f.EndsOn = nil
	}
}

// WithRepeatTimestamps sets both created and updated timestamps.
func WithRepeatTimestamps(created, updated time.Time) RepeatOption {
	return func(f *RepeatFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.RepeatRule value.
func (f RepeatFixture) Persistence() persistence.RepeatRule {
	return persistence.RepeatRule{
		ID:        f.ID,
		TaskID:    f.TaskID,
		Frequency: f.Frequency,
		Weekdays:  append([]time.Weekday(nil), f.Weekdays...),
		StartsOn:  f.StartsOn,
		EndsOn:    copyTimePtr(f.EndsOn),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RepeatInput.
func (f RepeatFixture) Input() application.RepeatInput {
	return application.RepeatInput{
		TaskID:    f.TaskID,
		Frequency: f.Frequency,
		Weekdays:  append([]time.Weekday(nil), f.Weekdays...),
		StartsOn:  f.StartsOn,
		EndsOn:    copyTimePtr(f.EndsOn),
	}
}

// --------------------------- Snapshot fixtures ----------------------------

// SnapshotFixture represents a deterministic sync snapshot record.
type SnapshotFixture struct {
	RecordID    string
	ChangeToken string
	ModifiedAt  time.Time
	Deleted     bool
	Fields      map[string]string
	UpdatedAt   time.Time
}

// SnapshotOption configures the generated snapshot fixture.
type SnapshotOption func(*SnapshotFixture)

// NewSnapshotFixture returns a deterministic snapshot fixture with optional
// overrides.
func NewSnapshotFixture(opts ...SnapshotOption) SnapshotFixture {
	idx := atomic.AddUint64(&snapshotCounter, 1)
	fixture := SnapshotFixture{
		RecordID:    fmt.Sprintf("record-%03d", idx),
		ChangeToken: fmt.Sprintf("token-%03d", idx),
		ModifiedAt:  referenceTime.Add(time.Duration(idx) * time.Second),
		Fields:      map[string]string{"title": fmt.Sprintf("Record %03d", idx)},
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSnapshotRecordID overrides the record ID.
func WithSnapshotRecordID(id string) SnapshotOption {
	return func(f *SnapshotFixture) {
		f.RecordID = id
	}
}

// WithSnapshotToken sets the change token.
func WithSnapshotToken(token string) SnapshotOption {
	return func(f *SnapshotFixture) {
		f.ChangeToken = token
	}
}

// WithSnapshotModifiedAt sets the modification timestamp.
func WithSnapshotModifiedAt(t time.Time) SnapshotOption {
	return func(f *SnapshotFixture) {
		f.ModifiedAt = t
	}
}

// WithSnapshotDeleted marks the snapshot as a tombstone.
func WithSnapshotDeleted(deleted bool) SnapshotOption {
	return func(f *SnapshotFixture) {
		f.Deleted = deleted
	}
}

// WithSnapshotFields sets the captured field values.
func WithSnapshotFields(fields map[string]string) SnapshotOption {
	return func(f *SnapshotFixture) {
		copied := make(map[string]string, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		f.Fields = copied
	}
}

// Persistence returns the fixture as a persistence.SyncSnapshot value.
func (f SnapshotFixture) Persistence() persistence.SyncSnapshot {
	fields := make(map[string]string, len(f.Fields))
	for k, v := range f.Fields {
		fields[k] = v
	}
	return persistence.SyncSnapshot{
		RecordID:    f.RecordID,
		ChangeToken: f.ChangeToken,
		ModifiedAt:  f.ModifiedAt,
		Deleted:     f.Deleted,
		Fields:      fields,
		UpdatedAt:   f.UpdatedAt,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
