package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
	"github.com/example/momentum-planner/internal/recurrence"
	"github.com/example/momentum-planner/internal/scheduler"
)

// TimeBlockRepository captures the persistence interactions needed by the
// planner service.
type TimeBlockRepository interface {
	CreateTimeBlock(ctx context.Context, block persistence.TimeBlock) error
	GetTimeBlock(ctx context.Context, id string) (persistence.TimeBlock, error)
	ListTimeBlocks(ctx context.Context, filter persistence.TimeBlockFilter) ([]persistence.TimeBlock, error)
	DeleteTimeBlock(ctx context.Context, id string) error
	DeleteTimeBlocksForTask(ctx context.Context, taskID string) error
}

// RepeatRepository captures the repeat-rule interactions needed by the
// planner service.
type RepeatRepository interface {
	UpsertRepeat(ctx context.Context, rule persistence.RepeatRule) error
	ListRepeatsForTask(ctx context.Context, taskID string) ([]persistence.RepeatRule, error)
	DeleteRepeatsForTask(ctx context.Context, taskID string) error
}

// PlannerService reserves time blocks for tasks, surfaces overlap warnings,
// and expands repeat rules.
type PlannerService struct {
	tasks       TaskRepository
	blocks      TimeBlockRepository
	repeats     RepeatRepository
	engine      *recurrence.Engine
	warnings    *warningCache
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewPlannerService wires dependencies for planning operations.
func NewPlannerService(tasks TaskRepository, blocks TimeBlockRepository, repeats RepeatRepository, engine *recurrence.Engine, logger *slog.Logger, idGenerator func() string, now func() time.Time) *PlannerService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &PlannerService{
		tasks:       tasks,
		blocks:      blocks,
		repeats:     repeats,
		engine:      engine,
		warnings:    newWarningCache(0, 0, now),
		logger:      defaultLogger(logger),
		idGenerator: idGenerator,
		now:         now,
	}
}

// ScheduleBlock reserves a working interval for a task. Overlaps with
// existing blocks are reported as warnings, never as errors: the user may
// deliberately double-book.
func (s *PlannerService) ScheduleBlock(ctx context.Context, params ScheduleBlockParams) (TimeBlock, []OverlapWarning, error) {
	if s == nil || s.blocks == nil {
		return TimeBlock{}, nil, fmt.Errorf("time block repository not configured")
	}

	vErr := &ValidationError{}
	if params.TaskID == "" {
		vErr.add("task_id", "task is required")
	}
	if params.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if params.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if vErr.HasErrors() {
		return TimeBlock{}, nil, vErr
	}

	if s.tasks != nil {
		if _, err := s.tasks.GetTask(ctx, params.TaskID); err != nil {
			return TimeBlock{}, nil, mapTaskRepoError(err)
		}
	}

	record := persistence.TimeBlock{
		ID:       s.idGenerator(),
		TaskID:   params.TaskID,
		Start:    params.Start.UTC(),
		Duration: params.Duration,
	}
	if err := s.blocks.CreateTimeBlock(ctx, record); err != nil {
		return TimeBlock{}, nil, mapTaskRepoError(err)
	}
	s.warnings.Invalidate()

	warnings, err := s.overlapsAround(ctx, record)
	if err != nil {
		return TimeBlock{}, nil, err
	}
	return toApplicationBlock(record), warnings, nil
}

// RescheduleBlock moves a block by destroying it and creating a fresh one at
// the new slot. The block identity changes on every move.
func (s *PlannerService) RescheduleBlock(ctx context.Context, params RescheduleBlockParams) (TimeBlock, []OverlapWarning, error) {
	if s == nil || s.blocks == nil {
		return TimeBlock{}, nil, fmt.Errorf("time block repository not configured")
	}

	existing, err := s.blocks.GetTimeBlock(ctx, params.BlockID)
	if err != nil {
		return TimeBlock{}, nil, mapTaskRepoError(err)
	}

	vErr := &ValidationError{}
	if params.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if params.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if vErr.HasErrors() {
		return TimeBlock{}, nil, vErr
	}

	if err := s.blocks.DeleteTimeBlock(ctx, existing.ID); err != nil {
		return TimeBlock{}, nil, mapTaskRepoError(err)
	}

	replacement := persistence.TimeBlock{
		ID:       s.idGenerator(),
		TaskID:   existing.TaskID,
		Start:    params.Start.UTC(),
		Duration: params.Duration,
	}
	if err := s.blocks.CreateTimeBlock(ctx, replacement); err != nil {
		return TimeBlock{}, nil, mapTaskRepoError(err)
	}
	s.warnings.Invalidate()

	warnings, err := s.overlapsAround(ctx, replacement)
	if err != nil {
		return TimeBlock{}, nil, err
	}
	return toApplicationBlock(replacement), warnings, nil
}

// UnscheduleBlock releases a reserved interval.
func (s *PlannerService) UnscheduleBlock(ctx context.Context, blockID string) error {
	if s == nil || s.blocks == nil {
		return fmt.Errorf("time block repository not configured")
	}
	if err := s.blocks.DeleteTimeBlock(ctx, blockID); err != nil {
		return mapTaskRepoError(err)
	}
	s.warnings.Invalidate()
	return nil
}

// ListBlocks enumerates time blocks in a window together with overlap
// warnings for the blocks involved in at least one collision.
func (s *PlannerService) ListBlocks(ctx context.Context, params ListBlocksParams) ([]TimeBlock, []OverlapWarning, error) {
	if s == nil || s.blocks == nil {
		return nil, nil, fmt.Errorf("time block repository not configured")
	}

	filter := persistence.TimeBlockFilter{
		TaskID:      params.TaskID,
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	}
	records, err := s.blocks.ListTimeBlocks(ctx, filter)
	if err != nil {
		return nil, nil, mapTaskRepoError(err)
	}

	ordered := make([]TimeBlock, 0, len(records))
	for _, record := range records {
		ordered = append(ordered, toApplicationBlock(record))
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	key := buildWarningCacheKey(params)
	if cached, ok := s.warnings.Get(key); ok {
		return ordered, cached, nil
	}

	warnings := detectOverlaps(records)
	s.warnings.Store(key, warnings)
	return ordered, warnings, nil
}

// SetRepeat creates or updates a repeat rule for a task.
func (s *PlannerService) SetRepeat(ctx context.Context, input RepeatInput) error {
	if s == nil || s.repeats == nil {
		return fmt.Errorf("repeat repository not configured")
	}

	vErr := &ValidationError{}
	if input.TaskID == "" {
		vErr.add("task_id", "task is required")
	}
	if input.StartsOn.IsZero() {
		vErr.add("starts_on", "start date is required")
	}
	if input.EndsOn != nil && input.EndsOn.Before(input.StartsOn) {
		vErr.add("ends_on", "end date cannot precede start date")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if s.tasks != nil {
		if _, err := s.tasks.GetTask(ctx, input.TaskID); err != nil {
			return mapTaskRepoError(err)
		}
	}

	rule := persistence.RepeatRule{
		ID:        s.idGenerator(),
		TaskID:    input.TaskID,
		Frequency: input.Frequency,
		Weekdays:  input.Weekdays,
		StartsOn:  input.StartsOn,
		EndsOn:    input.EndsOn,
	}
	if err := s.repeats.UpsertRepeat(ctx, rule); err != nil {
		return mapTaskRepoError(err)
	}
	return nil
}

// ClearRepeats removes every repeat rule attached to a task.
func (s *PlannerService) ClearRepeats(ctx context.Context, taskID string) error {
	if s == nil || s.repeats == nil {
		return fmt.Errorf("repeat repository not configured")
	}
	if err := s.repeats.DeleteRepeatsForTask(ctx, taskID); err != nil {
		return mapTaskRepoError(err)
	}
	return nil
}

// ExpandRepeats generates the occurrences of a task's repeat rules inside
// the requested window, ordered chronologically.
func (s *PlannerService) ExpandRepeats(ctx context.Context, params ExpandRepeatsParams) ([]TaskOccurrence, error) {
	if s == nil || s.repeats == nil {
		return nil, fmt.Errorf("repeat repository not configured")
	}
	if params.RangeEnd.IsZero() || !params.RangeEnd.After(params.RangeStart) {
		vErr := &ValidationError{}
		vErr.add("range", "a bounded window is required")
		return nil, vErr
	}

	task, err := s.tasks.GetTask(ctx, params.TaskID)
	if err != nil {
		return nil, mapTaskRepoError(err)
	}
	estimate := task.EstimatedDuration
	if estimate <= 0 {
		estimate = time.Hour
	}
	baseDue := params.RangeStart
	if task.DueDate != nil {
		baseDue = *task.DueDate
	}

	rules, err := s.repeats.ListRepeatsForTask(ctx, params.TaskID)
	if err != nil {
		return nil, mapTaskRepoError(err)
	}

	var occurrences []TaskOccurrence
	for _, rule := range rules {
		generated, err := s.engine.GenerateOccurrences(
			recurrence.Rule{
				ID:        rule.ID,
				TaskID:    rule.TaskID,
				Frequency: recurrence.Frequency(rule.Frequency),
				Weekdays:  rule.Weekdays,
				StartsOn:  rule.StartsOn,
				EndsOn:    rule.EndsOn,
			},
			baseDue,
			estimate,
			recurrence.GenerateOptions{RangeStart: &params.RangeStart, RangeEnd: &params.RangeEnd},
		)
		if err != nil {
			return nil, err
		}
		for _, occ := range generated {
			occurrences = append(occurrences, TaskOccurrence{
				TaskID: occ.TaskID,
				RuleID: occ.RuleID,
				Start:  occ.Start,
				End:    occ.End,
			})
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences, nil
}

// overlapsAround reports collisions in the window the block occupies.
func (s *PlannerService) overlapsAround(ctx context.Context, block persistence.TimeBlock) ([]OverlapWarning, error) {
	start := block.Start
	end := block.Start.Add(block.Duration)
	records, err := s.blocks.ListTimeBlocks(ctx, persistence.TimeBlockFilter{
		StartsAfter: &start,
		EndsBefore:  &end,
	})
	if err != nil {
		return nil, mapTaskRepoError(err)
	}
	return detectOverlaps(records), nil
}

func detectOverlaps(records []persistence.TimeBlock) []OverlapWarning {
	if len(records) < 2 {
		return nil
	}

	blocks := make([]scheduler.TimeBlock, 0, len(records))
	for _, record := range records {
		blocks = append(blocks, scheduler.TimeBlock{
			ID:       record.ID,
			TaskID:   record.TaskID,
			Start:    record.Start,
			Duration: record.Duration,
		})
	}

	involved := scheduler.FindConflicts(blocks)
	if len(involved) == 0 {
		return nil
	}
	warnings := make([]OverlapWarning, 0, len(involved))
	for _, block := range involved {
		warnings = append(warnings, OverlapWarning{
			BlockID: block.ID,
			TaskID:  block.TaskID,
			Start:   block.Start,
			End:     block.EndTime(),
		})
	}
	return warnings
}

func toApplicationBlock(record persistence.TimeBlock) TimeBlock {
	return TimeBlock{
		ID:        record.ID,
		TaskID:    record.TaskID,
		Start:     record.Start,
		End:       record.Start.Add(record.Duration),
		Duration:  record.Duration,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
