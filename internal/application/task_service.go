package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/momentum-planner/internal/calendarsync"
	"github.com/example/momentum-planner/internal/persistence"
)

// TaskRepository captures the persistence interactions needed by the task
// service.
type TaskRepository interface {
	CreateTask(ctx context.Context, task persistence.Task) error
	UpdateTask(ctx context.Context, task persistence.Task) error
	GetTask(ctx context.Context, id string) (persistence.Task, error)
	ListTasks(ctx context.Context) ([]persistence.Task, error)
	DeleteTask(ctx context.Context, id string) error
	SetEventID(ctx context.Context, taskID string, eventID *string) error
}

// CalendarSyncer mirrors the calendar orchestrator surface the service
// drives. Sync is best-effort: the service never fails a task mutation
// because the calendar was unavailable.
type CalendarSyncer interface {
	SyncTask(ctx context.Context, task calendarsync.Task) error
	RemoveTask(ctx context.Context, task calendarsync.Task) error
}

// TaskService orchestrates validation, persistence, and best-effort calendar
// sync for task operations.
type TaskService struct {
	tasks       TaskRepository
	syncer      CalendarSyncer
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewTaskService wires dependencies for task operations. syncer may be nil
// when calendar sync is disabled.
func NewTaskService(tasks TaskRepository, syncer CalendarSyncer, logger *slog.Logger, idGenerator func() string, now func() time.Time) *TaskService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:       tasks,
		syncer:      syncer,
		logger:      defaultLogger(logger),
		idGenerator: idGenerator,
		now:         now,
	}
}

// CreateTask validates the request, persists the task, and pushes it to the
// calendar when sync is available.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (Task, error) {
	if s == nil || s.tasks == nil {
		return Task{}, fmt.Errorf("task repository not configured")
	}

	vErr := &ValidationError{}
	validateTaskCore(params.Input, vErr)
	if vErr.HasErrors() {
		return Task{}, vErr
	}

	record := persistence.Task{
		ID:                s.idGenerator(),
		Title:             strings.TrimSpace(params.Input.Title),
		EstimatedDuration: params.Input.EstimatedDuration,
		Completed:         params.Input.Completed,
	}
	if notes := params.Input.Notes; notes != "" {
		record.Notes = &notes
	}
	if params.Input.DueDate != nil {
		due := params.Input.DueDate.UTC()
		record.DueDate = &due
	}

	if err := s.tasks.CreateTask(ctx, record); err != nil {
		return Task{}, mapTaskRepoError(err)
	}

	s.pushToCalendar(ctx, record)
	return s.reload(ctx, record.ID)
}

// UpdateTask applies validation before updating persistence state. The
// calendar event follows the task: removed when the task completes or loses
// its due date, updated otherwise.
func (s *TaskService) UpdateTask(ctx context.Context, params UpdateTaskParams) (Task, error) {
	if s == nil || s.tasks == nil {
		return Task{}, fmt.Errorf("task repository not configured")
	}

	existing, err := s.tasks.GetTask(ctx, params.TaskID)
	if err != nil {
		return Task{}, mapTaskRepoError(err)
	}

	vErr := &ValidationError{}
	validateTaskCore(params.Input, vErr)
	if vErr.HasErrors() {
		return Task{}, vErr
	}

	updated := existing
	updated.Title = strings.TrimSpace(params.Input.Title)
	updated.Notes = nil
	if notes := params.Input.Notes; notes != "" {
		updated.Notes = &notes
	}
	updated.DueDate = nil
	if params.Input.DueDate != nil {
		due := params.Input.DueDate.UTC()
		updated.DueDate = &due
	}
	updated.EstimatedDuration = params.Input.EstimatedDuration
	updated.Completed = params.Input.Completed

	if err := s.tasks.UpdateTask(ctx, updated); err != nil {
		return Task{}, mapTaskRepoError(err)
	}

	if updated.Completed || updated.DueDate == nil {
		s.dropFromCalendar(ctx, updated)
	} else {
		s.pushToCalendar(ctx, updated)
	}
	return s.reload(ctx, updated.ID)
}

// GetTask retrieves a task by id.
func (s *TaskService) GetTask(ctx context.Context, id string) (Task, error) {
	if s == nil || s.tasks == nil {
		return Task{}, fmt.Errorf("task repository not configured")
	}
	record, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return Task{}, mapTaskRepoError(err)
	}
	return toApplicationTask(record), nil
}

// ListTasks enumerates all tasks.
func (s *TaskService) ListTasks(ctx context.Context) ([]Task, error) {
	if s == nil || s.tasks == nil {
		return nil, fmt.Errorf("task repository not configured")
	}
	records, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, mapTaskRepoError(err)
	}
	tasks := make([]Task, 0, len(records))
	for _, record := range records {
		tasks = append(tasks, toApplicationTask(record))
	}
	return tasks, nil
}

// DeleteTask removes the task and its calendar event. The calendar removal
// is attempted first so the event binding is still readable.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if s == nil || s.tasks == nil {
		return fmt.Errorf("task repository not configured")
	}

	existing, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return mapTaskRepoError(err)
	}

	s.dropFromCalendar(ctx, existing)

	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return mapTaskRepoError(err)
	}
	return nil
}

// pushToCalendar mirrors the task into the external calendar. Failures are
// logged and swallowed; the local mutation already succeeded.
func (s *TaskService) pushToCalendar(ctx context.Context, record persistence.Task) {
	if s.syncer == nil || record.DueDate == nil {
		return
	}
	if err := s.syncer.SyncTask(ctx, toSyncTask(record)); err != nil {
		logger := serviceLogger(ctx, s.logger, "task", "sync_task", "task_id", record.ID)
		logger.Warn("calendar sync skipped", "error_kind", ErrorKind(err), "error", err)
	}
}

func (s *TaskService) dropFromCalendar(ctx context.Context, record persistence.Task) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.RemoveTask(ctx, toSyncTask(record)); err != nil {
		logger := serviceLogger(ctx, s.logger, "task", "remove_task", "task_id", record.ID)
		logger.Warn("calendar removal skipped", "error_kind", ErrorKind(err), "error", err)
	}
}

// reload re-reads the task so the returned value reflects any event binding
// written during sync.
func (s *TaskService) reload(ctx context.Context, id string) (Task, error) {
	record, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return Task{}, mapTaskRepoError(err)
	}
	return toApplicationTask(record), nil
}

func validateTaskCore(input TaskInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if input.EstimatedDuration < 0 {
		vErr.add("estimated_duration", "estimate cannot be negative")
	}
}

func toApplicationTask(record persistence.Task) Task {
	task := Task{
		ID:                record.ID,
		Title:             record.Title,
		DueDate:           record.DueDate,
		EstimatedDuration: record.EstimatedDuration,
		Completed:         record.Completed,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
	if record.Notes != nil {
		task.Notes = *record.Notes
	}
	if record.EventID != nil {
		task.EventID = *record.EventID
	}
	return task
}

func toSyncTask(record persistence.Task) calendarsync.Task {
	task := calendarsync.Task{
		ID:                record.ID,
		Title:             record.Title,
		DueDate:           record.DueDate,
		EstimatedDuration: record.EstimatedDuration,
	}
	if record.Notes != nil {
		task.Notes = *record.Notes
	}
	if record.EventID != nil {
		task.EventRef = calendarsync.Synced(*record.EventID)
	}
	return task
}

func mapTaskRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("task", "task violates a storage constraint")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("task", "related records are missing")
		return vErr
	}
	return err
}
