package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

// TaskRepository implements persistence.TaskRepository using SQLite.
type TaskRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(pool *ConnectionPool) *TaskRepository {
	return &TaskRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const taskColumns = "id, title, notes, due_at, estimated_seconds, completed, event_id, created_at, updated_at"

// CreateTask inserts a new task.
func (r *TaskRepository) CreateTask(ctx context.Context, task persistence.Task) error {
	if task.ID == "" || task.Title == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		task.ID,
		task.Title,
		nullString(task.Notes),
		nullTime(task.DueDate),
		int64(task.EstimatedDuration/time.Second),
		task.Completed,
		nullString(task.EventID),
		task.CreatedAt.Format(time.RFC3339),
		task.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateTask updates an existing task. The event binding is owned by
// SetEventID and left untouched here.
func (r *TaskRepository) UpdateTask(ctx context.Context, task persistence.Task) error {
	if task.ID == "" {
		return persistence.ErrNotFound
	}
	if task.Title == "" {
		return persistence.ErrConstraintViolation
	}

	task.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tasks
		SET title = ?, notes = ?, due_at = ?, estimated_seconds = ?, completed = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		task.Title,
		nullString(task.Notes),
		nullTime(task.DueDate),
		int64(task.EstimatedDuration/time.Second),
		task.Completed,
		task.UpdatedAt.Format(time.RFC3339),
		task.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// GetTask retrieves a task by id.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (persistence.Task, error) {
	if id == "" {
		return persistence.Task{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Task{}, persistence.ErrNotFound
		}
		return persistence.Task{}, r.mapper.MapError(err)
	}
	return task, nil
}

// ListTasks lists all tasks ordered by creation time.
func (r *TaskRepository) ListTasks(ctx context.Context) ([]persistence.Task, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var tasks []persistence.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return tasks, nil
}

// DeleteTask removes a task. Time blocks and repeat rules cascade.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// SetEventID records or clears the external calendar event binding.
func (r *TaskRepository) SetEventID(ctx context.Context, taskID string, eventID *string) error {
	if taskID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx,
		"UPDATE tasks SET event_id = ?, updated_at = ? WHERE id = ?",
		nullString(eventID),
		time.Now().UTC().Format(time.RFC3339),
		taskID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (persistence.Task, error) {
	var task persistence.Task
	var notes, dueAt, eventID sql.NullString
	var estimatedSeconds int64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&notes,
		&dueAt,
		&estimatedSeconds,
		&task.Completed,
		&eventID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Task{}, err
	}

	if notes.Valid {
		task.Notes = &notes.String
	}
	if eventID.Valid {
		task.EventID = &eventID.String
	}
	if dueAt.Valid {
		due, err := time.Parse(time.RFC3339, dueAt.String)
		if err != nil {
			return persistence.Task{}, fmt.Errorf("failed to parse due_at: %w", err)
		}
		task.DueDate = &due
	}
	task.EstimatedDuration = time.Duration(estimatedSeconds) * time.Second

	if task.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Task{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if task.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Task{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return task, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}

func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
