package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

// TimeBlockRepository implements persistence.TimeBlockRepository using SQLite.
type TimeBlockRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTimeBlockRepository creates a new SQLite time-block repository.
func NewTimeBlockRepository(pool *ConnectionPool) *TimeBlockRepository {
	return &TimeBlockRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const timeBlockColumns = "id, task_id, start_time, duration_seconds, created_at, updated_at"

// CreateTimeBlock inserts a new time block.
func (r *TimeBlockRepository) CreateTimeBlock(ctx context.Context, block persistence.TimeBlock) error {
	if block.ID == "" || block.TaskID == "" {
		return persistence.ErrConstraintViolation
	}
	if block.Duration <= 0 {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now

	query := `
		INSERT INTO time_blocks (` + timeBlockColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		block.ID,
		block.TaskID,
		block.Start.UTC().Format(time.RFC3339),
		int64(block.Duration/time.Second),
		block.CreatedAt.Format(time.RFC3339),
		block.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetTimeBlock retrieves a time block by id.
func (r *TimeBlockRepository) GetTimeBlock(ctx context.Context, id string) (persistence.TimeBlock, error) {
	if id == "" {
		return persistence.TimeBlock{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+timeBlockColumns+" FROM time_blocks WHERE id = ?", id)
	block, err := scanTimeBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TimeBlock{}, persistence.ErrNotFound
		}
		return persistence.TimeBlock{}, r.mapper.MapError(err)
	}
	return block, nil
}

// ListTimeBlocks lists time blocks matching the filter, ordered by start
// time. The range filter keeps any block whose span intersects the window.
func (r *TimeBlockRepository) ListTimeBlocks(ctx context.Context, filter persistence.TimeBlockFilter) ([]persistence.TimeBlock, error) {
	query := "SELECT " + timeBlockColumns + " FROM time_blocks"

	var conditions []string
	var args []any
	if filter.TaskID != "" {
		conditions = append(conditions, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.StartsAfter != nil {
		// End of block is start + duration; compare in the query using the
		// stored seconds.
		conditions = append(conditions, "datetime(start_time, '+' || duration_seconds || ' seconds') > datetime(?)")
		args = append(args, filter.StartsAfter.UTC().Format(time.RFC3339))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "datetime(start_time) < datetime(?)")
		args = append(args, filter.EndsBefore.UTC().Format(time.RFC3339))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var blocks []persistence.TimeBlock
	for rows.Next() {
		block, err := scanTimeBlock(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return blocks, nil
}

// DeleteTimeBlock removes a time block by id.
func (r *TimeBlockRepository) DeleteTimeBlock(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM time_blocks WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// DeleteTimeBlocksForTask removes all time blocks belonging to a task.
// Deleting for a task with no blocks is not an error.
func (r *TimeBlockRepository) DeleteTimeBlocksForTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return persistence.ErrNotFound
	}

	_, err := r.helper.Exec(ctx, "DELETE FROM time_blocks WHERE task_id = ?", taskID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func scanTimeBlock(row rowScanner) (persistence.TimeBlock, error) {
	var block persistence.TimeBlock
	var startStr, createdAtStr, updatedAtStr string
	var durationSeconds int64

	err := row.Scan(
		&block.ID,
		&block.TaskID,
		&startStr,
		&durationSeconds,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.TimeBlock{}, err
	}

	if block.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
		return persistence.TimeBlock{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	block.Duration = time.Duration(durationSeconds) * time.Second
	if block.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.TimeBlock{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if block.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.TimeBlock{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return block, nil
}
