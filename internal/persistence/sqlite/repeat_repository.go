package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

// RepeatRepository implements persistence.RepeatRepository using SQLite.
type RepeatRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRepeatRepository creates a new SQLite repeat-rule repository.
func NewRepeatRepository(pool *ConnectionPool) *RepeatRepository {
	return &RepeatRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// UpsertRepeat creates or updates a repeat rule.
func (r *RepeatRepository) UpsertRepeat(ctx context.Context, rule persistence.RepeatRule) error {
	if rule.ID == "" || rule.TaskID == "" {
		return persistence.ErrConstraintViolation
	}
	if rule.EndsOn != nil && rule.EndsOn.Before(rule.StartsOn) {
		return persistence.ErrConstraintViolation
	}

	rule.StartsOn = rule.StartsOn.UTC()
	if rule.EndsOn != nil {
		endsOn := rule.EndsOn.UTC()
		rule.EndsOn = &endsOn
	}

	now := time.Now().UTC()
	rule.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var existingCreatedAt sql.NullString
		err := r.helper.QueryRowTx(tx, "SELECT created_at FROM repeat_rules WHERE id = ?", rule.ID).Scan(&existingCreatedAt)
		if err != nil && err != sql.ErrNoRows {
			return r.mapper.MapError(err)
		}

		if existingCreatedAt.Valid {
			if rule.CreatedAt, err = time.Parse(time.RFC3339, existingCreatedAt.String); err != nil {
				return fmt.Errorf("failed to parse existing created_at: %w", err)
			}
		} else {
			rule.CreatedAt = now
		}

		var endsOn sql.NullString
		if rule.EndsOn != nil {
			endsOn.String = rule.EndsOn.Format(time.RFC3339)
			endsOn.Valid = true
		}

		query := `
			INSERT OR REPLACE INTO repeat_rules
			(id, task_id, frequency, weekdays, starts_on, ends_on, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = r.helper.ExecTx(tx, query,
			rule.ID,
			rule.TaskID,
			rule.Frequency,
			encodeWeekdays(rule.Weekdays),
			rule.StartsOn.Format(time.RFC3339),
			endsOn,
			rule.CreatedAt.Format(time.RFC3339),
			rule.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return nil
	})
}

// ListRepeatsForTask lists repeat rules for a task ordered by creation time.
func (r *RepeatRepository) ListRepeatsForTask(ctx context.Context, taskID string) ([]persistence.RepeatRule, error) {
	if taskID == "" {
		return []persistence.RepeatRule{}, nil
	}

	query := `
		SELECT id, task_id, frequency, weekdays, starts_on, ends_on, created_at, updated_at
		FROM repeat_rules
		WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.helper.Query(ctx, query, taskID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rules []persistence.RepeatRule
	for rows.Next() {
		var rule persistence.RepeatRule
		var weekdayMask int
		var startsOnStr, createdAtStr, updatedAtStr string
		var endsOn sql.NullString

		err := rows.Scan(
			&rule.ID,
			&rule.TaskID,
			&rule.Frequency,
			&weekdayMask,
			&startsOnStr,
			&endsOn,
			&createdAtStr,
			&updatedAtStr,
		)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}

		rule.Weekdays = decodeWeekdays(weekdayMask)
		if rule.StartsOn, err = time.Parse(time.RFC3339, startsOnStr); err != nil {
			return nil, fmt.Errorf("failed to parse starts_on: %w", err)
		}
		if endsOn.Valid {
			parsed, err := time.Parse(time.RFC3339, endsOn.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ends_on: %w", err)
			}
			rule.EndsOn = &parsed
		}
		if rule.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if rule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rules, nil
}

// DeleteRepeat removes a repeat rule by id.
func (r *RepeatRepository) DeleteRepeat(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM repeat_rules WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

// DeleteRepeatsForTask removes all repeat rules belonging to a task.
func (r *RepeatRepository) DeleteRepeatsForTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return persistence.ErrNotFound
	}

	_, err := r.helper.Exec(ctx, "DELETE FROM repeat_rules WHERE task_id = ?", taskID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// encodeWeekdays packs a weekday selection into a bitmask. Sunday is bit 0.
func encodeWeekdays(weekdays []time.Weekday) int {
	mask := 0
	for _, day := range weekdays {
		mask |= 1 << uint(day)
	}
	return mask
}

func decodeWeekdays(mask int) []time.Weekday {
	var weekdays []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}
