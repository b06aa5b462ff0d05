package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/momentum-planner/internal/persistence"
)

// SnapshotRepository implements persistence.SnapshotRepository using SQLite.
// The field map is stored as a JSON column.
type SnapshotRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(pool *ConnectionPool) *SnapshotRepository {
	return &SnapshotRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const snapshotColumns = "record_id, change_token, modified_at, deleted, fields, updated_at"

// ListSnapshots lists every stored snapshot ordered by record id.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context) ([]persistence.SyncSnapshot, error) {
	rows, err := r.helper.Query(ctx, "SELECT "+snapshotColumns+" FROM sync_snapshots ORDER BY record_id ASC")
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var snapshots []persistence.SyncSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return snapshots, nil
}

// GetSnapshot retrieves a snapshot by record id.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, recordID string) (persistence.SyncSnapshot, error) {
	if recordID == "" {
		return persistence.SyncSnapshot{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+snapshotColumns+" FROM sync_snapshots WHERE record_id = ?", recordID)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.SyncSnapshot{}, persistence.ErrNotFound
		}
		return persistence.SyncSnapshot{}, r.mapper.MapError(err)
	}
	return snapshot, nil
}

// SaveSnapshot inserts or replaces a snapshot.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot persistence.SyncSnapshot) error {
	if snapshot.RecordID == "" {
		return persistence.ErrConstraintViolation
	}

	fields := snapshot.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot fields: %w", err)
	}

	snapshot.UpdatedAt = time.Now().UTC()

	query := `
		INSERT OR REPLACE INTO sync_snapshots (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.helper.Exec(ctx, query,
		snapshot.RecordID,
		snapshot.ChangeToken,
		snapshot.ModifiedAt.UTC().Format(time.RFC3339),
		snapshot.Deleted,
		string(encoded),
		snapshot.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// DeleteSnapshot removes a snapshot by record id.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, recordID string) error {
	if recordID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM sync_snapshots WHERE record_id = ?", recordID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRowsAffected(result)
}

func scanSnapshot(row rowScanner) (persistence.SyncSnapshot, error) {
	var snapshot persistence.SyncSnapshot
	var modifiedAtStr, fieldsStr, updatedAtStr string

	err := row.Scan(
		&snapshot.RecordID,
		&snapshot.ChangeToken,
		&modifiedAtStr,
		&snapshot.Deleted,
		&fieldsStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.SyncSnapshot{}, err
	}

	if snapshot.ModifiedAt, err = time.Parse(time.RFC3339, modifiedAtStr); err != nil {
		return persistence.SyncSnapshot{}, fmt.Errorf("failed to parse modified_at: %w", err)
	}
	if snapshot.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.SyncSnapshot{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsStr), &snapshot.Fields); err != nil {
		return persistence.SyncSnapshot{}, fmt.Errorf("failed to decode snapshot fields: %w", err)
	}
	return snapshot, nil
}
