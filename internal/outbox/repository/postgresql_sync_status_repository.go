package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

// PostgreSQLSyncStatusRepository maintains per-scope pending counters.
type PostgreSQLSyncStatusRepository struct {
	db *sql.DB
}

// NewPostgreSQLSyncStatusRepository creates a new PostgreSQLSyncStatusRepository.
func NewPostgreSQLSyncStatusRepository(db *sql.DB) *PostgreSQLSyncStatusRepository {
	return &PostgreSQLSyncStatusRepository{
		db: db,
	}
}

// Adjust applies a delta to the pending counter for a scope, creating the row
// on first use. The counter is floored at zero so late or repeated decrements
// can never drive it negative.
func (r *PostgreSQLSyncStatusRepository) Adjust(
	ctx context.Context,
	scope domain.TargetScope,
	delta int64,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO sync_statuses (project_id, graph_name, pending_count, updated_at)
			  VALUES ($1, $2, GREATEST($3, 0), NOW())
			  ON CONFLICT (project_id, graph_name)
			  DO UPDATE SET pending_count = GREATEST(sync_statuses.pending_count + $3, 0),
						   updated_at = NOW()`

	if _, err := querier.ExecContext(ctx, query, scope.ProjectID, scope.GraphName, delta); err != nil {
		return apperrors.Wrap(err, "failed to adjust sync status")
	}

	return nil
}

// Get retrieves the sync status for a scope. Scopes that never enqueued an
// event report a zero counter instead of an error.
func (r *PostgreSQLSyncStatusRepository) Get(
	ctx context.Context,
	scope domain.TargetScope,
) (*domain.SyncStatus, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT project_id, graph_name, pending_count, updated_at
			  FROM sync_statuses
			  WHERE project_id = $1 AND graph_name = $2`

	var status domain.SyncStatus
	err := querier.QueryRowContext(ctx, query, scope.ProjectID, scope.GraphName).Scan(
		&status.ProjectID, &status.GraphName, &status.PendingCount, &status.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.SyncStatus{
				ProjectID: scope.ProjectID,
				GraphName: scope.GraphName,
			}, nil
		}
		return nil, apperrors.Wrap(err, "failed to get sync status")
	}

	return &status, nil
}

// List returns all sync statuses for a project, ordered by graph name.
func (r *PostgreSQLSyncStatusRepository) List(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*domain.SyncStatus, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT project_id, graph_name, pending_count, updated_at
			  FROM sync_statuses
			  WHERE project_id = $1
			  ORDER BY graph_name ASC`

	rows, err := querier.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list sync statuses")
	}
	defer rows.Close() //nolint:errcheck

	var statuses []*domain.SyncStatus
	for rows.Next() {
		var status domain.SyncStatus
		if err := rows.Scan(&status.ProjectID, &status.GraphName, &status.PendingCount, &status.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan sync status")
		}
		statuses = append(statuses, &status)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read sync statuses")
	}

	return statuses, nil
}
