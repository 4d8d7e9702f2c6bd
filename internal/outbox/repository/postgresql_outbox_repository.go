// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

const outboxColumns = `id, idempotency_key, event_type, operation, project_id, graph_name,
	entity_type, entity_id, payload, sync_query, sync_params, status, attempts,
	last_error, next_retry_at, created_at, processed_at`

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL.
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event. Returns false without error when an event
// with the same idempotency key already exists (the insert is a no-op).
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_events (id, idempotency_key, event_type, operation, project_id,
				graph_name, entity_type, entity_id, payload, sync_query, sync_params, status,
				attempts, last_error, next_retry_at, created_at, processed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NULL)
			  ON CONFLICT (idempotency_key) DO NOTHING`

	result, err := querier.ExecContext(ctx, query,
		event.ID, event.IdempotencyKey, event.EventType, event.Operation,
		event.Scope.ProjectID, event.Scope.GraphName, event.EntityType, event.EntityID,
		event.Payload, event.SyncQuery, nullableJSON(event.SyncParams), event.Status,
		event.Attempts, event.LastError, event.NextRetryAt,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to create outbox event")
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read insert result")
	}

	return inserted == 1, nil
}

// GetByID retrieves an outbox event by ID.
func (r *PostgreSQLOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanOutboxEvent(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event")
	}

	return event, nil
}

// GetByIdempotencyKey retrieves an outbox event by its idempotency key.
func (r *PostgreSQLOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE idempotency_key = $1`

	event, err := scanOutboxEvent(querier.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by idempotency key")
	}

	return event, nil
}

// ClaimBatch atomically selects up to limit claimable events (pending, or failed
// with a due retry) and flips them to processing. The row lock and the status
// update happen in a single statement, so concurrent callers can never claim
// the same event twice and locked rows are skipped rather than blocking.
func (r *PostgreSQLOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1
			  WHERE id IN (
				  SELECT id FROM outbox_events
				  WHERE status IN ($2, $3)
					AND (next_retry_at IS NULL OR next_retry_at <= $4)
				  ORDER BY created_at ASC
				  LIMIT $5
				  FOR UPDATE SKIP LOCKED
			  )
			  RETURNING ` + outboxColumns

	rows, err := querier.QueryContext(ctx, query,
		domain.OutboxEventStatusProcessing,
		domain.OutboxEventStatusPending,
		domain.OutboxEventStatusFailed,
		now,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed outbox event")
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read claimed outbox events")
	}

	return events, nil
}

// Update persists the mutable fields of an outbox event.
func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, attempts = $2, last_error = $3, next_retry_at = $4, processed_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(ctx, query,
		event.Status, event.Attempts, event.LastError, event.NextRetryAt, event.ProcessedAt, event.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// MarkCompleted transitions a processing event to completed and stamps processed_at.
// Returns ErrEventNotClaimable when the event is not in processing status.
func (r *PostgreSQLOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, processed_at = $2, last_error = NULL
			  WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query,
		domain.OutboxEventStatusCompleted, now, id, domain.OutboxEventStatusProcessing,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event completed")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read completion result")
	}
	if affected == 0 {
		return domain.ErrEventNotClaimable
	}

	return nil
}

// CountByStatus returns per-status event counts, optionally filtered to a scope.
func (r *PostgreSQLOutboxEventRepository) CountByStatus(
	ctx context.Context,
	scope *domain.TargetScope,
) (*domain.StatusCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`
	args := []any{}
	if scope != nil {
		query = `SELECT status, COUNT(*) FROM outbox_events
				 WHERE project_id = $1 AND graph_name = $2 GROUP BY status`
		args = append(args, scope.ProjectID, scope.GraphName)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}
	defer rows.Close() //nolint:errcheck

	counts := &domain.StatusCounts{}
	for rows.Next() {
		var status domain.OutboxEventStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan status count")
		}

		switch status {
		case domain.OutboxEventStatusPending:
			counts.Pending = count
		case domain.OutboxEventStatusProcessing:
			counts.Processing = count
		case domain.OutboxEventStatusCompleted:
			counts.Completed = count
		case domain.OutboxEventStatusFailed:
			counts.Failed = count
		case domain.OutboxEventStatusDeadLetter:
			counts.DeadLetter = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read status counts")
	}

	return counts, nil
}

// DeleteCompletedBefore deletes completed events older than the cutoff.
// Pending, failed and dead-lettered events are never deleted.
func (r *PostgreSQLOutboxEventRepository) DeleteCompletedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE status = $1 AND created_at < $2`

	result, err := querier.ExecContext(ctx, query, domain.OutboxEventStatusCompleted, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete completed outbox events")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read delete result")
	}

	return deleted, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOutboxEvent scans one outbox event row in outboxColumns order.
func scanOutboxEvent(row rowScanner) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	var syncParams []byte

	err := row.Scan(
		&event.ID, &event.IdempotencyKey, &event.EventType, &event.Operation,
		&event.Scope.ProjectID, &event.Scope.GraphName, &event.EntityType, &event.EntityID,
		&event.Payload, &event.SyncQuery, &syncParams, &event.Status,
		&event.Attempts, &event.LastError, &event.NextRetryAt, &event.CreatedAt, &event.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(syncParams) > 0 {
		event.SyncParams = syncParams
	}

	return &event, nil
}

// nullableJSON converts an empty raw message to NULL for storage.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
