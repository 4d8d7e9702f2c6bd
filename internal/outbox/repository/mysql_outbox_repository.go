package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL.
// Requires MySQL 8.0+ for SKIP LOCKED support.
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Create inserts a new outbox event. Returns false without error when an event
// with the same idempotency key already exists (the insert is a no-op).
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT IGNORE INTO outbox_events (id, idempotency_key, event_type, operation, project_id,
				graph_name, entity_type, entity_id, payload, sync_query, sync_params, status,
				attempts, last_error, next_retry_at, created_at, processed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NULL)`

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
func (r *MySQLOutboxEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = ?`

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
func (r *MySQLOutboxEventRepository) GetByIdempotencyKey(
	ctx context.Context,
	key string,
) (*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE idempotency_key = ?`

	event, err := scanOutboxEvent(querier.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by idempotency key")
	}

	return event, nil
}

// ClaimBatch selects up to limit claimable events with FOR UPDATE SKIP LOCKED and
// flips them to processing. MySQL has no UPDATE...RETURNING, so the lock, update
// and re-read are separate statements; the caller MUST run this inside a
// transaction (database.TxManager) for the claim to be atomic.
func (r *MySQLOutboxEventRepository) ClaimBatch(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.OutboxEvent, error) {
	querier := database.GetTx(ctx, r.db)

	selectQuery := `SELECT id FROM outbox_events
					WHERE status IN (?, ?)
					  AND (next_retry_at IS NULL OR next_retry_at <= ?)
					ORDER BY created_at ASC
					LIMIT ?
					FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, selectQuery,
		domain.OutboxEventStatusPending,
		domain.OutboxEventStatusFailed,
		now,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select claimable outbox events")
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck
			return nil, apperrors.Wrap(err, "failed to scan claimable event id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, apperrors.Wrap(err, "failed to read claimable event ids")
	}
	rows.Close() //nolint:errcheck

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := buildIDArgs(ids)

	updateArgs := append([]any{domain.OutboxEventStatusProcessing}, args...)
	updateQuery := `UPDATE outbox_events SET status = ? WHERE id IN (` + placeholders + `)`
	if _, err := querier.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, apperrors.Wrap(err, "failed to mark outbox events processing")
	}

	readQuery := `SELECT ` + outboxColumns + ` FROM outbox_events
				  WHERE id IN (` + placeholders + `) ORDER BY created_at ASC`
	claimedRows, err := querier.QueryContext(ctx, readQuery, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to read claimed outbox events")
	}
	defer claimedRows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for claimedRows.Next() {
		event, err := scanOutboxEvent(claimedRows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed outbox event")
		}
		events = append(events, event)
	}
	if err := claimedRows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read claimed outbox events")
	}

	return events, nil
}

// Update persists the mutable fields of an outbox event.
func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, attempts = ?, last_error = ?, next_retry_at = ?, processed_at = ?
			  WHERE id = ?`

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
func (r *MySQLOutboxEventRepository) MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET status = ?, processed_at = ?, last_error = NULL
			  WHERE id = ? AND status = ?`

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
func (r *MySQLOutboxEventRepository) CountByStatus(
	ctx context.Context,
	scope *domain.TargetScope,
) (*domain.StatusCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`
	args := []any{}
	if scope != nil {
		query = `SELECT status, COUNT(*) FROM outbox_events
				 WHERE project_id = ? AND graph_name = ? GROUP BY status`
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
func (r *MySQLOutboxEventRepository) DeleteCompletedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE status = ? AND created_at < ?`

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

// buildIDArgs renders an id list as a placeholder string plus args slice.
func buildIDArgs(ids []uuid.UUID) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
