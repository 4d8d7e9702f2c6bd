package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

const deadLetterColumns = `id, outbox_event_id, resolved, resolved_by, resolution_notes, created_at, resolved_at`

// PostgreSQLDeadLetterRepository handles dead letter persistence for PostgreSQL.
type PostgreSQLDeadLetterRepository struct {
	db *sql.DB
}

// NewPostgreSQLDeadLetterRepository creates a new PostgreSQLDeadLetterRepository.
func NewPostgreSQLDeadLetterRepository(db *sql.DB) *PostgreSQLDeadLetterRepository {
	return &PostgreSQLDeadLetterRepository{
		db: db,
	}
}

// Create records a dead letter for an exhausted outbox event. Each event has
// at most one dead letter row; if the event was retried and exhausted its
// budget again, the existing row is reopened instead of inserting a second.
func (r *PostgreSQLDeadLetterRepository) Create(ctx context.Context, deadLetter *domain.DeadLetterEvent) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO dead_letter_events (id, outbox_event_id, resolved, resolved_by,
				resolution_notes, created_at, resolved_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NULL)
			  ON CONFLICT (outbox_event_id)
			  DO UPDATE SET resolved = FALSE, resolved_by = NULL, resolution_notes = NULL,
						   resolved_at = NULL, created_at = NOW()`

	_, err := querier.ExecContext(ctx, query,
		deadLetter.ID, deadLetter.OutboxEventID, deadLetter.Resolved,
		deadLetter.ResolvedBy, deadLetter.ResolutionNotes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create dead letter")
	}

	return nil
}

// GetByID retrieves a dead letter by ID.
func (r *PostgreSQLDeadLetterRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + deadLetterColumns + ` FROM dead_letter_events WHERE id = $1`

	deadLetter, err := scanDeadLetter(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeadLetterNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get dead letter")
	}

	return deadLetter, nil
}

// List retrieves dead letters ordered newest first. When scope is non-nil only
// dead letters whose event belongs to that scope are returned; unresolvedOnly
// filters out already-handled entries.
func (r *PostgreSQLDeadLetterRepository) List(
	ctx context.Context,
	scope *domain.TargetScope,
	unresolvedOnly bool,
	offset, limit int,
) ([]*domain.DeadLetterEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT d.id, d.outbox_event_id, d.resolved, d.resolved_by, d.resolution_notes,
					 d.created_at, d.resolved_at
			  FROM dead_letter_events d
			  JOIN outbox_events e ON e.id = d.outbox_event_id
			  WHERE 1 = 1`
	args := []any{}

	if scope != nil {
		args = append(args, scope.ProjectID, scope.GraphName)
		query += ` AND e.project_id = $1 AND e.graph_name = $2`
	}
	if unresolvedOnly {
		query += ` AND d.resolved = FALSE`
	}

	args = append(args, limit, offset)
	query += ` ORDER BY d.created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list dead letters")
	}
	defer rows.Close() //nolint:errcheck

	var deadLetters []*domain.DeadLetterEvent
	for rows.Next() {
		deadLetter, err := scanDeadLetter(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan dead letter")
		}
		deadLetters = append(deadLetters, deadLetter)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read dead letters")
	}

	return deadLetters, nil
}

// Resolve marks a dead letter resolved with attribution and optional notes.
// Resolving an already-resolved dead letter is a no-op that preserves the
// original resolution.
func (r *PostgreSQLDeadLetterRepository) Resolve(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
	notes *string,
	now time.Time,
) (*domain.DeadLetterEvent, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE dead_letter_events
			  SET resolved = TRUE, resolved_by = $1, resolution_notes = $2, resolved_at = $3
			  WHERE id = $4 AND resolved = FALSE`

	result, err := querier.ExecContext(ctx, query, resolvedBy, notes, now, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to resolve dead letter")
	}

	if _, err := result.RowsAffected(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read resolve result")
	}

	return r.GetByID(ctx, id)
}

// scanDeadLetter scans one dead letter row in deadLetterColumns order.
func scanDeadLetter(row rowScanner) (*domain.DeadLetterEvent, error) {
	var deadLetter domain.DeadLetterEvent

	err := row.Scan(
		&deadLetter.ID, &deadLetter.OutboxEventID, &deadLetter.Resolved,
		&deadLetter.ResolvedBy, &deadLetter.ResolutionNotes,
		&deadLetter.CreatedAt, &deadLetter.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	return &deadLetter, nil
}
