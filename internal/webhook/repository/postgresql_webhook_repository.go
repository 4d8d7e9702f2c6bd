// Package repository provides data persistence implementations for webhook entities.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/webhook/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

const webhookColumns = `id, project_id, name, description, url, secret, events, custom_headers,
	max_retries, retry_delay_seconds, is_active, consecutive_failures, total_deliveries,
	total_failures, last_triggered_at, last_success_at, last_failure_at, created_at, updated_at`

// PostgreSQLWebhookRepository handles webhook persistence for PostgreSQL.
type PostgreSQLWebhookRepository struct {
	db *sql.DB
}

// NewPostgreSQLWebhookRepository creates a new PostgreSQLWebhookRepository.
func NewPostgreSQLWebhookRepository(db *sql.DB) *PostgreSQLWebhookRepository {
	return &PostgreSQLWebhookRepository{
		db: db,
	}
}

// Create inserts a new webhook.
func (r *PostgreSQLWebhookRepository) Create(ctx context.Context, webhook *domain.Webhook) error {
	querier := database.GetTx(ctx, r.db)

	events, headers, err := marshalWebhookJSON(webhook)
	if err != nil {
		return err
	}

	query := `INSERT INTO webhooks (id, project_id, name, description, url, secret, events,
				custom_headers, max_retries, retry_delay_seconds, is_active, consecutive_failures,
				total_deliveries, total_failures, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, 0, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query,
		webhook.ID, webhook.ProjectID, webhook.Name, webhook.Description, webhook.URL,
		webhook.Secret, events, headers, webhook.MaxRetries, webhook.RetryDelaySeconds,
		webhook.IsActive,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create webhook")
	}

	return nil
}

// GetByID retrieves a webhook by ID.
func (r *PostgreSQLWebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	webhook, err := scanWebhook(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWebhookNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get webhook")
	}

	return webhook, nil
}

// List retrieves webhooks for a project, newest first.
func (r *PostgreSQLWebhookRepository) List(
	ctx context.Context,
	projectID uuid.UUID,
	offset, limit int,
) ([]*domain.Webhook, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + webhookColumns + ` FROM webhooks
			  WHERE project_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list webhooks")
	}
	defer rows.Close() //nolint:errcheck

	return collectWebhooks(rows)
}

// ListActive retrieves all active webhooks for a project. Event subscription
// filtering happens in the use case, where matching is exact string match.
func (r *PostgreSQLWebhookRepository) ListActive(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*domain.Webhook, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + webhookColumns + ` FROM webhooks
			  WHERE project_id = $1 AND is_active = TRUE
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active webhooks")
	}
	defer rows.Close() //nolint:errcheck

	return collectWebhooks(rows)
}

// Update persists the configurable fields and the secret of a webhook.
func (r *PostgreSQLWebhookRepository) Update(ctx context.Context, webhook *domain.Webhook) error {
	querier := database.GetTx(ctx, r.db)

	events, headers, err := marshalWebhookJSON(webhook)
	if err != nil {
		return err
	}

	query := `UPDATE webhooks
			  SET name = $1, description = $2, url = $3, secret = $4, events = $5,
				  custom_headers = $6, max_retries = $7, retry_delay_seconds = $8,
				  is_active = $9, updated_at = NOW()
			  WHERE id = $10`

	result, err := querier.ExecContext(ctx, query,
		webhook.Name, webhook.Description, webhook.URL, webhook.Secret, events, headers,
		webhook.MaxRetries, webhook.RetryDelaySeconds, webhook.IsActive, webhook.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update webhook")
	}

	return checkAffected(result, domain.ErrWebhookNotFound)
}

// UpdateStats persists the rolling delivery statistics of a webhook.
func (r *PostgreSQLWebhookRepository) UpdateStats(ctx context.Context, webhook *domain.Webhook) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE webhooks
			  SET consecutive_failures = $1, total_deliveries = $2, total_failures = $3,
				  last_triggered_at = $4, last_success_at = $5, last_failure_at = $6,
				  updated_at = NOW()
			  WHERE id = $7`

	result, err := querier.ExecContext(ctx, query,
		webhook.ConsecutiveFailures, webhook.TotalDeliveries, webhook.TotalFailures,
		webhook.LastTriggeredAt, webhook.LastSuccessAt, webhook.LastFailureAt, webhook.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update webhook stats")
	}

	return checkAffected(result, domain.ErrWebhookNotFound)
}

// Delete removes a webhook; its delivery ledger is removed with it.
func (r *PostgreSQLWebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete webhook")
	}

	return checkAffected(result, domain.ErrWebhookNotFound)
}

// marshalWebhookJSON encodes the JSON columns of a webhook.
func marshalWebhookJSON(webhook *domain.Webhook) ([]byte, []byte, error) {
	eventList := webhook.Events
	if eventList == nil {
		eventList = []string{}
	}
	events, err := json.Marshal(eventList)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to encode webhook events")
	}

	headerMap := webhook.CustomHeaders
	if headerMap == nil {
		headerMap = map[string]string{}
	}
	headers, err := json.Marshal(headerMap)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to encode webhook headers")
	}

	return events, headers, nil
}

// checkAffected maps a zero-row result to the given not-found error.
func checkAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanWebhook scans one webhook row in webhookColumns order.
func scanWebhook(row rowScanner) (*domain.Webhook, error) {
	var webhook domain.Webhook
	var events, headers []byte

	err := row.Scan(
		&webhook.ID, &webhook.ProjectID, &webhook.Name, &webhook.Description, &webhook.URL,
		&webhook.Secret, &events, &headers, &webhook.MaxRetries, &webhook.RetryDelaySeconds,
		&webhook.IsActive, &webhook.ConsecutiveFailures, &webhook.TotalDeliveries,
		&webhook.TotalFailures, &webhook.LastTriggeredAt, &webhook.LastSuccessAt,
		&webhook.LastFailureAt, &webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(events, &webhook.Events); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode webhook events")
	}
	if err := json.Unmarshal(headers, &webhook.CustomHeaders); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode webhook headers")
	}

	return &webhook, nil
}

// collectWebhooks drains rows into a webhook slice.
func collectWebhooks(rows *sql.Rows) ([]*domain.Webhook, error) {
	var webhooks []*domain.Webhook
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan webhook")
		}
		webhooks = append(webhooks, webhook)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read webhooks")
	}

	return webhooks, nil
}
