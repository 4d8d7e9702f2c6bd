package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/webhook/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

const deliveryColumns = `id, webhook_id, event_type, url, request_headers, request_body, status,
	attempt_number, response_status_code, response_headers, response_body, response_time_ms,
	next_retry_at, error_message, created_at, completed_at`

// PostgreSQLDeliveryRepository handles webhook delivery persistence for PostgreSQL.
type PostgreSQLDeliveryRepository struct {
	db *sql.DB
}

// NewPostgreSQLDeliveryRepository creates a new PostgreSQLDeliveryRepository.
func NewPostgreSQLDeliveryRepository(db *sql.DB) *PostgreSQLDeliveryRepository {
	return &PostgreSQLDeliveryRepository{
		db: db,
	}
}

// Create inserts a new delivery record.
func (r *PostgreSQLDeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	querier := database.GetTx(ctx, r.db)

	requestHeaders, err := marshalHeaderMap(delivery.RequestHeaders)
	if err != nil {
		return err
	}

	query := `INSERT INTO webhook_deliveries (id, webhook_id, event_type, url, request_headers,
				request_body, status, attempt_number, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err = querier.ExecContext(ctx, query,
		delivery.ID, delivery.WebhookID, delivery.EventType, delivery.URL,
		requestHeaders, delivery.RequestBody, delivery.Status, delivery.AttemptNumber,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create webhook delivery")
	}

	return nil
}

// Update persists the resolution of a delivery attempt: status, response
// snapshot, timing, retry schedule.
func (r *PostgreSQLDeliveryRepository) Update(ctx context.Context, delivery *domain.Delivery) error {
	querier := database.GetTx(ctx, r.db)

	var responseHeaders any
	if delivery.ResponseHeaders != nil {
		encoded, err := json.Marshal(delivery.ResponseHeaders)
		if err != nil {
			return apperrors.Wrap(err, "failed to encode response headers")
		}
		responseHeaders = encoded
	}

	query := `UPDATE webhook_deliveries
			  SET status = $1, response_status_code = $2, response_headers = $3,
				  response_body = $4, response_time_ms = $5, next_retry_at = $6,
				  error_message = $7, completed_at = $8
			  WHERE id = $9`

	result, err := querier.ExecContext(ctx, query,
		delivery.Status, delivery.ResponseStatusCode, responseHeaders, delivery.ResponseBody,
		delivery.ResponseTimeMs, delivery.NextRetryAt, delivery.ErrorMessage,
		delivery.CompletedAt, delivery.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update webhook delivery")
	}

	return checkAffected(result, domain.ErrDeliveryNotFound)
}

// GetByID retrieves a delivery by ID.
func (r *PostgreSQLDeliveryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`

	delivery, err := scanDelivery(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get webhook delivery")
	}

	return delivery, nil
}

// ListByWebhook retrieves the delivery history of one webhook, newest first.
func (r *PostgreSQLDeliveryRepository) ListByWebhook(
	ctx context.Context,
	webhookID uuid.UUID,
	offset, limit int,
) ([]*domain.Delivery, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries
			  WHERE webhook_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, webhookID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list webhook deliveries")
	}
	defer rows.Close() //nolint:errcheck

	var deliveries []*domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan webhook delivery")
		}
		deliveries = append(deliveries, delivery)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read webhook deliveries")
	}

	return deliveries, nil
}

// ClaimDueRetries atomically claims retrying deliveries whose retry time has
// passed, finalizing them as failed. The claim uses the same row-lock idiom as
// the outbox, so concurrent retry processors never pick up the same row. The
// caller spawns the follow-up attempt for each claimed delivery.
func (r *PostgreSQLDeliveryRepository) ClaimDueRetries(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.Delivery, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE webhook_deliveries
			  SET status = $1, completed_at = $2
			  WHERE id IN (
				  SELECT id FROM webhook_deliveries
				  WHERE status = $3 AND next_retry_at <= $2
				  ORDER BY next_retry_at ASC
				  LIMIT $4
				  FOR UPDATE SKIP LOCKED
			  )
			  RETURNING ` + deliveryColumns

	rows, err := querier.QueryContext(ctx, query,
		domain.DeliveryStatusFailed, now, domain.DeliveryStatusRetrying, limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim due webhook retries")
	}
	defer rows.Close() //nolint:errcheck

	var deliveries []*domain.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan claimed webhook delivery")
		}
		deliveries = append(deliveries, delivery)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to read claimed webhook deliveries")
	}

	return deliveries, nil
}

// marshalHeaderMap encodes a header map, defaulting to an empty object.
func marshalHeaderMap(headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	encoded, err := json.Marshal(headers)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode request headers")
	}
	return encoded, nil
}

// scanDelivery scans one delivery row in deliveryColumns order.
func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var delivery domain.Delivery
	var requestHeaders, responseHeaders []byte

	err := row.Scan(
		&delivery.ID, &delivery.WebhookID, &delivery.EventType, &delivery.URL,
		&requestHeaders, &delivery.RequestBody, &delivery.Status, &delivery.AttemptNumber,
		&delivery.ResponseStatusCode, &responseHeaders, &delivery.ResponseBody,
		&delivery.ResponseTimeMs, &delivery.NextRetryAt, &delivery.ErrorMessage,
		&delivery.CreatedAt, &delivery.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(requestHeaders, &delivery.RequestHeaders); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode request headers")
	}
	if len(responseHeaders) > 0 {
		if err := json.Unmarshal(responseHeaders, &delivery.ResponseHeaders); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode response headers")
		}
	}

	return &delivery, nil
}
