// Package usecase defines the interfaces and implementations for webhook
// registry management and signed event delivery with bounded, durable retries.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/webhook/domain"
)

// WebhookRepository defines the interface for webhook persistence operations.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *domain.Webhook) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	List(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]*domain.Webhook, error)
	ListActive(ctx context.Context, projectID uuid.UUID) ([]*domain.Webhook, error)
	Update(ctx context.Context, webhook *domain.Webhook) error
	UpdateStats(ctx context.Context, webhook *domain.Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeliveryRepository defines the interface for delivery ledger operations.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.Delivery) error
	Update(ctx context.Context, delivery *domain.Delivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	ListByWebhook(ctx context.Context, webhookID uuid.UUID, offset, limit int) ([]*domain.Delivery, error)
	ClaimDueRetries(ctx context.Context, limit int, now time.Time) ([]*domain.Delivery, error)
}

// WebhookUseCase defines the interface for webhook registry business logic.
type WebhookUseCase interface {
	// Create registers a webhook and generates its secret. The returned
	// webhook is the only place the plaintext secret appears until an
	// explicit regeneration.
	Create(ctx context.Context, input *domain.CreateWebhookInput) (*domain.Webhook, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	List(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]*domain.Webhook, error)
	// Update applies the mutable-field allowlist; identity, secret and
	// statistics cannot be changed through this path.
	Update(ctx context.Context, id uuid.UUID, input *domain.UpdateWebhookInput) (*domain.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// RegenerateSecret replaces the signing secret, invalidating prior
	// signatures immediately, and returns the new plaintext secret.
	RegenerateSecret(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	ListDeliveries(ctx context.Context, webhookID uuid.UUID, offset, limit int) ([]*domain.Delivery, error)
}

// DeliveryUseCase defines the interface for the webhook delivery engine.
type DeliveryUseCase interface {
	// Trigger delivers an event to every active, subscribed webhook of the
	// project, sequentially.
	Trigger(ctx context.Context, projectID uuid.UUID, eventType string, payload json.RawMessage) ([]*domain.Delivery, error)
	// Deliver performs one delivery attempt against a single webhook.
	Deliver(
		ctx context.Context,
		webhook *domain.Webhook,
		eventType string,
		payload json.RawMessage,
		attemptNumber int,
	) (*domain.Delivery, error)
	// TestWebhook sends a synthetic test event through the delivery path.
	TestWebhook(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
}
