package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/webhook/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
	"github.com/ederbit/fanout/internal/webhook/service"
)

const (
	defaultMaxRetries        = 3
	defaultRetryDelaySeconds = 60
)

// webhookUseCase implements the WebhookUseCase interface.
type webhookUseCase struct {
	webhookRepo     WebhookRepository
	deliveryRepo    DeliveryRepository
	secretGenerator service.SecretGenerator
}

// NewWebhookUseCase creates a new WebhookUseCase.
func NewWebhookUseCase(
	webhookRepo WebhookRepository,
	deliveryRepo DeliveryRepository,
	secretGenerator service.SecretGenerator,
) WebhookUseCase {
	return &webhookUseCase{
		webhookRepo:     webhookRepo,
		deliveryRepo:    deliveryRepo,
		secretGenerator: secretGenerator,
	}
}

// Create registers a webhook with a freshly generated secret. Malformed URLs
// are rejected here so they never enter the delivery pipeline.
func (u *webhookUseCase) Create(
	ctx context.Context,
	input *domain.CreateWebhookInput,
) (*domain.Webhook, error) {
	if input.ProjectID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "project id is required")
	}
	if input.Name == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "name is required")
	}
	if err := validateWebhookURL(input.URL); err != nil {
		return nil, err
	}

	secret, err := u.secretGenerator.Generate()
	if err != nil {
		return nil, err
	}

	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := input.RetryDelaySeconds
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelaySeconds
	}

	now := time.Now()
	webhook := &domain.Webhook{
		ID:                uuid.Must(uuid.NewV7()),
		ProjectID:         input.ProjectID,
		Name:              input.Name,
		Description:       input.Description,
		URL:               input.URL,
		Secret:            secret,
		Events:            input.Events,
		CustomHeaders:     input.CustomHeaders,
		MaxRetries:        maxRetries,
		RetryDelaySeconds: retryDelay,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := u.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, err
	}

	return webhook, nil
}

// Get retrieves a webhook by ID.
func (u *webhookUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	return u.webhookRepo.GetByID(ctx, id)
}

// List retrieves a project's webhooks, newest first.
func (u *webhookUseCase) List(
	ctx context.Context,
	projectID uuid.UUID,
	offset, limit int,
) ([]*domain.Webhook, error) {
	return u.webhookRepo.List(ctx, projectID, offset, limit)
}

// Update applies the mutable-field allowlist to a webhook.
func (u *webhookUseCase) Update(
	ctx context.Context,
	id uuid.UUID,
	input *domain.UpdateWebhookInput,
) (*domain.Webhook, error) {
	webhook, err := u.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		webhook.Name = *input.Name
	}
	if input.Description != nil {
		webhook.Description = *input.Description
	}
	if input.URL != nil {
		if err := validateWebhookURL(*input.URL); err != nil {
			return nil, err
		}
		webhook.URL = *input.URL
	}
	if input.Events != nil {
		webhook.Events = input.Events
	}
	if input.CustomHeaders != nil {
		webhook.CustomHeaders = input.CustomHeaders
	}
	if input.MaxRetries != nil {
		webhook.MaxRetries = *input.MaxRetries
	}
	if input.RetryDelaySeconds != nil {
		webhook.RetryDelaySeconds = *input.RetryDelaySeconds
	}
	if input.IsActive != nil {
		webhook.IsActive = *input.IsActive
	}

	if err := u.webhookRepo.Update(ctx, webhook); err != nil {
		return nil, err
	}

	return webhook, nil
}

// Delete removes a webhook and its delivery history.
func (u *webhookUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	return u.webhookRepo.Delete(ctx, id)
}

// RegenerateSecret replaces the webhook's signing secret. Deliveries signed
// with the old secret fail verification from this point on.
func (u *webhookUseCase) RegenerateSecret(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	webhook, err := u.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	secret, err := u.secretGenerator.Generate()
	if err != nil {
		return nil, err
	}
	webhook.Secret = secret

	if err := u.webhookRepo.Update(ctx, webhook); err != nil {
		return nil, err
	}

	return webhook, nil
}

// ListDeliveries retrieves the delivery history of a webhook, newest first.
func (u *webhookUseCase) ListDeliveries(
	ctx context.Context,
	webhookID uuid.UUID,
	offset, limit int,
) ([]*domain.Delivery, error) {
	if _, err := u.webhookRepo.GetByID(ctx, webhookID); err != nil {
		return nil, err
	}
	return u.deliveryRepo.ListByWebhook(ctx, webhookID, offset, limit)
}

// validateWebhookURL rejects URLs that are not absolute http(s) endpoints.
func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid webhook url %q", raw))
	}
	return nil
}
