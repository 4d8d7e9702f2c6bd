package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/metrics"
	"github.com/ederbit/fanout/internal/webhook/domain"
)

// webhookUseCaseWithMetrics decorates WebhookUseCase with metrics instrumentation.
type webhookUseCaseWithMetrics struct {
	next    WebhookUseCase
	metrics metrics.BusinessMetrics
}

// NewWebhookUseCaseWithMetrics wraps a WebhookUseCase with metrics recording.
func NewWebhookUseCaseWithMetrics(useCase WebhookUseCase, m metrics.BusinessMetrics) WebhookUseCase {
	return &webhookUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (u *webhookUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "webhook", operation, status)
	u.metrics.RecordDuration(ctx, "webhook", operation, time.Since(start), status)
}

func (u *webhookUseCaseWithMetrics) Create(
	ctx context.Context,
	input *domain.CreateWebhookInput,
) (*domain.Webhook, error) {
	start := time.Now()
	webhook, err := u.next.Create(ctx, input)
	u.record(ctx, "create", start, err)
	return webhook, err
}

func (u *webhookUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	start := time.Now()
	webhook, err := u.next.Get(ctx, id)
	u.record(ctx, "get", start, err)
	return webhook, err
}

func (u *webhookUseCaseWithMetrics) List(
	ctx context.Context,
	projectID uuid.UUID,
	offset, limit int,
) ([]*domain.Webhook, error) {
	start := time.Now()
	webhooks, err := u.next.List(ctx, projectID, offset, limit)
	u.record(ctx, "list", start, err)
	return webhooks, err
}

func (u *webhookUseCaseWithMetrics) Update(
	ctx context.Context,
	id uuid.UUID,
	input *domain.UpdateWebhookInput,
) (*domain.Webhook, error) {
	start := time.Now()
	webhook, err := u.next.Update(ctx, id, input)
	u.record(ctx, "update", start, err)
	return webhook, err
}

func (u *webhookUseCaseWithMetrics) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := u.next.Delete(ctx, id)
	u.record(ctx, "delete", start, err)
	return err
}

func (u *webhookUseCaseWithMetrics) RegenerateSecret(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	start := time.Now()
	webhook, err := u.next.RegenerateSecret(ctx, id)
	u.record(ctx, "regenerate_secret", start, err)
	return webhook, err
}

func (u *webhookUseCaseWithMetrics) ListDeliveries(
	ctx context.Context,
	webhookID uuid.UUID,
	offset, limit int,
) ([]*domain.Delivery, error) {
	start := time.Now()
	deliveries, err := u.next.ListDeliveries(ctx, webhookID, offset, limit)
	u.record(ctx, "list_deliveries", start, err)
	return deliveries, err
}

// deliveryUseCaseWithMetrics decorates DeliveryUseCase with metrics instrumentation.
type deliveryUseCaseWithMetrics struct {
	next    DeliveryUseCase
	metrics metrics.BusinessMetrics
}

// NewDeliveryUseCaseWithMetrics wraps a DeliveryUseCase with metrics recording.
func NewDeliveryUseCaseWithMetrics(useCase DeliveryUseCase, m metrics.BusinessMetrics) DeliveryUseCase {
	return &deliveryUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (u *deliveryUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "webhook", operation, status)
	u.metrics.RecordDuration(ctx, "webhook", operation, time.Since(start), status)
}

func (u *deliveryUseCaseWithMetrics) Trigger(
	ctx context.Context,
	projectID uuid.UUID,
	eventType string,
	payload json.RawMessage,
) ([]*domain.Delivery, error) {
	start := time.Now()
	deliveries, err := u.next.Trigger(ctx, projectID, eventType, payload)
	u.record(ctx, "trigger", start, err)
	return deliveries, err
}

func (u *deliveryUseCaseWithMetrics) Deliver(
	ctx context.Context,
	webhook *domain.Webhook,
	eventType string,
	payload json.RawMessage,
	attemptNumber int,
) (*domain.Delivery, error) {
	start := time.Now()
	delivery, err := u.next.Deliver(ctx, webhook, eventType, payload, attemptNumber)
	u.record(ctx, "deliver", start, err)
	return delivery, err
}

func (u *deliveryUseCaseWithMetrics) TestWebhook(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	start := time.Now()
	delivery, err := u.next.TestWebhook(ctx, id)
	u.record(ctx, "test_webhook", start, err)
	return delivery, err
}
