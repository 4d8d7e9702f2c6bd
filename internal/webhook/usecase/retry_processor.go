package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	apperrors "github.com/ederbit/fanout/internal/errors"
	"github.com/ederbit/fanout/internal/webhook/domain"
)

// RetryProcessorConfig holds retry processor configuration.
type RetryProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// RetryProcessor drains the durable retry queue: it claims deliveries whose
// backoff has elapsed and spawns a fresh attempt for each.
type RetryProcessor struct {
	config          RetryProcessorConfig
	webhookRepo     WebhookRepository
	deliveryRepo    DeliveryRepository
	deliveryUseCase DeliveryUseCase
	logger          *slog.Logger
}

// NewRetryProcessor creates a new RetryProcessor.
func NewRetryProcessor(
	config RetryProcessorConfig,
	webhookRepo WebhookRepository,
	deliveryRepo DeliveryRepository,
	deliveryUseCase DeliveryUseCase,
	logger *slog.Logger,
) *RetryProcessor {
	return &RetryProcessor{
		config:          config,
		webhookRepo:     webhookRepo,
		deliveryRepo:    deliveryRepo,
		deliveryUseCase: deliveryUseCase,
		logger:          logger,
	}
}

// Start runs the polling loop until the context is cancelled.
func (p *RetryProcessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	if p.logger != nil {
		p.logger.Info("webhook retry processor started",
			slog.Duration("poll_interval", p.config.PollInterval),
			slog.Int("batch_size", p.config.BatchSize),
		)
	}

	for {
		select {
		case <-ctx.Done():
			if p.logger != nil {
				p.logger.Info("webhook retry processor stopped")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessDueRetries(ctx); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to process webhook retries", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessDueRetries claims one batch of due retries and re-delivers each.
// Claiming finalizes the old attempt row, so a crash after the claim loses
// at most one retry per delivery rather than duplicating attempts.
func (p *RetryProcessor) ProcessDueRetries(ctx context.Context) error {
	claimed, err := p.deliveryRepo.ClaimDueRetries(ctx, p.config.BatchSize, time.Now())
	if err != nil {
		return err
	}

	for _, delivery := range claimed {
		if err := p.retryDelivery(ctx, delivery); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to retry webhook delivery",
					slog.String("delivery_id", delivery.ID.String()),
					slog.Any("error", err),
				)
			}
		}
	}

	return nil
}

// retryDelivery spawns a fresh attempt for a claimed delivery. The payload is
// recovered from the stored request body so the retried event carries the
// same data, while the envelope, delivery id and signature are rebuilt.
func (p *RetryProcessor) retryDelivery(ctx context.Context, delivery *domain.Delivery) error {
	webhook, err := p.webhookRepo.GetByID(ctx, delivery.WebhookID)
	if err != nil {
		// Webhook deleted since the attempt was scheduled; the row is
		// already finalized, nothing left to do.
		if apperrors.Is(err, domain.ErrWebhookNotFound) {
			return nil
		}
		return err
	}
	if !webhook.IsActive {
		return nil
	}

	var stored envelope
	if err := json.Unmarshal([]byte(delivery.RequestBody), &stored); err != nil {
		return apperrors.Wrap(err, "unmarshal stored delivery envelope")
	}

	_, err = p.deliveryUseCase.Deliver(ctx, webhook, delivery.EventType, stored.Data, delivery.AttemptNumber+1)
	return err
}
