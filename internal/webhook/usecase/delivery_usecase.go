package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/webhook/domain"
	"github.com/ederbit/fanout/internal/webhook/service"
)

// maxResponseBodyBytes bounds the response snapshot stored in the ledger.
const maxResponseBodyBytes = 10 * 1024

// Webhook delivery headers.
const (
	headerSignature = "X-Webhook-Signature"
	headerEvent     = "X-Webhook-Event"
	headerDelivery  = "X-Webhook-Delivery"
)

// DeliveryConfig holds delivery engine configuration.
type DeliveryConfig struct {
	Timeout time.Duration
}

// envelope is the JSON body posted to webhook endpoints.
type envelope struct {
	Event      string          `json:"event"`
	Timestamp  string          `json:"timestamp"`
	DeliveryID string          `json:"delivery_id"`
	WebhookID  string          `json:"webhook_id"`
	Data       json.RawMessage `json:"data"`
}

// deliveryUseCase implements the DeliveryUseCase interface.
type deliveryUseCase struct {
	config       DeliveryConfig
	webhookRepo  WebhookRepository
	deliveryRepo DeliveryRepository
	signer       service.Signer
	client       *http.Client
	logger       *slog.Logger
}

// NewDeliveryUseCase creates a new DeliveryUseCase. The HTTP client carries
// the hard delivery timeout; no lock or transaction is held while a request
// is in flight.
func NewDeliveryUseCase(
	config DeliveryConfig,
	webhookRepo WebhookRepository,
	deliveryRepo DeliveryRepository,
	signer service.Signer,
	logger *slog.Logger,
) DeliveryUseCase {
	return &deliveryUseCase{
		config:       config,
		webhookRepo:  webhookRepo,
		deliveryRepo: deliveryRepo,
		signer:       signer,
		client:       &http.Client{Timeout: config.Timeout},
		logger:       logger,
	}
}

// Trigger delivers an event to every active webhook of the project that
// subscribes to the event type. Delivery is sequential: simplicity and a
// bounded blast radius on the triggering call win over fan-out throughput.
func (u *deliveryUseCase) Trigger(
	ctx context.Context,
	projectID uuid.UUID,
	eventType string,
	payload json.RawMessage,
) ([]*domain.Delivery, error) {
	webhooks, err := u.webhookRepo.ListActive(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var deliveries []*domain.Delivery
	for _, webhook := range webhooks {
		if !webhook.Subscribed(eventType) {
			continue
		}

		delivery, err := u.Deliver(ctx, webhook, eventType, payload, 1)
		if err != nil {
			// Ledger write failures surface to the caller; a lost audit
			// record must not look like success.
			return deliveries, err
		}
		deliveries = append(deliveries, delivery)
	}

	return deliveries, nil
}

// Deliver performs one delivery attempt: build and sign the envelope, record
// a pending ledger row before sending, POST with the configured timeout, then
// record the outcome and update the webhook's rolling statistics. A non-2xx
// response or transport error below the retry limit schedules a durable
// retry; the returned error reflects storage problems only.
func (u *deliveryUseCase) Deliver(
	ctx context.Context,
	webhook *domain.Webhook,
	eventType string,
	payload json.RawMessage,
	attemptNumber int,
) (*domain.Delivery, error) {
	deliveryID := uuid.New()

	body, err := json.Marshal(envelope{
		Event:      eventType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DeliveryID: deliveryID.String(),
		WebhookID:  webhook.ID.String(),
		Data:       payload,
	})
	if err != nil {
		return nil, err
	}

	// The signature covers the exact bytes sent on the wire.
	headers := map[string]string{
		"Content-Type":  "application/json",
		headerSignature: u.signer.Sign(body, webhook.Secret),
		headerEvent:     eventType,
		headerDelivery:  deliveryID.String(),
	}
	// Reserved headers win: a custom header must not replace the signature,
	// delivery metadata or content type the receiver verifies against.
	for name, value := range webhook.CustomHeaders {
		if _, reserved := headers[http.CanonicalHeaderKey(name)]; reserved {
			continue
		}
		headers[name] = value
	}

	delivery := &domain.Delivery{
		ID:             deliveryID,
		WebhookID:      webhook.ID,
		EventType:      eventType,
		URL:            webhook.URL,
		RequestHeaders: headers,
		RequestBody:    string(body),
		Status:         domain.DeliveryStatusPending,
		AttemptNumber:  attemptNumber,
		CreatedAt:      time.Now(),
	}

	// The pending row goes in before the send, so a crash mid-flight still
	// leaves a visible attempt record.
	if err := u.deliveryRepo.Create(ctx, delivery); err != nil {
		return nil, err
	}

	start := time.Now()
	response, sendErr := u.send(ctx, webhook.URL, headers, body)
	elapsed := time.Since(start).Milliseconds()
	delivery.ResponseTimeMs = &elapsed

	now := time.Now()
	succeeded := false

	if sendErr != nil {
		// Transport-level failure: no response received.
		message := sendErr.Error()
		delivery.ErrorMessage = &message
	} else {
		delivery.ResponseStatusCode = &response.statusCode
		delivery.ResponseHeaders = response.headers
		delivery.ResponseBody = &response.body
		succeeded = response.statusCode >= 200 && response.statusCode < 300
	}

	if succeeded {
		delivery.Status = domain.DeliveryStatusSuccess
		delivery.CompletedAt = &now
	} else if attemptNumber < webhook.MaxRetries {
		// Linear backoff, durable: the retrying row is claimed later by the
		// retry processor, so the schedule survives a restart.
		retryAt := now.Add(time.Duration(webhook.RetryDelaySeconds) * time.Second * time.Duration(attemptNumber))
		delivery.Status = domain.DeliveryStatusRetrying
		delivery.NextRetryAt = &retryAt
	} else {
		delivery.Status = domain.DeliveryStatusFailed
		delivery.CompletedAt = &now
	}

	if err := u.deliveryRepo.Update(ctx, delivery); err != nil {
		return nil, err
	}

	u.updateStats(ctx, webhook, succeeded, now)

	if u.logger != nil {
		u.logger.Info("webhook delivery attempt",
			slog.String("webhook_id", webhook.ID.String()),
			slog.String("delivery_id", delivery.ID.String()),
			slog.String("event_type", eventType),
			slog.Int("attempt", attemptNumber),
			slog.String("status", string(delivery.Status)),
		)
	}

	return delivery, nil
}

// TestWebhook sends a synthetic test event through the regular delivery path.
func (u *deliveryUseCase) TestWebhook(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	webhook, err := u.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !webhook.IsActive {
		return nil, domain.ErrWebhookInactive
	}

	payload, err := json.Marshal(map[string]string{
		"message": "test delivery",
	})
	if err != nil {
		return nil, err
	}

	return u.Deliver(ctx, webhook, "test", payload, 1)
}

// httpResponse is the snapshot of a webhook endpoint's reply.
type httpResponse struct {
	statusCode int
	headers    map[string]string
	body       string
}

// send POSTs the signed body and snapshots the response, truncating the body
// to the ledger limit.
func (u *deliveryUseCase) send(
	ctx context.Context,
	url string,
	headers map[string]string,
	body []byte,
) (*httpResponse, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}

	response, err := u.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close() //nolint:errcheck

	truncated, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, err
	}

	responseHeaders := make(map[string]string, len(response.Header))
	for name := range response.Header {
		responseHeaders[name] = response.Header.Get(name)
	}

	return &httpResponse{
		statusCode: response.StatusCode,
		headers:    responseHeaders,
		body:       string(truncated),
	}, nil
}

// updateStats refreshes the webhook's rolling delivery statistics. Best
// effort: a stats write failure is logged, not surfaced, because the ledger
// row already records the attempt.
func (u *deliveryUseCase) updateStats(
	ctx context.Context,
	webhook *domain.Webhook,
	succeeded bool,
	now time.Time,
) {
	webhook.TotalDeliveries++
	webhook.LastTriggeredAt = &now
	if succeeded {
		webhook.ConsecutiveFailures = 0
		webhook.LastSuccessAt = &now
	} else {
		webhook.ConsecutiveFailures++
		webhook.TotalFailures++
		webhook.LastFailureAt = &now
	}

	if err := u.webhookRepo.UpdateStats(ctx, webhook); err != nil {
		if u.logger != nil {
			u.logger.Error("failed to update webhook stats",
				slog.String("webhook_id", webhook.ID.String()),
				slog.Any("error", err),
			)
		}
	}
}
