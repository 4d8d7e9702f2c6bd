package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ederbit/fanout/internal/webhook/domain"
	"github.com/ederbit/fanout/internal/webhook/service"
)

func newTestDeliveryUseCase(
	webhookRepo WebhookRepository,
	deliveryRepo DeliveryRepository,
) DeliveryUseCase {
	return NewDeliveryUseCase(
		DeliveryConfig{Timeout: 5 * time.Second},
		webhookRepo,
		deliveryRepo,
		service.NewSigner(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func deliverableWebhook(url string) *domain.Webhook {
	return &domain.Webhook{
		ID:                uuid.Must(uuid.NewV7()),
		ProjectID:         uuid.Must(uuid.NewV7()),
		Name:              "graph-sync-notify",
		URL:               url,
		Secret:            "test-secret",
		Events:            []string{"entity.created"},
		CustomHeaders:     map[string]string{"X-Tenant": "acme"},
		MaxRetries:        3,
		RetryDelaySeconds: 60,
		IsActive:          true,
	}
}

func TestDeliveryUseCase_Deliver_Success(t *testing.T) {
	var (
		receivedBody    []byte
		receivedHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		receivedHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`)) //nolint:errcheck
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{"id":"e-1"}`), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSuccess, delivery.Status)
	assert.Equal(t, 200, *delivery.ResponseStatusCode)
	assert.NotNil(t, delivery.ResponseTimeMs)
	assert.NotNil(t, delivery.CompletedAt)
	assert.Nil(t, delivery.NextRetryAt)

	// The endpoint saw a signed envelope whose signature covers the exact body.
	signer := service.NewSigner()
	assert.True(t, signer.Verify(receivedBody, receivedHeaders.Get("X-Webhook-Signature"), webhook.Secret))
	assert.Equal(t, "application/json", receivedHeaders.Get("Content-Type"))
	assert.Equal(t, "entity.created", receivedHeaders.Get("X-Webhook-Event"))
	assert.Equal(t, delivery.ID.String(), receivedHeaders.Get("X-Webhook-Delivery"))
	assert.Equal(t, "acme", receivedHeaders.Get("X-Tenant"))

	var body envelope
	require.NoError(t, json.Unmarshal(receivedBody, &body))
	assert.Equal(t, "entity.created", body.Event)
	assert.Equal(t, delivery.ID.String(), body.DeliveryID)
	assert.Equal(t, webhook.ID.String(), body.WebhookID)
	assert.JSONEq(t, `{"id":"e-1"}`, string(body.Data))

	// Rolling stats after one success.
	assert.Equal(t, int64(1), webhook.TotalDeliveries)
	assert.Equal(t, int64(0), webhook.TotalFailures)
	assert.Equal(t, 0, webhook.ConsecutiveFailures)
	assert.NotNil(t, webhook.LastTriggeredAt)
	assert.NotNil(t, webhook.LastSuccessAt)
	assert.Nil(t, webhook.LastFailureAt)
}

func TestDeliveryUseCase_Deliver_RecordsPendingRowBeforeSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	var createdStatus domain.DeliveryStatus
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).
		Run(func(args mock.Arguments) {
			createdStatus = args.Get(1).(*domain.Delivery).Status
		}).
		Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, mock.Anything).Return(nil)

	_, err := useCase.Deliver(ctx, deliverableWebhook(server.URL), "entity.created", json.RawMessage(`{}`), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPending, createdStatus)
}

func TestDeliveryUseCase_Deliver_FailureSchedulesLinearRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRetrying, delivery.Status)
	assert.Equal(t, 500, *delivery.ResponseStatusCode)
	require.NotNil(t, delivery.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(60*time.Second), *delivery.NextRetryAt, 2*time.Second)
	assert.Nil(t, delivery.CompletedAt)

	assert.Equal(t, int64(1), webhook.TotalDeliveries)
	assert.Equal(t, int64(1), webhook.TotalFailures)
	assert.Equal(t, 1, webhook.ConsecutiveFailures)
	assert.NotNil(t, webhook.LastFailureAt)
}

func TestDeliveryUseCase_Deliver_SecondAttemptBacksOffFurther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, mock.Anything).Return(nil)

	delivery, err := useCase.Deliver(ctx, deliverableWebhook(server.URL), "entity.created", json.RawMessage(`{}`), 2)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRetrying, delivery.Status)
	require.NotNil(t, delivery.NextRetryAt)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), *delivery.NextRetryAt, 2*time.Second)
}

func TestDeliveryUseCase_Deliver_FinalAttemptFailsTerminally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), webhook.MaxRetries)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusFailed, delivery.Status)
	assert.Nil(t, delivery.NextRetryAt)
	assert.NotNil(t, delivery.CompletedAt)
}

func TestDeliveryUseCase_Deliver_RecoveryResetsConsecutiveFailures(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	// Two failed attempts followed by a recovery on the third.
	first, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRetrying, first.Status)

	second, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 2)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRetrying, second.Status)
	assert.Equal(t, 2, webhook.ConsecutiveFailures)

	third, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSuccess, third.Status)

	// The success wipes the consecutive-failure streak; the totals keep the
	// full history.
	assert.Equal(t, int64(3), webhook.TotalDeliveries)
	assert.Equal(t, int64(2), webhook.TotalFailures)
	assert.Equal(t, 0, webhook.ConsecutiveFailures)
	assert.NotNil(t, webhook.LastSuccessAt)
	assert.NotNil(t, webhook.LastFailureAt)
}

func TestDeliveryUseCase_Deliver_CustomHeadersCannotOverrideReserved(t *testing.T) {
	var (
		receivedBody    []byte
		receivedHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		receivedHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	webhook.CustomHeaders = map[string]string{
		"X-Webhook-Signature": "forged",
		"content-type":        "text/plain",
		"X-Tenant":            "acme",
	}
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSuccess, delivery.Status)

	// The real signature and content type survive; non-reserved custom
	// headers still come through.
	signer := service.NewSigner()
	assert.True(t, signer.Verify(receivedBody, receivedHeaders.Get("X-Webhook-Signature"), webhook.Secret))
	assert.Equal(t, "application/json", receivedHeaders.Get("Content-Type"))
	assert.Equal(t, "acme", receivedHeaders.Get("X-Tenant"))
}

func TestDeliveryUseCase_Deliver_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook(server.URL)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.Deliver(ctx, webhook, "entity.created", json.RawMessage(`{}`), 1)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusRetrying, delivery.Status)
	assert.Nil(t, delivery.ResponseStatusCode)
	require.NotNil(t, delivery.ErrorMessage)
	assert.NotEmpty(t, *delivery.ErrorMessage)
	assert.Equal(t, 1, webhook.ConsecutiveFailures)
}

func TestDeliveryUseCase_Deliver_TruncatesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(strings.Repeat("x", 64*1024))) //nolint:errcheck
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, mock.Anything).Return(nil)

	delivery, err := useCase.Deliver(ctx, deliverableWebhook(server.URL), "entity.created", json.RawMessage(`{}`), 1)

	require.NoError(t, err)
	require.NotNil(t, delivery.ResponseBody)
	assert.Len(t, *delivery.ResponseBody, maxResponseBodyBytes)
}

func TestDeliveryUseCase_Trigger_FiltersBySubscription(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	projectID := uuid.Must(uuid.NewV7())
	subscribed := deliverableWebhook(server.URL)
	other := deliverableWebhook(server.URL)
	other.Events = []string{"fact.created"}

	webhookRepo.On("ListActive", ctx, projectID).Return([]*domain.Webhook{subscribed, other}, nil)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, subscribed).Return(nil)

	deliveries, err := useCase.Trigger(ctx, projectID, "entity.created", json.RawMessage(`{}`))

	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, subscribed.ID, deliveries[0].WebhookID)
	assert.Equal(t, 1, hits)
}

func TestDeliveryUseCase_TestWebhook(t *testing.T) {
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	// Test deliveries bypass the subscription filter.
	webhook := deliverableWebhook(server.URL)
	webhook.Events = []string{"entity.created"}
	webhookRepo.On("GetByID", ctx, webhook.ID).Return(webhook, nil)
	deliveryRepo.On("Create", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveryRepo.On("Update", ctx, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	webhookRepo.On("UpdateStats", ctx, webhook).Return(nil)

	delivery, err := useCase.TestWebhook(ctx, webhook.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusSuccess, delivery.Status)
	assert.Equal(t, "test", delivery.EventType)

	var body envelope
	require.NoError(t, json.Unmarshal(receivedBody, &body))
	assert.Equal(t, "test", body.Event)
}

func TestDeliveryUseCase_TestWebhook_Inactive(t *testing.T) {
	webhookRepo := new(MockWebhookRepository)
	deliveryRepo := new(MockDeliveryRepository)
	useCase := newTestDeliveryUseCase(webhookRepo, deliveryRepo)
	ctx := context.Background()

	webhook := deliverableWebhook("https://example.com/hooks")
	webhook.IsActive = false
	webhookRepo.On("GetByID", ctx, webhook.ID).Return(webhook, nil)

	_, err := useCase.TestWebhook(ctx, webhook.ID)

	assert.ErrorIs(t, err, domain.ErrWebhookInactive)
	deliveryRepo.AssertNotCalled(t, "Create")
}
