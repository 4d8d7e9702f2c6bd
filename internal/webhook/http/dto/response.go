// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/ederbit/fanout/internal/webhook/domain"
)

// WebhookResponse represents a webhook in API responses.
// The Secret field is only populated on creation and secret regeneration;
// read endpoints never return it.
type WebhookResponse struct {
	Success             bool              `json:"success"`
	ID                  string            `json:"id"`
	ProjectID           string            `json:"project_id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	URL                 string            `json:"url"`
	Secret              string            `json:"secret,omitempty"`
	Events              []string          `json:"events"`
	CustomHeaders       map[string]string `json:"custom_headers,omitempty"`
	MaxRetries          int               `json:"max_retries"`
	RetryDelaySeconds   int               `json:"retry_delay_seconds"`
	IsActive            bool              `json:"is_active"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	TotalDeliveries     int64             `json:"total_deliveries"`
	TotalFailures       int64             `json:"total_failures"`
	LastTriggeredAt     *time.Time        `json:"last_triggered_at,omitempty"`
	LastSuccessAt       *time.Time        `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time        `json:"last_failure_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// MapWebhookToResponse converts a domain webhook to an API response without
// the signing secret.
func MapWebhookToResponse(webhook *domain.Webhook) WebhookResponse {
	return WebhookResponse{
		Success:             true,
		ID:                  webhook.ID.String(),
		ProjectID:           webhook.ProjectID.String(),
		Name:                webhook.Name,
		Description:         webhook.Description,
		URL:                 webhook.URL,
		Events:              webhook.Events,
		CustomHeaders:       webhook.CustomHeaders,
		MaxRetries:          webhook.MaxRetries,
		RetryDelaySeconds:   webhook.RetryDelaySeconds,
		IsActive:            webhook.IsActive,
		ConsecutiveFailures: webhook.ConsecutiveFailures,
		TotalDeliveries:     webhook.TotalDeliveries,
		TotalFailures:       webhook.TotalFailures,
		LastTriggeredAt:     webhook.LastTriggeredAt,
		LastSuccessAt:       webhook.LastSuccessAt,
		LastFailureAt:       webhook.LastFailureAt,
		CreatedAt:           webhook.CreatedAt,
		UpdatedAt:           webhook.UpdatedAt,
	}
}

// MapWebhookToResponseWithSecret converts a domain webhook to an API response
// including the plaintext signing secret. Used only for creation and secret
// regeneration responses.
func MapWebhookToResponseWithSecret(webhook *domain.Webhook) WebhookResponse {
	response := MapWebhookToResponse(webhook)
	response.Secret = webhook.Secret
	return response
}

// WebhookItem is one webhook within a list response, without the secret.
type WebhookItem struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	URL                 string     `json:"url"`
	Events              []string   `json:"events"`
	IsActive            bool       `json:"is_active"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalDeliveries     int64      `json:"total_deliveries"`
	TotalFailures       int64      `json:"total_failures"`
	LastTriggeredAt     *time.Time `json:"last_triggered_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// WebhookListResponse carries a page of webhooks.
type WebhookListResponse struct {
	Success  bool          `json:"success"`
	Webhooks []WebhookItem `json:"webhooks"`
	Offset   int           `json:"offset"`
	Limit    int           `json:"limit"`
}

// MapWebhooksToListResponse converts domain webhooks to a paginated API response.
func MapWebhooksToListResponse(webhooks []*domain.Webhook, offset, limit int) WebhookListResponse {
	items := make([]WebhookItem, len(webhooks))
	for i, webhook := range webhooks {
		items[i] = WebhookItem{
			ID:                  webhook.ID.String(),
			Name:                webhook.Name,
			URL:                 webhook.URL,
			Events:              webhook.Events,
			IsActive:            webhook.IsActive,
			ConsecutiveFailures: webhook.ConsecutiveFailures,
			TotalDeliveries:     webhook.TotalDeliveries,
			TotalFailures:       webhook.TotalFailures,
			LastTriggeredAt:     webhook.LastTriggeredAt,
			CreatedAt:           webhook.CreatedAt,
		}
	}
	return WebhookListResponse{
		Success:  true,
		Webhooks: items,
		Offset:   offset,
		Limit:    limit,
	}
}

// DeliveryResponse represents a delivery ledger entry in API responses.
type DeliveryResponse struct {
	Success            bool              `json:"success"`
	ID                 string            `json:"id"`
	WebhookID          string            `json:"webhook_id"`
	EventType          string            `json:"event_type"`
	URL                string            `json:"url"`
	Status             string            `json:"status"`
	AttemptNumber      int               `json:"attempt_number"`
	ResponseStatusCode *int              `json:"response_status_code,omitempty"`
	ResponseHeaders    map[string]string `json:"response_headers,omitempty"`
	ResponseBody       *string           `json:"response_body,omitempty"`
	ResponseTimeMs     *int64            `json:"response_time_ms,omitempty"`
	NextRetryAt        *time.Time        `json:"next_retry_at,omitempty"`
	ErrorMessage       *string           `json:"error_message,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
}

// MapDeliveryToResponse converts a domain delivery to an API response.
func MapDeliveryToResponse(delivery *domain.Delivery) DeliveryResponse {
	return DeliveryResponse{
		Success:            true,
		ID:                 delivery.ID.String(),
		WebhookID:          delivery.WebhookID.String(),
		EventType:          delivery.EventType,
		URL:                delivery.URL,
		Status:             string(delivery.Status),
		AttemptNumber:      delivery.AttemptNumber,
		ResponseStatusCode: delivery.ResponseStatusCode,
		ResponseHeaders:    delivery.ResponseHeaders,
		ResponseBody:       delivery.ResponseBody,
		ResponseTimeMs:     delivery.ResponseTimeMs,
		NextRetryAt:        delivery.NextRetryAt,
		ErrorMessage:       delivery.ErrorMessage,
		CreatedAt:          delivery.CreatedAt,
		CompletedAt:        delivery.CompletedAt,
	}
}

// DeliveryItem is one delivery within a list response. The stored request and
// response bodies are omitted from lists to keep pages small.
type DeliveryItem struct {
	ID                 string     `json:"id"`
	EventType          string     `json:"event_type"`
	Status             string     `json:"status"`
	AttemptNumber      int        `json:"attempt_number"`
	ResponseStatusCode *int       `json:"response_status_code,omitempty"`
	ResponseTimeMs     *int64     `json:"response_time_ms,omitempty"`
	NextRetryAt        *time.Time `json:"next_retry_at,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// DeliveryListResponse carries a page of deliveries.
type DeliveryListResponse struct {
	Success    bool           `json:"success"`
	Deliveries []DeliveryItem `json:"deliveries"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
}

// MapDeliveriesToListResponse converts domain deliveries to a paginated API response.
func MapDeliveriesToListResponse(deliveries []*domain.Delivery, offset, limit int) DeliveryListResponse {
	items := make([]DeliveryItem, len(deliveries))
	for i, delivery := range deliveries {
		items[i] = DeliveryItem{
			ID:                 delivery.ID.String(),
			EventType:          delivery.EventType,
			Status:             string(delivery.Status),
			AttemptNumber:      delivery.AttemptNumber,
			ResponseStatusCode: delivery.ResponseStatusCode,
			ResponseTimeMs:     delivery.ResponseTimeMs,
			NextRetryAt:        delivery.NextRetryAt,
			ErrorMessage:       delivery.ErrorMessage,
			CreatedAt:          delivery.CreatedAt,
			CompletedAt:        delivery.CompletedAt,
		}
	}
	return DeliveryListResponse{
		Success:    true,
		Deliveries: items,
		Offset:     offset,
		Limit:      limit,
	}
}
