package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the status of one webhook delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// Delivery is one attempt to deliver an event to a webhook endpoint. A row is
// written in pending status before the HTTP call so a crash mid-send leaves a
// visible trace; response fields are filled in as the attempt resolves.
// Retrying rows carry next_retry_at and are claimed by the retry processor.
type Delivery struct {
	ID             uuid.UUID
	WebhookID      uuid.UUID
	EventType      string
	URL            string
	RequestHeaders map[string]string
	RequestBody    string
	Status         DeliveryStatus
	AttemptNumber  int

	ResponseStatusCode *int
	ResponseHeaders    map[string]string
	ResponseBody       *string
	ResponseTimeMs     *int64
	NextRetryAt        *time.Time
	ErrorMessage       *string

	CreatedAt   time.Time
	CompletedAt *time.Time
}
