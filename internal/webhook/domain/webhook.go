// Package domain defines the core webhook domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is a registered HTTP endpoint subscribed to a set of event types.
// The secret signs every delivery payload; it is returned to the caller only
// at creation and on explicit regeneration.
type Webhook struct {
	ID                uuid.UUID
	ProjectID         uuid.UUID
	Name              string
	Description       string
	URL               string
	Secret            string
	Events            []string
	CustomHeaders     map[string]string
	MaxRetries        int
	RetryDelaySeconds int
	IsActive          bool

	// Rolling delivery statistics, updated as attempts resolve.
	ConsecutiveFailures int
	TotalDeliveries     int64
	TotalFailures       int64
	LastTriggeredAt     *time.Time
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscribed reports whether the webhook listens for the given event type.
// Membership is exact string match; an empty subscription list matches nothing.
func (w *Webhook) Subscribed(eventType string) bool {
	for _, event := range w.Events {
		if event == eventType {
			return true
		}
	}
	return false
}

// CreateWebhookInput holds the caller-supplied fields for a new webhook.
type CreateWebhookInput struct {
	ProjectID         uuid.UUID
	Name              string
	Description       string
	URL               string
	Events            []string
	CustomHeaders     map[string]string
	MaxRetries        int
	RetryDelaySeconds int
}

// UpdateWebhookInput holds the mutable webhook fields. Nil pointers leave the
// current value unchanged; identity, secret and statistics are never updatable
// through this path.
type UpdateWebhookInput struct {
	Name              *string
	Description       *string
	URL               *string
	Events            []string
	CustomHeaders     map[string]string
	MaxRetries        *int
	RetryDelaySeconds *int
	IsActive          *bool
}
