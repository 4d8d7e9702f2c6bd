package domain

import (
	"github.com/ederbit/fanout/internal/errors"
)

// Webhook domain errors.
var (
	// ErrWebhookNotFound indicates a webhook with the specified ID was not found.
	ErrWebhookNotFound = errors.Wrap(errors.ErrNotFound, "webhook not found")

	// ErrDeliveryNotFound indicates a delivery with the specified ID was not found.
	ErrDeliveryNotFound = errors.Wrap(errors.ErrNotFound, "webhook delivery not found")

	// ErrWebhookInactive indicates a delivery was requested for a deactivated webhook.
	ErrWebhookInactive = errors.Wrap(errors.ErrConflict, "webhook is not active")
)
