// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"

	customValidation "github.com/ederbit/fanout/internal/validation"
	"github.com/ederbit/fanout/internal/webhook/domain"
)

// CreateWebhookRequest contains the parameters for registering a webhook.
type CreateWebhookRequest struct {
	ProjectID         string            `json:"project_id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	URL               string            `json:"url"`
	Events            []string          `json:"events"`
	CustomHeaders     map[string]string `json:"custom_headers,omitempty"`
	MaxRetries        int               `json:"max_retries,omitempty"`
	RetryDelaySeconds int               `json:"retry_delay_seconds,omitempty"`
}

// Validate checks if the create webhook request is valid.
func (r *CreateWebhookRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required, is.UUID),
		validation.Field(&r.Name, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.URL, validation.Required, customValidation.HTTPURL),
		validation.Field(&r.Events, validation.Required, validation.Length(1, 0)),
		validation.Field(&r.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&r.RetryDelaySeconds, validation.Min(0), validation.Max(3600)),
	)
}

// ToInput converts the request to a domain input. Validate must pass first.
func (r *CreateWebhookRequest) ToInput() *domain.CreateWebhookInput {
	projectID, _ := uuid.Parse(r.ProjectID)
	return &domain.CreateWebhookInput{
		ProjectID:         projectID,
		Name:              r.Name,
		Description:       r.Description,
		URL:               r.URL,
		Events:            r.Events,
		CustomHeaders:     r.CustomHeaders,
		MaxRetries:        r.MaxRetries,
		RetryDelaySeconds: r.RetryDelaySeconds,
	}
}

// UpdateWebhookRequest contains the mutable-field allowlist for a webhook.
// Absent fields are left unchanged.
type UpdateWebhookRequest struct {
	Name              *string           `json:"name,omitempty"`
	Description       *string           `json:"description,omitempty"`
	URL               *string           `json:"url,omitempty"`
	Events            []string          `json:"events,omitempty"`
	CustomHeaders     map[string]string `json:"custom_headers,omitempty"`
	MaxRetries        *int              `json:"max_retries,omitempty"`
	RetryDelaySeconds *int              `json:"retry_delay_seconds,omitempty"`
	IsActive          *bool             `json:"is_active,omitempty"`
}

// Validate checks if the update webhook request is valid.
func (r *UpdateWebhookRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, customValidation.NotBlank),
		validation.Field(&r.URL, validation.NilOrNotEmpty, customValidation.HTTPURL),
	)
}

// ToInput converts the request to a domain input.
func (r *UpdateWebhookRequest) ToInput() *domain.UpdateWebhookInput {
	return &domain.UpdateWebhookInput{
		Name:              r.Name,
		Description:       r.Description,
		URL:               r.URL,
		Events:            r.Events,
		CustomHeaders:     r.CustomHeaders,
		MaxRetries:        r.MaxRetries,
		RetryDelaySeconds: r.RetryDelaySeconds,
		IsActive:          r.IsActive,
	}
}
