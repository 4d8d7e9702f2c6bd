// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/json"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"

	"github.com/ederbit/fanout/internal/outbox/domain"
	customValidation "github.com/ederbit/fanout/internal/validation"
)

// IngestEventRequest contains the parameters for enqueueing a domain change.
type IngestEventRequest struct {
	EventType      string          `json:"event_type"`
	Operation      string          `json:"operation"`
	ProjectID      string          `json:"project_id"`
	GraphName      string          `json:"graph_name"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Payload        json.RawMessage `json:"payload"`
	SyncQuery      *string         `json:"sync_query,omitempty"`
	SyncParams     json.RawMessage `json:"sync_params,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Validate checks if the ingest event request is valid.
func (r *IngestEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EventType, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Operation, validation.Required, customValidation.NotBlank),
		validation.Field(&r.ProjectID, validation.Required, is.UUID),
		validation.Field(&r.GraphName, validation.Required, customValidation.NotBlank),
		validation.Field(&r.EntityType, validation.Required, customValidation.NotBlank),
		validation.Field(&r.EntityID, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Payload, validation.Required),
	)
}

// ToInput converts the request to a domain input. Validate must pass first so
// the project id parse cannot fail here.
func (r *IngestEventRequest) ToInput() *domain.AddEventInput {
	projectID, _ := uuid.Parse(r.ProjectID)
	return &domain.AddEventInput{
		Scope: domain.TargetScope{
			ProjectID: projectID,
			GraphName: r.GraphName,
		},
		EventType:      domain.EventType(r.EventType),
		Operation:      domain.Operation(r.Operation),
		EntityType:     r.EntityType,
		EntityID:       r.EntityID,
		Payload:        r.Payload,
		SyncQuery:      r.SyncQuery,
		SyncParams:     r.SyncParams,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// IngestBatchRequest contains the parameters for enqueueing multiple domain
// changes in one transaction.
type IngestBatchRequest struct {
	Events []IngestEventRequest `json:"events"`
}

// Validate checks if the ingest batch request is valid.
func (r *IngestBatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Events, validation.Required, validation.Length(1, 100)),
	)
}

// ResolveDeadLetterRequest contains the parameters for resolving a dead letter.
type ResolveDeadLetterRequest struct {
	ResolvedBy string  `json:"resolved_by"`
	Notes      *string `json:"notes,omitempty"`
}

// Validate checks if the resolve dead letter request is valid.
func (r *ResolveDeadLetterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ResolvedBy, validation.Required, customValidation.NotBlank),
	)
}

// RetryDeadLetterRequest contains the parameters for manually retrying a dead letter.
type RetryDeadLetterRequest struct {
	RetriedBy string `json:"retried_by"`
}

// Validate checks if the retry dead letter request is valid.
func (r *RetryDeadLetterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RetriedBy, validation.Required, customValidation.NotBlank),
	)
}
