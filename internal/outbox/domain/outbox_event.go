// Package domain defines the core outbox domain entities and types.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of domain change an outbox event describes.
type EventType string

const (
	EventTypeEntityCreated     EventType = "entity.created"
	EventTypeEntityUpdated     EventType = "entity.updated"
	EventTypeEntityDeleted     EventType = "entity.deleted"
	EventTypeRelationCreated   EventType = "relation.created"
	EventTypeRelationDeleted   EventType = "relation.deleted"
	EventTypeFactCreated       EventType = "fact.created"
	EventTypeFactUpdated       EventType = "fact.updated"
	EventTypeQuestionCreated   EventType = "question.created"
	EventTypeDocumentProcessed EventType = "document.processed"
)

// knownEventTypes is the set of event types accepted by the pipeline.
var knownEventTypes = map[EventType]struct{}{
	EventTypeEntityCreated:     {},
	EventTypeEntityUpdated:     {},
	EventTypeEntityDeleted:     {},
	EventTypeRelationCreated:   {},
	EventTypeRelationDeleted:   {},
	EventTypeFactCreated:       {},
	EventTypeFactUpdated:       {},
	EventTypeQuestionCreated:   {},
	EventTypeDocumentProcessed: {},
}

// IsValid reports whether the event type is one of the known types.
func (t EventType) IsValid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Operation describes how the consumer should apply the event to the target graph.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
	OperationMerge  Operation = "MERGE"
	OperationLink   Operation = "LINK"
	OperationUnlink Operation = "UNLINK"
)

// IsValid reports whether the operation is one of the known operations.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationMerge, OperationLink, OperationUnlink:
		return true
	}
	return false
}

// OutboxEventStatus represents the status of an outbox event.
//
// Status only moves forward: pending -> processing -> completed, or
// processing -> pending (retry) -> ... -> dead_letter. The terminal states
// (completed, dead_letter) never transition.
type OutboxEventStatus string

const (
	OutboxEventStatusPending    OutboxEventStatus = "pending"
	OutboxEventStatusProcessing OutboxEventStatus = "processing"
	OutboxEventStatusCompleted  OutboxEventStatus = "completed"
	OutboxEventStatusFailed     OutboxEventStatus = "failed"
	OutboxEventStatusDeadLetter OutboxEventStatus = "dead_letter"
)

// TargetScope identifies the downstream destination of an event: a project
// and a named graph within it.
type TargetScope struct {
	ProjectID uuid.UUID
	GraphName string
}

// OutboxEvent represents a durable domain-change notification awaiting
// asynchronous propagation to the target graph store.
type OutboxEvent struct {
	ID             uuid.UUID
	IdempotencyKey string
	EventType      EventType
	Operation      Operation
	Scope          TargetScope
	EntityType     string
	EntityID       string
	Payload        json.RawMessage
	// SyncQuery and SyncParams optionally carry a precomputed operation for
	// the consumer; nil when the consumer derives it from the payload.
	SyncQuery   *string
	SyncParams  json.RawMessage
	Status      OutboxEventStatus
	Attempts    int
	LastError   *string
	NextRetryAt *time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// AddEventInput holds the caller-supplied fields for a new outbox event.
// IdempotencyKey is optional; when empty one is derived from the entity identity.
type AddEventInput struct {
	Scope          TargetScope
	EventType      EventType
	Operation      Operation
	EntityType     string
	EntityID       string
	Payload        json.RawMessage
	SyncQuery      *string
	SyncParams     json.RawMessage
	IdempotencyKey string
}

// AddEventOutput reports the result of an idempotent enqueue. Duplicate is true
// when the idempotency key already existed and no new event was stored.
type AddEventOutput struct {
	ID        uuid.UUID
	Duplicate bool
}

// DeriveIdempotencyKey builds the default idempotency key for an event that
// was submitted without one: entityType:entityId:creationTimestamp.
func DeriveIdempotencyKey(entityType, entityID string, createdAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", entityType, entityID, createdAt.UnixNano())
}

// StatusCounts holds per-status event counts for a scope (or globally).
type StatusCounts struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	DeadLetter int64
}
