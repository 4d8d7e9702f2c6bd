package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetterEvent references an outbox event that exhausted its retry budget
// and now requires manual intervention. It is resolved either explicitly or by
// a manual retry that requeues the referenced event.
type DeadLetterEvent struct {
	ID              uuid.UUID
	OutboxEventID   uuid.UUID
	Resolved        bool
	ResolvedBy      *string
	ResolutionNotes *string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}
