package domain

import (
	"github.com/ederbit/fanout/internal/errors"
)

// Outbox domain errors.
var (
	// ErrEventNotFound indicates an outbox event with the specified ID was not found.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "outbox event not found")

	// ErrDeadLetterNotFound indicates a dead letter with the specified ID was not found.
	ErrDeadLetterNotFound = errors.Wrap(errors.ErrNotFound, "dead letter not found")

	// ErrEventNotClaimable indicates a state-changing operation targeted an event
	// that is not in the expected status (e.g. completing an unclaimed event).
	ErrEventNotClaimable = errors.Wrap(errors.ErrConflict, "outbox event not in expected status")

	// ErrDeadLetterResolved indicates a retry was requested for a dead letter
	// that has already been resolved.
	ErrDeadLetterResolved = errors.Wrap(errors.ErrConflict, "dead letter already resolved")
)
