// Package usecase defines the interfaces and implementations for outbox
// event management. Use cases orchestrate repositories to implement durable,
// idempotent event delivery with bounded retries and a dead-letter path.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/outbox/domain"
)

// OutboxEventRepository defines the interface for outbox event persistence operations.
type OutboxEventRepository interface {
	// Create inserts an event; returns false when the idempotency key already exists.
	Create(ctx context.Context, event *domain.OutboxEvent) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.OutboxEvent, error)
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
	MarkCompleted(ctx context.Context, id uuid.UUID, now time.Time) error
	CountByStatus(ctx context.Context, scope *domain.TargetScope) (*domain.StatusCounts, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SyncStatusRepository defines the interface for per-scope pending counters.
type SyncStatusRepository interface {
	Adjust(ctx context.Context, scope domain.TargetScope, delta int64) error
	Get(ctx context.Context, scope domain.TargetScope) (*domain.SyncStatus, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*domain.SyncStatus, error)
}

// DeadLetterRepository defines the interface for dead letter persistence operations.
type DeadLetterRepository interface {
	Create(ctx context.Context, deadLetter *domain.DeadLetterEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEvent, error)
	List(
		ctx context.Context,
		scope *domain.TargetScope,
		unresolvedOnly bool,
		offset, limit int,
	) ([]*domain.DeadLetterEvent, error)
	Resolve(
		ctx context.Context,
		id uuid.UUID,
		resolvedBy string,
		notes *string,
		now time.Time,
	) (*domain.DeadLetterEvent, error)
}

// EventProcessor defines the interface for handling a claimed outbox event.
// Implementations propagate the change to downstream consumers (graph sync,
// webhook fan-out). A returned error schedules the event for retry.
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// OutboxUseCase defines the interface for outbox business logic.
type OutboxUseCase interface {
	// AddEvent enqueues an event idempotently: re-submitting the same
	// idempotency key reports Duplicate without storing a second event.
	AddEvent(ctx context.Context, input *domain.AddEventInput) (*domain.AddEventOutput, error)
	// AddBatch enqueues multiple events in a single transaction.
	AddBatch(ctx context.Context, inputs []*domain.AddEventInput) ([]*domain.AddEventOutput, error)
	// ClaimBatch atomically claims up to the configured batch size of
	// deliverable events, transitioning them to processing.
	ClaimBatch(ctx context.Context) ([]*domain.OutboxEvent, error)
	// MarkCompleted finalizes a successfully processed event.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	// MarkFailed records a processing failure, scheduling a retry or
	// dead-lettering the event once attempts are exhausted.
	MarkFailed(ctx context.Context, event *domain.OutboxEvent, procErr error) error
	// GetStats returns per-status event counts, optionally scoped.
	GetStats(ctx context.Context, scope *domain.TargetScope) (*domain.StatusCounts, error)
	// GetSyncStatus returns the approximate pending counter for a scope.
	GetSyncStatus(ctx context.Context, scope domain.TargetScope) (*domain.SyncStatus, error)
	// ListSyncStatuses returns all counters for a project.
	ListSyncStatuses(ctx context.Context, projectID uuid.UUID) ([]*domain.SyncStatus, error)
	// Cleanup deletes completed events older than the retention window.
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DeadLetterUseCase defines the interface for dead letter management.
type DeadLetterUseCase interface {
	List(
		ctx context.Context,
		scope *domain.TargetScope,
		unresolvedOnly bool,
		offset, limit int,
	) ([]*domain.DeadLetterEvent, error)
	// Resolve marks a dead letter handled; resolving twice is a no-op.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy string, notes *string) (*domain.DeadLetterEvent, error)
	// Retry requeues the referenced event with a fresh retry budget and
	// resolves the dead letter.
	Retry(ctx context.Context, id uuid.UUID, retriedBy string) (*domain.DeadLetterEvent, error)
}
