package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"

	apperrors "github.com/ederbit/fanout/internal/errors"
)

// Config holds outbox use case configuration.
type Config struct {
	BatchSize     int
	MaxAttempts   int
	RetryInterval time.Duration
}

// outboxUseCase implements the OutboxUseCase interface.
type outboxUseCase struct {
	config         Config
	txManager      database.TxManager
	eventRepo      OutboxEventRepository
	syncStatusRepo SyncStatusRepository
	deadLetterRepo DeadLetterRepository
}

// NewOutboxUseCase creates a new OutboxUseCase.
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	eventRepo OutboxEventRepository,
	syncStatusRepo SyncStatusRepository,
	deadLetterRepo DeadLetterRepository,
) OutboxUseCase {
	return &outboxUseCase{
		config:         config,
		txManager:      txManager,
		eventRepo:      eventRepo,
		syncStatusRepo: syncStatusRepo,
		deadLetterRepo: deadLetterRepo,
	}
}

// AddEvent enqueues an event idempotently. The event row and the pending
// counter increment commit in the same transaction, so a stored event is
// always reflected in the scope's sync status.
func (u *outboxUseCase) AddEvent(
	ctx context.Context,
	input *domain.AddEventInput,
) (*domain.AddEventOutput, error) {
	event, err := buildEvent(input, "")
	if err != nil {
		return nil, err
	}

	var output *domain.AddEventOutput
	err = u.txManager.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		output, txErr = u.addEvent(ctx, event)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}

// AddBatch enqueues multiple events in a single transaction. Entries that
// rely on a derived idempotency key get a batch-local suffix so two changes
// to the same entity submitted together do not collapse into one event.
func (u *outboxUseCase) AddBatch(
	ctx context.Context,
	inputs []*domain.AddEventInput,
) ([]*domain.AddEventOutput, error) {
	events := make([]*domain.OutboxEvent, 0, len(inputs))
	for i, input := range inputs {
		event, err := buildEvent(input, fmt.Sprintf(":%d", i))
		if err != nil {
			return nil, apperrors.Wrap(err, fmt.Sprintf("batch entry %d", i))
		}
		events = append(events, event)
	}

	outputs := make([]*domain.AddEventOutput, 0, len(events))
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, event := range events {
			output, txErr := u.addEvent(ctx, event)
			if txErr != nil {
				return txErr
			}
			outputs = append(outputs, output)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return outputs, nil
}

// addEvent stores one event inside the caller's transaction.
func (u *outboxUseCase) addEvent(
	ctx context.Context,
	event *domain.OutboxEvent,
) (*domain.AddEventOutput, error) {
	inserted, err := u.eventRepo.Create(ctx, event)
	if err != nil {
		return nil, err
	}

	if !inserted {
		existing, err := u.eventRepo.GetByIdempotencyKey(ctx, event.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		return &domain.AddEventOutput{ID: existing.ID, Duplicate: true}, nil
	}

	if err := u.syncStatusRepo.Adjust(ctx, event.Scope, 1); err != nil {
		return nil, err
	}

	return &domain.AddEventOutput{ID: event.ID}, nil
}

// ClaimBatch atomically claims a batch of deliverable events. The claim runs
// in a transaction because the MySQL implementation needs one to make the
// lock-update-read sequence atomic.
func (u *outboxUseCase) ClaimBatch(ctx context.Context) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		events, txErr = u.eventRepo.ClaimBatch(ctx, u.config.BatchSize, time.Now())
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// MarkCompleted finalizes a successfully processed event. It deliberately
// leaves the pending counter alone: decrementing is the consumer's own
// bookkeeping, done by the processor after a completed delivery.
func (u *outboxUseCase) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return u.eventRepo.MarkCompleted(ctx, id, time.Now())
}

// MarkFailed records a processing failure. Below the attempt limit the event
// is scheduled for a linear-backoff retry; at the limit it is dead-lettered
// and a dead letter row is created in the same transaction.
func (u *outboxUseCase) MarkFailed(ctx context.Context, event *domain.OutboxEvent, procErr error) error {
	now := time.Now()
	event.Attempts++
	errorMsg := procErr.Error()
	event.LastError = &errorMsg

	if event.Attempts >= u.config.MaxAttempts {
		event.Status = domain.OutboxEventStatusDeadLetter
		event.NextRetryAt = nil

		return u.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := u.eventRepo.Update(ctx, event); err != nil {
				return err
			}

			deadLetter := &domain.DeadLetterEvent{
				ID:            uuid.Must(uuid.NewV7()),
				OutboxEventID: event.ID,
			}
			if err := u.deadLetterRepo.Create(ctx, deadLetter); err != nil {
				return err
			}

			// The event left the deliverable pool, so it no longer counts
			// as pending for the scope.
			return u.syncStatusRepo.Adjust(ctx, event.Scope, -1)
		})
	}

	// Linear backoff: delay grows with the attempt count.
	retryAt := now.Add(u.config.RetryInterval * time.Duration(event.Attempts))
	event.Status = domain.OutboxEventStatusFailed
	event.NextRetryAt = &retryAt

	return u.eventRepo.Update(ctx, event)
}

// GetStats returns per-status event counts, optionally scoped.
func (u *outboxUseCase) GetStats(
	ctx context.Context,
	scope *domain.TargetScope,
) (*domain.StatusCounts, error) {
	return u.eventRepo.CountByStatus(ctx, scope)
}

// GetSyncStatus returns the approximate pending counter for a scope.
func (u *outboxUseCase) GetSyncStatus(
	ctx context.Context,
	scope domain.TargetScope,
) (*domain.SyncStatus, error) {
	return u.syncStatusRepo.Get(ctx, scope)
}

// ListSyncStatuses returns all counters for a project.
func (u *outboxUseCase) ListSyncStatuses(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*domain.SyncStatus, error) {
	return u.syncStatusRepo.List(ctx, projectID)
}

// Cleanup deletes completed events older than the retention window.
func (u *outboxUseCase) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	return u.eventRepo.DeleteCompletedBefore(ctx, time.Now().Add(-olderThan))
}

// buildEvent validates the input and materializes a pending outbox event.
// keySuffix disambiguates derived keys inside a batch; it is ignored when the
// caller supplied an explicit idempotency key.
func buildEvent(input *domain.AddEventInput, keySuffix string) (*domain.OutboxEvent, error) {
	if !input.EventType.IsValid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown event type %q", input.EventType))
	}
	if !input.Operation.IsValid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown operation %q", input.Operation))
	}
	if input.Scope.ProjectID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "project id is required")
	}
	if input.Scope.GraphName == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "graph name is required")
	}
	if input.EntityType == "" || input.EntityID == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "entity type and entity id are required")
	}
	if len(input.Payload) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "payload is required")
	}

	now := time.Now()
	key := input.IdempotencyKey
	if key == "" {
		key = domain.DeriveIdempotencyKey(input.EntityType, input.EntityID, now) + keySuffix
	}

	return &domain.OutboxEvent{
		ID:             uuid.Must(uuid.NewV7()),
		IdempotencyKey: key,
		EventType:      input.EventType,
		Operation:      input.Operation,
		Scope:          input.Scope,
		EntityType:     input.EntityType,
		EntityID:       input.EntityID,
		Payload:        input.Payload,
		SyncQuery:      input.SyncQuery,
		SyncParams:     input.SyncParams,
		Status:         domain.OutboxEventStatusPending,
	}, nil
}
