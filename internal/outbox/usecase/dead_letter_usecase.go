package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/database"
	"github.com/ederbit/fanout/internal/outbox/domain"
)

// deadLetterUseCase implements the DeadLetterUseCase interface.
type deadLetterUseCase struct {
	txManager      database.TxManager
	eventRepo      OutboxEventRepository
	deadLetterRepo DeadLetterRepository
	syncStatusRepo SyncStatusRepository
}

// NewDeadLetterUseCase creates a new DeadLetterUseCase.
func NewDeadLetterUseCase(
	txManager database.TxManager,
	eventRepo OutboxEventRepository,
	deadLetterRepo DeadLetterRepository,
	syncStatusRepo SyncStatusRepository,
) DeadLetterUseCase {
	return &deadLetterUseCase{
		txManager:      txManager,
		eventRepo:      eventRepo,
		deadLetterRepo: deadLetterRepo,
		syncStatusRepo: syncStatusRepo,
	}
}

// List retrieves dead letters, newest first.
func (u *deadLetterUseCase) List(
	ctx context.Context,
	scope *domain.TargetScope,
	unresolvedOnly bool,
	offset, limit int,
) ([]*domain.DeadLetterEvent, error) {
	return u.deadLetterRepo.List(ctx, scope, unresolvedOnly, offset, limit)
}

// Resolve marks a dead letter handled. Resolving an already-resolved dead
// letter returns the existing resolution unchanged.
func (u *deadLetterUseCase) Resolve(
	ctx context.Context,
	id uuid.UUID,
	resolvedBy string,
	notes *string,
) (*domain.DeadLetterEvent, error) {
	return u.deadLetterRepo.Resolve(ctx, id, resolvedBy, notes, time.Now())
}

// Retry requeues the event referenced by a dead letter with a fresh retry
// budget and resolves the dead letter, all in one transaction. Retrying a
// resolved dead letter is rejected to avoid double requeues.
func (u *deadLetterUseCase) Retry(
	ctx context.Context,
	id uuid.UUID,
	retriedBy string,
) (*domain.DeadLetterEvent, error) {
	var resolved *domain.DeadLetterEvent

	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		deadLetter, err := u.deadLetterRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if deadLetter.Resolved {
			return domain.ErrDeadLetterResolved
		}

		event, err := u.eventRepo.GetByID(ctx, deadLetter.OutboxEventID)
		if err != nil {
			return err
		}

		// Reset the event so the processor picks it up again.
		event.Status = domain.OutboxEventStatusPending
		event.Attempts = 0
		event.LastError = nil
		event.NextRetryAt = nil
		event.ProcessedAt = nil
		if err := u.eventRepo.Update(ctx, event); err != nil {
			return err
		}

		// The event re-enters the deliverable pool for its scope.
		if err := u.syncStatusRepo.Adjust(ctx, event.Scope, 1); err != nil {
			return err
		}

		notes := "retried manually"
		resolved, err = u.deadLetterRepo.Resolve(ctx, id, retriedBy, &notes, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}
