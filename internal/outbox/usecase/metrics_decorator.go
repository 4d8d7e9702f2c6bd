package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/metrics"
	"github.com/ederbit/fanout/internal/outbox/domain"
)

// outboxUseCaseWithMetrics decorates OutboxUseCase with metrics instrumentation.
type outboxUseCaseWithMetrics struct {
	next    OutboxUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxUseCaseWithMetrics wraps an OutboxUseCase with metrics recording.
func NewOutboxUseCaseWithMetrics(useCase OutboxUseCase, m metrics.BusinessMetrics) OutboxUseCase {
	return &outboxUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record reports one operation outcome with its duration.
func (u *outboxUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "outbox", operation, status)
	u.metrics.RecordDuration(ctx, "outbox", operation, time.Since(start), status)
}

func (u *outboxUseCaseWithMetrics) AddEvent(
	ctx context.Context,
	input *domain.AddEventInput,
) (*domain.AddEventOutput, error) {
	start := time.Now()
	output, err := u.next.AddEvent(ctx, input)
	u.record(ctx, "add_event", start, err)
	return output, err
}

func (u *outboxUseCaseWithMetrics) AddBatch(
	ctx context.Context,
	inputs []*domain.AddEventInput,
) ([]*domain.AddEventOutput, error) {
	start := time.Now()
	outputs, err := u.next.AddBatch(ctx, inputs)
	u.record(ctx, "add_batch", start, err)
	return outputs, err
}

func (u *outboxUseCaseWithMetrics) ClaimBatch(ctx context.Context) ([]*domain.OutboxEvent, error) {
	start := time.Now()
	events, err := u.next.ClaimBatch(ctx)
	u.record(ctx, "claim_batch", start, err)
	return events, err
}

func (u *outboxUseCaseWithMetrics) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := u.next.MarkCompleted(ctx, id)
	u.record(ctx, "mark_completed", start, err)
	return err
}

func (u *outboxUseCaseWithMetrics) MarkFailed(
	ctx context.Context,
	event *domain.OutboxEvent,
	procErr error,
) error {
	start := time.Now()
	err := u.next.MarkFailed(ctx, event, procErr)
	u.record(ctx, "mark_failed", start, err)
	return err
}

func (u *outboxUseCaseWithMetrics) GetStats(
	ctx context.Context,
	scope *domain.TargetScope,
) (*domain.StatusCounts, error) {
	start := time.Now()
	counts, err := u.next.GetStats(ctx, scope)
	u.record(ctx, "get_stats", start, err)
	return counts, err
}

func (u *outboxUseCaseWithMetrics) GetSyncStatus(
	ctx context.Context,
	scope domain.TargetScope,
) (*domain.SyncStatus, error) {
	start := time.Now()
	status, err := u.next.GetSyncStatus(ctx, scope)
	u.record(ctx, "get_sync_status", start, err)
	return status, err
}

func (u *outboxUseCaseWithMetrics) ListSyncStatuses(
	ctx context.Context,
	projectID uuid.UUID,
) ([]*domain.SyncStatus, error) {
	start := time.Now()
	statuses, err := u.next.ListSyncStatuses(ctx, projectID)
	u.record(ctx, "list_sync_statuses", start, err)
	return statuses, err
}

func (u *outboxUseCaseWithMetrics) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	start := time.Now()
	deleted, err := u.next.Cleanup(ctx, olderThan)
	u.record(ctx, "cleanup", start, err)
	return deleted, err
}
