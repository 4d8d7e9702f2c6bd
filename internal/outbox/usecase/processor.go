package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ederbit/fanout/internal/outbox/domain"
)

// ProcessorConfig holds the outbox processor loop configuration.
type ProcessorConfig struct {
	Interval time.Duration
}

// Processor polls the outbox for claimable events and drives them through the
// configured EventProcessor. Claiming uses row locks, so multiple processor
// instances can run side by side without double delivery.
type Processor struct {
	config         ProcessorConfig
	outboxUseCase  OutboxUseCase
	syncStatusRepo SyncStatusRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
}

// NewProcessor creates a new Processor.
func NewProcessor(
	config ProcessorConfig,
	outboxUseCase OutboxUseCase,
	syncStatusRepo SyncStatusRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		config:         config,
		outboxUseCase:  outboxUseCase,
		syncStatusRepo: syncStatusRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
	}
}

// Start runs the processing loop until the context is canceled.
func (p *Processor) Start(ctx context.Context) error {
	if p.logger != nil {
		p.logger.Info("starting outbox event processor",
			slog.Duration("interval", p.config.Interval),
		)
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if p.logger != nil {
				p.logger.Info("stopping outbox event processor")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to process events", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessBatch claims one batch of events and processes each in turn. The
// claim commits before processing starts, so a slow downstream call never
// holds row locks; crashed claims are recovered by the retry schedule.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	events, err := p.outboxUseCase.ClaimBatch(ctx)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	if p.logger != nil {
		p.logger.Info("processing events", slog.Int("count", len(events)))
	}

	for _, event := range events {
		if err := p.eventProcessor.Process(ctx, event); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to process event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", string(event.EventType)),
					slog.Int("attempts", event.Attempts+1),
					slog.Any("error", err),
				)
			}

			if markErr := p.outboxUseCase.MarkFailed(ctx, event, err); markErr != nil {
				return markErr
			}
			continue
		}

		if err := p.outboxUseCase.MarkCompleted(ctx, event.ID); err != nil {
			return err
		}

		// Consumer bookkeeping: completion itself never touches the pending
		// counter, the processor decrements it after a finished delivery.
		// Best effort, the counter is documented approximate.
		if err := p.syncStatusRepo.Adjust(ctx, event.Scope, -1); err != nil {
			if p.logger != nil {
				p.logger.Warn("failed to decrement pending counter",
					slog.String("event_id", event.ID.String()),
					slog.Any("error", err),
				)
			}
		}
	}

	return nil
}

// LoggingEventProcessor is an EventProcessor that only logs events. It serves
// as the terminal processor when no downstream consumer is configured.
type LoggingEventProcessor struct {
	logger *slog.Logger
}

// NewLoggingEventProcessor creates a new LoggingEventProcessor.
func NewLoggingEventProcessor(logger *slog.Logger) *LoggingEventProcessor {
	return &LoggingEventProcessor{
		logger: logger,
	}
}

// Process logs the event payload.
func (p *LoggingEventProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	if p.logger != nil {
		p.logger.Info("outbox event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", string(event.EventType)),
			slog.String("operation", string(event.Operation)),
			slog.String("entity_type", event.EntityType),
			slog.String("entity_id", event.EntityID),
		)
	}

	return nil
}

// ChainEventProcessor runs multiple processors in order, stopping at the
// first error. It lets the graph-sync consumer and the webhook fan-out both
// observe the same event.
type ChainEventProcessor struct {
	processors []EventProcessor
}

// NewChainEventProcessor creates a new ChainEventProcessor.
func NewChainEventProcessor(processors ...EventProcessor) *ChainEventProcessor {
	return &ChainEventProcessor{
		processors: processors,
	}
}

// Process runs each processor in order.
func (p *ChainEventProcessor) Process(ctx context.Context, event *domain.OutboxEvent) error {
	for _, processor := range p.processors {
		if err := processor.Process(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
