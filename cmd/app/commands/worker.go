package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ederbit/fanout/internal/app"
	"github.com/ederbit/fanout/internal/config"
)

// RunWorker starts the outbox processor and the webhook retry processor under a
// shared context. Blocks until receiving SIGINT/SIGTERM or until one of the
// processors fails, in which case the other is stopped through context
// cancellation.
func RunWorker(ctx context.Context, version string) error {
	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	outboxProcessor, err := container.OutboxProcessor()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox processor: %w", err)
	}

	retryProcessor, err := container.WebhookRetryProcessor()
	if err != nil {
		return fmt.Errorf("failed to initialize webhook retry processor: %w", err)
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return outboxProcessor.Start(groupCtx)
	})

	group.Go(func() error {
		return retryProcessor.Start(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker error: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}
