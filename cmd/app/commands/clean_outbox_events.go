package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ederbit/fanout/internal/app"
	"github.com/ederbit/fanout/internal/config"
)

// RunCleanOutboxEvents deletes completed outbox events older than the specified
// number of days. A days value of zero falls back to the configured retention
// window. Supports both text/JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunCleanOutboxEvents(ctx context.Context, days int, format string) error {
	// Validate days parameter
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}

	// Load configuration
	cfg := config.Load()

	if days == 0 {
		days = cfg.OutboxCleanupDays
	}

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("cleaning outbox events", slog.Int("days", days))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get outbox use case from container
	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	count, err := outboxUseCase.Cleanup(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to clean outbox events: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputCleanJSON(count, days)
	} else {
		outputCleanText(count, days)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
	)

	return nil
}

// outputCleanText outputs the result in human-readable text format.
func outputCleanText(count int64, days int) {
	fmt.Printf("Successfully deleted %d completed event(s) older than %d day(s)\n", count, days)
}

// outputCleanJSON outputs the result in JSON format for machine consumption.
func outputCleanJSON(count int64, days int) {
	result := map[string]interface{}{
		"count": count,
		"days":  days,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
