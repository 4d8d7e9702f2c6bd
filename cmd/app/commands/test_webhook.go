package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/app"
	"github.com/ederbit/fanout/internal/config"
	"github.com/ederbit/fanout/internal/webhook/domain"
)

// RunTestWebhook sends a synthetic test event through the delivery path of the
// given webhook and prints the recorded attempt.
//
// Requirements: Database must be migrated and accessible.
func RunTestWebhook(ctx context.Context, id, format string) error {
	webhookID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid webhook id: %w", err)
	}

	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("testing webhook", slog.String("webhook_id", id))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get delivery use case from container
	deliveryUseCase, err := container.DeliveryUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize delivery use case: %w", err)
	}

	delivery, err := deliveryUseCase.TestWebhook(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("failed to test webhook: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputDeliveryJSON(delivery)
	} else {
		outputDeliveryText(delivery)
	}

	return nil
}

// outputDeliveryText outputs the delivery attempt in human-readable text format.
func outputDeliveryText(delivery *domain.Delivery) {
	fmt.Printf("Delivery ID: %s\n", delivery.ID)
	fmt.Printf("Status:      %s\n", delivery.Status)
	if delivery.ResponseStatusCode != nil {
		fmt.Printf("HTTP status: %d\n", *delivery.ResponseStatusCode)
	}
	if delivery.ResponseTimeMs != nil {
		fmt.Printf("Duration:    %dms\n", *delivery.ResponseTimeMs)
	}
	if delivery.ErrorMessage != nil {
		fmt.Printf("Error:       %s\n", *delivery.ErrorMessage)
	}
}

// outputDeliveryJSON outputs the delivery attempt in JSON format for machine consumption.
func outputDeliveryJSON(delivery *domain.Delivery) {
	result := map[string]interface{}{
		"delivery_id": delivery.ID.String(),
		"status":      string(delivery.Status),
	}
	if delivery.ResponseStatusCode != nil {
		result["response_status_code"] = *delivery.ResponseStatusCode
	}
	if delivery.ResponseTimeMs != nil {
		result["response_time_ms"] = *delivery.ResponseTimeMs
	}
	if delivery.ErrorMessage != nil {
		result["error_message"] = *delivery.ErrorMessage
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
