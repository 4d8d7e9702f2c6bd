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

// RunCreateWebhook registers a new webhook endpoint and prints its generated
// signing secret. The secret is only shown once; afterwards it can only be
// replaced through regeneration.
//
// Requirements: Database must be migrated and accessible.
func RunCreateWebhook(ctx context.Context, projectID, name, url string, events []string, format string) error {
	parsedProjectID, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("invalid project id: %w", err)
	}

	// Load configuration
	cfg := config.Load()

	// Create DI container
	container := app.NewContainer(cfg)

	// Get logger from container
	logger := container.Logger()
	logger.Info("creating webhook",
		slog.String("project_id", projectID),
		slog.String("name", name),
	)

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	// Get webhook use case from container
	webhookUseCase, err := container.WebhookUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize webhook use case: %w", err)
	}

	webhook, err := webhookUseCase.Create(ctx, &domain.CreateWebhookInput{
		ProjectID: parsedProjectID,
		Name:      name,
		URL:       url,
		Events:    events,
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputWebhookJSON(webhook)
	} else {
		outputWebhookText(webhook)
	}

	logger.Info("webhook created", slog.String("webhook_id", webhook.ID.String()))

	return nil
}

// outputWebhookText outputs the created webhook in human-readable text format.
func outputWebhookText(webhook *domain.Webhook) {
	fmt.Printf("Webhook created successfully\n")
	fmt.Printf("ID:      %s\n", webhook.ID)
	fmt.Printf("Name:    %s\n", webhook.Name)
	fmt.Printf("URL:     %s\n", webhook.URL)
	fmt.Printf("Events:  %v\n", webhook.Events)
	fmt.Printf("Secret:  %s\n", webhook.Secret)
	fmt.Println("Store the secret now: it will not be shown again.")
}

// outputWebhookJSON outputs the created webhook in JSON format for machine consumption.
func outputWebhookJSON(webhook *domain.Webhook) {
	result := map[string]interface{}{
		"id":     webhook.ID.String(),
		"name":   webhook.Name,
		"url":    webhook.URL,
		"events": webhook.Events,
		"secret": webhook.Secret,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
