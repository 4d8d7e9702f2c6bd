// Package http provides HTTP handlers for the event delivery pipeline: outbox
// ingestion, pipeline statistics and dead-letter management.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/httputil"
	"github.com/ederbit/fanout/internal/outbox/domain"
	"github.com/ederbit/fanout/internal/outbox/http/dto"
	"github.com/ederbit/fanout/internal/outbox/usecase"
	customValidation "github.com/ederbit/fanout/internal/validation"
	webhookUseCase "github.com/ederbit/fanout/internal/webhook/usecase"
)

// EventHandler handles HTTP requests for event ingestion and pipeline status.
// Ingestion writes the durable outbox record and then fans the event out to
// registered webhooks; a webhook failure never rolls back the outbox write.
type EventHandler struct {
	outboxUseCase   usecase.OutboxUseCase
	deliveryUseCase webhookUseCase.DeliveryUseCase
	logger          *slog.Logger
}

// NewEventHandler creates a new event handler with required dependencies.
func NewEventHandler(
	outboxUseCase usecase.OutboxUseCase,
	deliveryUseCase webhookUseCase.DeliveryUseCase,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		outboxUseCase:   outboxUseCase,
		deliveryUseCase: deliveryUseCase,
		logger:          logger,
	}
}

// IngestHandler enqueues a domain change and triggers webhook fan-out.
// POST /v1/events
// Returns 201 Created; duplicates are reported, not rejected.
func (h *EventHandler) IngestHandler(c *gin.Context) {
	var req dto.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input := req.ToInput()
	output, err := h.outboxUseCase.AddEvent(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	// Webhook fan-out is best-effort relative to the outbox write: the event
	// is durably stored at this point, and every delivery attempt lands in
	// the delivery ledger regardless of outcome.
	deliveries, err := h.deliveryUseCase.Trigger(
		c.Request.Context(),
		input.Scope.ProjectID,
		string(input.EventType),
		input.Payload,
	)
	if err != nil && h.logger != nil {
		h.logger.Error("webhook fan-out failed",
			slog.String("event_id", output.ID.String()),
			slog.Any("error", err),
		)
	}

	c.JSON(http.StatusCreated, dto.MapToIngestResponse(output, len(deliveries)))
}

// IngestBatchHandler enqueues multiple domain changes in one transaction.
// POST /v1/events/batch
// Returns 201 Created with per-event outcomes.
func (h *EventHandler) IngestBatchHandler(c *gin.Context) {
	var req dto.IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}
	for i := range req.Events {
		if err := req.Events[i].Validate(); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}
	}

	inputs := make([]*domain.AddEventInput, len(req.Events))
	for i := range req.Events {
		inputs[i] = req.Events[i].ToInput()
	}

	outputs, err := h.outboxUseCase.AddBatch(c.Request.Context(), inputs)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapToIngestBatchResponse(outputs))
}

// StatsHandler returns per-status outbox event counts.
// GET /v1/outbox/stats?project_id=&graph_name= (scope optional)
// Returns 200 OK.
func (h *EventHandler) StatsHandler(c *gin.Context) {
	scope, err := parseOptionalScope(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	counts, err := h.outboxUseCase.GetStats(c.Request.Context(), scope)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapToStatsResponse(counts))
}

// SyncStatusHandler returns the approximate pending counter for one scope, or
// every counter of a project when graph_name is omitted.
// GET /v1/sync-status?project_id=&graph_name=
// Returns 200 OK.
func (h *EventHandler) SyncStatusHandler(c *gin.Context) {
	projectIDStr := c.Query("project_id")
	if projectIDStr == "" {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("project_id parameter is required"),
			h.logger,
		)
		return
	}
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid project_id parameter: %w", err),
			h.logger,
		)
		return
	}

	graphName := c.Query("graph_name")
	if graphName == "" {
		statuses, err := h.outboxUseCase.ListSyncStatuses(c.Request.Context(), projectID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		c.JSON(http.StatusOK, dto.MapToSyncStatusListResponse(statuses))
		return
	}

	status, err := h.outboxUseCase.GetSyncStatus(c.Request.Context(), domain.TargetScope{
		ProjectID: projectID,
		GraphName: graphName,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapToSyncStatusResponse(status))
}

// parseOptionalScope reads the project_id/graph_name query pair. Both must be
// present to form a scope; both absent means no filtering.
func parseOptionalScope(c *gin.Context) (*domain.TargetScope, error) {
	projectIDStr := c.Query("project_id")
	graphName := c.Query("graph_name")

	if projectIDStr == "" && graphName == "" {
		return nil, nil
	}
	if projectIDStr == "" || graphName == "" {
		return nil, fmt.Errorf("project_id and graph_name must be provided together")
	}

	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project_id parameter: %w", err)
	}

	return &domain.TargetScope{ProjectID: projectID, GraphName: graphName}, nil
}
