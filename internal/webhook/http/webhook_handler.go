// Package http provides HTTP handlers for webhook registry management and
// delivery inspection.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/httputil"
	customValidation "github.com/ederbit/fanout/internal/validation"
	"github.com/ederbit/fanout/internal/webhook/http/dto"
	"github.com/ederbit/fanout/internal/webhook/usecase"
)

// WebhookHandler handles HTTP requests for webhook registry operations.
type WebhookHandler struct {
	webhookUseCase  usecase.WebhookUseCase
	deliveryUseCase usecase.DeliveryUseCase
	logger          *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with required dependencies.
func NewWebhookHandler(
	webhookUseCase usecase.WebhookUseCase,
	deliveryUseCase usecase.DeliveryUseCase,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		webhookUseCase:  webhookUseCase,
		deliveryUseCase: deliveryUseCase,
		logger:          logger,
	}
}

// CreateHandler registers a new webhook.
// POST /v1/webhooks
// Returns 201 Created; the response is the only read of the plaintext secret.
func (h *WebhookHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	webhook, err := h.webhookUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapWebhookToResponseWithSecret(webhook))
}

// GetHandler retrieves a webhook by ID.
// GET /v1/webhooks/:id
// Returns 200 OK without the signing secret.
func (h *WebhookHandler) GetHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	webhook, err := h.webhookUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWebhookToResponse(webhook))
}

// ListHandler retrieves a project's webhooks with pagination support.
// GET /v1/webhooks?project_id=&offset=&limit=
// Returns 200 OK.
func (h *WebhookHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid project_id parameter: %w", err),
			h.logger,
		)
		return
	}

	webhooks, err := h.webhookUseCase.List(c.Request.Context(), projectID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWebhooksToListResponse(webhooks, offset, limit))
}

// UpdateHandler applies the mutable-field allowlist to a webhook.
// PUT /v1/webhooks/:id
// Returns 200 OK.
func (h *WebhookHandler) UpdateHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	webhook, err := h.webhookUseCase.Update(c.Request.Context(), id, req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWebhookToResponse(webhook))
}

// DeleteHandler removes a webhook and its delivery history.
// DELETE /v1/webhooks/:id
// Returns 204 No Content. Use PUT with is_active=false to pause deliveries
// without losing the ledger.
func (h *WebhookHandler) DeleteHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.webhookUseCase.Delete(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RegenerateSecretHandler replaces the webhook's signing secret.
// POST /v1/webhooks/:id/regenerate-secret
// Returns 200 OK with the new plaintext secret.
func (h *WebhookHandler) RegenerateSecretHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	webhook, err := h.webhookUseCase.RegenerateSecret(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWebhookToResponseWithSecret(webhook))
}

// ListDeliveriesHandler retrieves a webhook's delivery history, newest first.
// GET /v1/webhooks/:id/deliveries?offset=&limit=
// Returns 200 OK.
func (h *WebhookHandler) ListDeliveriesHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	deliveries, err := h.webhookUseCase.ListDeliveries(c.Request.Context(), id, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDeliveriesToListResponse(deliveries, offset, limit))
}

// TestHandler sends a synthetic test event through the delivery path.
// POST /v1/webhooks/:id/test
// Returns 200 OK with the resulting delivery record.
func (h *WebhookHandler) TestHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	delivery, err := h.deliveryUseCase.TestWebhook(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDeliveryToResponse(delivery))
}

// parseIDParam parses the :id URL parameter as a UUID.
func parseIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id parameter: %w", err)
	}
	return id, nil
}
