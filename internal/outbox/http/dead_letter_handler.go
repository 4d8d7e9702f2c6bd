package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ederbit/fanout/internal/httputil"
	"github.com/ederbit/fanout/internal/outbox/http/dto"
	"github.com/ederbit/fanout/internal/outbox/usecase"
	customValidation "github.com/ederbit/fanout/internal/validation"
)

// DeadLetterHandler handles HTTP requests for dead letter management.
type DeadLetterHandler struct {
	deadLetterUseCase usecase.DeadLetterUseCase
	logger            *slog.Logger
}

// NewDeadLetterHandler creates a new dead letter handler with required dependencies.
func NewDeadLetterHandler(
	deadLetterUseCase usecase.DeadLetterUseCase,
	logger *slog.Logger,
) *DeadLetterHandler {
	return &DeadLetterHandler{
		deadLetterUseCase: deadLetterUseCase,
		logger:            logger,
	}
}

// ListHandler retrieves dead letters with pagination support.
// GET /v1/dead-letters?project_id=&graph_name=&unresolved_only=&offset=&limit=
// Returns 200 OK.
func (h *DeadLetterHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	scope, err := parseOptionalScope(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	unresolvedOnly := false
	if raw := c.Query("unresolved_only"); raw != "" {
		unresolvedOnly, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.HandleValidationErrorGin(
				c,
				fmt.Errorf("invalid unresolved_only parameter: must be a boolean"),
				h.logger,
			)
			return
		}
	}

	deadLetters, err := h.deadLetterUseCase.List(c.Request.Context(), scope, unresolvedOnly, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapToDeadLetterListResponse(deadLetters, offset, limit))
}

// ResolveHandler marks a dead letter as handled.
// POST /v1/dead-letters/:id/resolve
// Returns 200 OK; resolving an already-resolved dead letter is a no-op.
func (h *DeadLetterHandler) ResolveHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.ResolveDeadLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	deadLetter, err := h.deadLetterUseCase.Resolve(c.Request.Context(), id, req.ResolvedBy, req.Notes)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapToDeadLetterResponse(deadLetter))
}

// RetryHandler requeues a dead-lettered event with a fresh retry budget.
// POST /v1/dead-letters/:id/retry
// Returns 200 OK; retrying a resolved dead letter returns 409 Conflict.
func (h *DeadLetterHandler) RetryHandler(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	var req dto.RetryDeadLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	deadLetter, err := h.deadLetterUseCase.Retry(c.Request.Context(), id, req.RetriedBy)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapToDeadLetterResponse(deadLetter))
}

// parseIDParam parses the :id URL parameter as a UUID.
func parseIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id parameter: %w", err)
	}
	return id, nil
}
