// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/ederbit/fanout/internal/outbox/domain"
)

// IngestEventResponse reports the outcome of an idempotent enqueue plus the
// webhook fan-out it triggered.
type IngestEventResponse struct {
	Success           bool   `json:"success"`
	EventID           string `json:"event_id"`
	Duplicate         bool   `json:"duplicate"`
	WebhookDeliveries int    `json:"webhook_deliveries"`
}

// MapToIngestResponse converts an enqueue outcome to an API response.
func MapToIngestResponse(output *domain.AddEventOutput, deliveries int) IngestEventResponse {
	return IngestEventResponse{
		Success:           true,
		EventID:           output.ID.String(),
		Duplicate:         output.Duplicate,
		WebhookDeliveries: deliveries,
	}
}

// IngestBatchResponse reports the per-event outcomes of a batch enqueue.
type IngestBatchResponse struct {
	Success bool                 `json:"success"`
	Events  []IngestEventOutcome `json:"events"`
}

// IngestEventOutcome is one event's outcome within a batch response.
type IngestEventOutcome struct {
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// MapToIngestBatchResponse converts batch enqueue outcomes to an API response.
func MapToIngestBatchResponse(outputs []*domain.AddEventOutput) IngestBatchResponse {
	outcomes := make([]IngestEventOutcome, len(outputs))
	for i, output := range outputs {
		outcomes[i] = IngestEventOutcome{
			EventID:   output.ID.String(),
			Duplicate: output.Duplicate,
		}
	}
	return IngestBatchResponse{Success: true, Events: outcomes}
}

// StatsResponse carries per-status outbox event counts.
type StatsResponse struct {
	Success    bool  `json:"success"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	DeadLetter int64 `json:"dead_letter"`
}

// MapToStatsResponse converts status counts to an API response.
func MapToStatsResponse(counts *domain.StatusCounts) StatsResponse {
	return StatsResponse{
		Success:    true,
		Pending:    counts.Pending,
		Processing: counts.Processing,
		Completed:  counts.Completed,
		Failed:     counts.Failed,
		DeadLetter: counts.DeadLetter,
	}
}

// SyncStatusResponse carries the approximate pending counter for one scope.
// The counter is best-effort; updated_at makes staleness visible to dashboards.
type SyncStatusResponse struct {
	Success      bool             `json:"success"`
	ProjectID    string           `json:"project_id"`
	GraphName    string           `json:"graph_name"`
	PendingCount int64            `json:"pending_count"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Statuses     []SyncStatusItem `json:"statuses,omitempty"`
}

// SyncStatusItem is one scope's counter within a list response.
type SyncStatusItem struct {
	ProjectID    string    `json:"project_id"`
	GraphName    string    `json:"graph_name"`
	PendingCount int64     `json:"pending_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MapToSyncStatusResponse converts a single scope counter to an API response.
func MapToSyncStatusResponse(status *domain.SyncStatus) SyncStatusResponse {
	return SyncStatusResponse{
		Success:      true,
		ProjectID:    status.ProjectID.String(),
		GraphName:    status.GraphName,
		PendingCount: status.PendingCount,
		UpdatedAt:    status.UpdatedAt,
	}
}

// SyncStatusListResponse carries every scope counter of a project.
type SyncStatusListResponse struct {
	Success  bool             `json:"success"`
	Statuses []SyncStatusItem `json:"statuses"`
}

// MapToSyncStatusListResponse converts project counters to an API response.
func MapToSyncStatusListResponse(statuses []*domain.SyncStatus) SyncStatusListResponse {
	items := make([]SyncStatusItem, len(statuses))
	for i, status := range statuses {
		items[i] = SyncStatusItem{
			ProjectID:    status.ProjectID.String(),
			GraphName:    status.GraphName,
			PendingCount: status.PendingCount,
			UpdatedAt:    status.UpdatedAt,
		}
	}
	return SyncStatusListResponse{Success: true, Statuses: items}
}

// DeadLetterResponse represents a dead letter in API responses.
type DeadLetterResponse struct {
	Success         bool       `json:"success"`
	ID              string     `json:"id"`
	OutboxEventID   string     `json:"outbox_event_id"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// MapToDeadLetterResponse converts a domain dead letter to an API response.
func MapToDeadLetterResponse(deadLetter *domain.DeadLetterEvent) DeadLetterResponse {
	return DeadLetterResponse{
		Success:         true,
		ID:              deadLetter.ID.String(),
		OutboxEventID:   deadLetter.OutboxEventID.String(),
		Resolved:        deadLetter.Resolved,
		ResolvedBy:      deadLetter.ResolvedBy,
		ResolutionNotes: deadLetter.ResolutionNotes,
		CreatedAt:       deadLetter.CreatedAt,
		ResolvedAt:      deadLetter.ResolvedAt,
	}
}

// DeadLetterItem is one dead letter within a list response.
type DeadLetterItem struct {
	ID              string     `json:"id"`
	OutboxEventID   string     `json:"outbox_event_id"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// DeadLetterListResponse carries a page of dead letters.
type DeadLetterListResponse struct {
	Success     bool             `json:"success"`
	DeadLetters []DeadLetterItem `json:"dead_letters"`
	Offset      int              `json:"offset"`
	Limit       int              `json:"limit"`
}

// MapToDeadLetterListResponse converts domain dead letters to a paginated API response.
func MapToDeadLetterListResponse(deadLetters []*domain.DeadLetterEvent, offset, limit int) DeadLetterListResponse {
	items := make([]DeadLetterItem, len(deadLetters))
	for i, deadLetter := range deadLetters {
		items[i] = DeadLetterItem{
			ID:              deadLetter.ID.String(),
			OutboxEventID:   deadLetter.OutboxEventID.String(),
			Resolved:        deadLetter.Resolved,
			ResolvedBy:      deadLetter.ResolvedBy,
			ResolutionNotes: deadLetter.ResolutionNotes,
			CreatedAt:       deadLetter.CreatedAt,
			ResolvedAt:      deadLetter.ResolvedAt,
		}
	}
	return DeadLetterListResponse{
		Success:     true,
		DeadLetters: items,
		Offset:      offset,
		Limit:       limit,
	}
}
