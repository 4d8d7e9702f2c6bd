package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks the approximate number of pending events for one
// (project, graph) scope. The counter is maintained best-effort for dashboard
// display and must not be used for correctness-critical decisions: it is
// incremented on enqueue and decremented by the consumer's own bookkeeping,
// not by event completion itself.
type SyncStatus struct {
	ProjectID    uuid.UUID
	GraphName    string
	PendingCount int64
	UpdatedAt    time.Time
}
