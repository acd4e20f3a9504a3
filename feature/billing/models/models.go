package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncStatus is the local sync state of a billing entry.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// QueueAction is the operation a queue item requests against a platform.
type QueueAction string

const (
	ActionCreate QueueAction = "create"
	ActionUpdate QueueAction = "update"
	ActionDelete QueueAction = "delete"
)

// QueueStatus is the lifecycle state of a sync queue item.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// HistoryStatus is the outcome recorded in a sync history row.
type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryFailure HistoryStatus = "failure"
)

// ConflictType classifies a detected divergence.
type ConflictType string

const (
	ConflictDataMismatch     ConflictType = "data_mismatch"
	ConflictDuplicateEntry   ConflictType = "duplicate_entry"
	ConflictMissingReference ConflictType = "missing_reference"
	ConflictValidationError  ConflictType = "validation_error"
)

// ConflictStatus is the lifecycle state of a conflict. Transitions are
// one-way: pending may become resolved or ignored, never the reverse.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
	ConflictIgnored  ConflictStatus = "ignored"
)

// BillingEntry is the canonical local record of billable legal work.
// Entries are never deleted by the sync core; a remote delete is a distinct
// queued action.
type BillingEntry struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Description string     `gorm:"size:2048" json:"description"`
	TimeSpent   float64    `json:"time_spent"`
	HourlyRate  float64    `json:"hourly_rate"`
	Client      string     `gorm:"size:128;index" json:"client"`
	Matter      string     `gorm:"size:128;index" json:"matter"`
	WorkType    string     `gorm:"size:64" json:"work_type"`
	WorkDate    time.Time  `gorm:"index" json:"work_date"`
	UserID      string     `gorm:"size:64" json:"user_id"`
	SyncStatus  SyncStatus `gorm:"size:16;default:pending;index" json:"sync_status"`
	// ExternalID is the remote-assigned id after a successful create.
	ExternalID string `gorm:"size:128" json:"external_id,omitempty"`
	// Platform is the platform the entry was last synced to.
	Platform string `gorm:"size:32" json:"platform,omitempty"`
	// Metadata carries platform-native ids and audit timestamps as an
	// opaque bag preserved across mapping round trips.
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SyncQueueItem is a durable unit of pending work targeting one billing
// entry on one platform. At most one non-terminal item may exist per
// (BillingEntryID, Platform) pair; re-enqueuing collapses into it.
type SyncQueueItem struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	BillingEntryID string      `gorm:"size:36;index:idx_queue_entry_platform" json:"billing_entry_id"`
	Platform       string      `gorm:"size:32;index:idx_queue_entry_platform" json:"platform"`
	Action         QueueAction `gorm:"size:16" json:"action"`
	Status         QueueStatus `gorm:"size:16;default:queued;index" json:"status"`
	Attempts       int         `json:"attempts"`
	LastError      string      `gorm:"size:2048" json:"last_error,omitempty"`
	// ScheduledAt is the earliest time the dispatcher may pick the item up;
	// retries push it into the future.
	ScheduledAt time.Time `gorm:"index" json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal reports whether the item has finished its lifecycle.
func (i *SyncQueueItem) IsTerminal() bool {
	return i.Status == QueueStatusCompleted || i.Status == QueueStatusFailed
}

// MarkProcessing transitions the item to processing.
func (i *SyncQueueItem) MarkProcessing() {
	i.Status = QueueStatusProcessing
	i.UpdatedAt = time.Now()
}

// MarkCompleted transitions the item to completed and clears the last error.
func (i *SyncQueueItem) MarkCompleted() {
	i.Status = QueueStatusCompleted
	i.LastError = ""
	i.UpdatedAt = time.Now()
}

// MarkFailed transitions the item to terminal failure, preserving the error.
func (i *SyncQueueItem) MarkFailed(errMsg string) {
	i.Status = QueueStatusFailed
	i.LastError = errMsg
	i.UpdatedAt = time.Now()
}

// Reschedule sends the item back to queued with a new pickup time.
func (i *SyncQueueItem) Reschedule(at time.Time, errMsg string) {
	i.Status = QueueStatusQueued
	i.LastError = errMsg
	i.ScheduledAt = at
	i.UpdatedAt = time.Now()
}

// SyncHistory is one append-only audit row per attempted operation.
// Rows are never mutated after creation and are purgeable by age.
type SyncHistory struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	BillingEntryID string        `gorm:"size:36;index" json:"billing_entry_id"`
	Platform       string        `gorm:"size:32;index" json:"platform"`
	Action         QueueAction   `gorm:"size:16" json:"action"`
	Status         HistoryStatus `gorm:"size:16;index" json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `gorm:"index" json:"completed_at"`
	Error          string        `gorm:"size:2048" json:"error,omitempty"`
}

// Conflict is a persisted divergence between a local billing entry field and
// its remote counterpart, or a suspected duplicate record.
type Conflict struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	BillingEntryID string         `gorm:"size:36;index" json:"billing_entry_id"`
	Platform       string         `gorm:"size:32;index" json:"platform"`
	Field          string         `gorm:"size:64" json:"field"`
	SourceValue    datatypes.JSON `json:"source_value"`
	TargetValue    datatypes.JSON `json:"target_value"`
	ConflictType   ConflictType   `gorm:"size:32;index" json:"conflict_type"`
	DetectedAt     time.Time      `gorm:"index" json:"detected_at"`
	Status         ConflictStatus `gorm:"size:16;default:pending;index" json:"status"`
	// SourceUpdatedAt/TargetUpdatedAt carry each side's last-modified
	// timestamp when known; latest_wins falls back to the source value
	// whenever the target timestamp is absent.
	SourceUpdatedAt    *time.Time `json:"source_updated_at,omitempty"`
	TargetUpdatedAt    *time.Time `json:"target_updated_at,omitempty"`
	ResolutionStrategy string     `gorm:"size:32" json:"resolution_strategy,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy         string     `gorm:"size:64" json:"resolved_by,omitempty"`
}

// MarkResolved transitions the conflict to resolved. It refuses to reopen a
// terminal conflict, preserving the one-way transition invariant.
func (c *Conflict) MarkResolved(strategy, resolvedBy string) bool {
	if c.Status != ConflictPending {
		return false
	}
	now := time.Now()
	c.Status = ConflictResolved
	c.ResolutionStrategy = strategy
	c.ResolvedAt = &now
	c.ResolvedBy = resolvedBy
	return true
}

// MarkIgnored transitions the conflict to ignored.
func (c *Conflict) MarkIgnored(resolvedBy string) bool {
	if c.Status != ConflictPending {
		return false
	}
	now := time.Now()
	c.Status = ConflictIgnored
	c.ResolvedAt = &now
	c.ResolvedBy = resolvedBy
	return true
}

// All returns every model managed by the billing store, in migration order.
func All() []any {
	return []any{
		&BillingEntry{},
		&SyncQueueItem{},
		&SyncHistory{},
		&Conflict{},
	}
}
