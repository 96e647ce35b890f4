package models

import "time"

// ConflictType classifies a detected divergence.
type ConflictType string

const (
	ConflictData    ConflictType = "data_conflict"
	ConflictVersion ConflictType = "version_conflict"
	ConflictDeleted ConflictType = "deleted_conflict"
)

// Resolution names how a conflict was (or must be) settled.
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveRemote Resolution = "remote"
	ResolveMerge  Resolution = "merge"
	ResolveManual Resolution = "manual"
)

// SyncConflict is a divergence between local and remote copies of a record.
// It lives only for the duration of a sync pass unless resolution is manual,
// in which case it is surfaced to the caller and the queue item stays pending.
type SyncConflict struct {
	RecordID        string                 `json:"record_id"`
	RecordType      RecordType             `json:"record_type"`
	Type            ConflictType           `json:"type"`
	LocalData       map[string]interface{} `json:"local_data"`
	RemoteData      map[string]interface{} `json:"remote_data"`
	LocalTimestamp  time.Time              `json:"local_timestamp"`
	RemoteTimestamp time.Time              `json:"remote_timestamp"`
	Resolution      Resolution             `json:"resolution,omitempty"`
}

// ItemError pairs a queue item with its failure reason.
type ItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// SyncResult summarizes one sync pass. Per-item failures are aggregated
// here rather than aborting the pass.
type SyncResult struct {
	Success       bool           `json:"success"`
	SyncedCount   int            `json:"synced_count"`
	FailedCount   int            `json:"failed_count"`
	ConflictCount int            `json:"conflict_count"`
	Conflicts     []SyncConflict `json:"conflicts,omitempty"`
	Errors        []ItemError    `json:"errors,omitempty"`
}

// EngineStatus is the live view of the sync engine. Only the engine
// mutates it; subscribers receive copies.
type EngineStatus struct {
	IsActive       bool      `json:"is_active"`
	Progress       int       `json:"progress"` // 0-100
	CurrentItem    string    `json:"current_item,omitempty"`
	TotalItems     int       `json:"total_items"`
	CompletedItems int       `json:"completed_items"`
	LastSync       time.Time `json:"last_sync,omitempty"`
	NextSync       time.Time `json:"next_sync,omitempty"`
}

// ChangeEvent is a remote change notification from the watch feed.
type ChangeEvent struct {
	RecordType RecordType `json:"record_type"`
	RecordID   string     `json:"record_id"`
	Action     SyncAction `json:"action"`
}
