package models

import (
	"time"
)

// RecordType identifies a domain record kind.
type RecordType string

const (
	RecordMatter       RecordType = "matter"
	RecordDisbursement RecordType = "disbursement"
	RecordTimeEntry    RecordType = "time_entry"
	RecordPayment      RecordType = "payment"
)

// KnownRecordTypes lists every record type the store accepts.
var KnownRecordTypes = []RecordType{
	RecordMatter,
	RecordDisbursement,
	RecordTimeEntry,
	RecordPayment,
}

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	for _, k := range KnownRecordTypes {
		if t == k {
			return true
		}
	}
	return false
}

// SyncStatus tracks where a record sits in the sync lifecycle.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// Record is a locally persisted unit of domain data.
//
// Data is opaque to the storage layer. When Encrypted is true the persisted
// form is nonce||ciphertext; the store decrypts transparently on read.
type Record struct {
	ID              string                 `json:"id"`
	Type            RecordType             `json:"type"`
	Data            map[string]interface{} `json:"data"`
	Encrypted       bool                   `json:"encrypted"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	SyncStatus      SyncStatus             `json:"sync_status"`
	SyncRetries     int                    `json:"sync_retries"`
	LastSyncAttempt time.Time              `json:"last_sync_attempt,omitempty"`
}

// SyncAction is the remote mutation a queue item carries.
type SyncAction string

const (
	ActionCreate SyncAction = "create"
	ActionUpdate SyncAction = "update"
	ActionDelete SyncAction = "delete"
)

// SyncQueueItem is one intended remote mutation.
//
// Data is nil for deletes; RecordType and RecordID are always enough to
// instruct the remote side.
type SyncQueueItem struct {
	ID         string                 `json:"id"`
	Action     SyncAction             `json:"action"`
	RecordType RecordType             `json:"record_type"`
	RecordID   string                 `json:"record_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Retries    int                    `json:"retries"`
	LastError  string                 `json:"last_error,omitempty"`
}

// StorageStats summarizes the local store.
type StorageStats struct {
	TotalRecords    int                `json:"total_records"`
	RecordsByType   map[RecordType]int `json:"records_by_type"`
	PendingSync     int                `json:"pending_sync"`
	FailedSync      int                `json:"failed_sync"`
	DecryptFailures int                `json:"decrypt_failures"`
	DatabaseBytes   int64              `json:"database_bytes"`
	QuotaBytes      int64              `json:"quota_bytes"`
}
