package store

import (
	"time"

	"github.com/lexohub/lexsync/internal/models"
)

// Store is the encrypted local record store. Records and the sync queue
// are owned exclusively by this layer; the sync engine only reads
// snapshots and adjusts sync metadata and queue membership through it.
type Store interface {
	// Store persists a new record with syncStatus pending and enqueues
	// a create mutation. Returns the record id (generated if absent).
	Store(recordType models.RecordType, data map[string]interface{}, encrypt bool) (string, error)

	// Get returns the record, decrypting transparently.
	Get(id string) (*models.Record, error)

	// GetAll returns all records of a type, decrypted. Records that
	// fail to decrypt are logged and excluded.
	GetAll(recordType models.RecordType) ([]*models.Record, error)

	// Update replaces a record's payload, resets syncStatus to pending
	// and enqueues an update mutation. Like Store it fails with
	// ErrQuotaExceeded above the storage quota.
	Update(id string, data map[string]interface{}) error

	// Delete removes a record and enqueues a delete mutation.
	Delete(id string) error

	// ApplyRemote overwrites a record's payload with remote data
	// without enqueueing; the record is marked synced. Used when a
	// conflict resolves in the remote's favor.
	ApplyRemote(id string, data map[string]interface{}, remoteUpdatedAt time.Time) error

	// RemoveLocal deletes a record without enqueueing a remote
	// mutation. Used when a deleted-conflict resolves in the remote's
	// favor.
	RemoveLocal(id string) error

	// UpdateSyncStatus adjusts a record's sync metadata. Missing
	// records are a no-op (already deleted locally).
	UpdateSyncStatus(id string, status models.SyncStatus, syncErr string) error

	// RemapID rewrites a record's id and any pending queue references
	// after the server assigns a different id. Payload foreign keys in
	// other records are not cascaded; payloads are opaque to the store.
	RemapID(oldID, newID string) error

	// SyncQueue returns the queue in insertion order.
	SyncQueue() ([]*models.SyncQueueItem, error)

	// RemoveQueueItem deletes a queue entry after confirmed remote
	// success.
	RemoveQueueItem(id string) error

	// MarkQueueItemFailed increments the entry's retry count and
	// records the failure reason.
	MarkQueueItemFailed(id, reason string) error

	// ResetFailedQueueItems zeroes retry counts on entries that have
	// failed at least once and returns how many were reset.
	ResetFailedQueueItems() (int, error)

	// Stats returns derived counts and quota usage.
	Stats() (*models.StorageStats, error)

	// ClearAll wipes records, queue and metadata.
	ClearAll() error

	// Close releases the underlying database.
	Close() error
}
