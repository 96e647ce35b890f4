package transport

import (
	"context"

	"github.com/lexohub/lexsync/internal/models"
)

// Transport is the remote sync API client. Payloads are JSON objects
// carrying at least "id" and "updated_at"; conflict detection depends
// on the remote returning an accurate last-modified timestamp.
type Transport interface {
	// Create posts a new record and returns the server's copy,
	// including the server-assigned id.
	Create(ctx context.Context, recordType models.RecordType, payload map[string]interface{}) (map[string]interface{}, error)

	// Fetch returns the current remote state of a record.
	// Returns models.ErrRemoteNotFound if it does not exist.
	Fetch(ctx context.Context, recordType models.RecordType, id string) (map[string]interface{}, error)

	// Update pushes a record update. force bypasses the remote's
	// optimistic-lock check when a conflict resolves local-wins.
	Update(ctx context.Context, recordType models.RecordType, id string, payload map[string]interface{}, force bool) (map[string]interface{}, error)

	// Delete removes a record remotely. Deleting an already-deleted
	// record is success.
	Delete(ctx context.Context, recordType models.RecordType, id string) error

	// Watch streams remote change notifications until ctx is done.
	Watch(ctx context.Context) (<-chan models.ChangeEvent, error)

	// Close releases connections.
	Close() error
}
