package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lexohub/lexsync/internal/models"
)

// MockTransport is a scripted in-memory transport for tests. It keeps
// a remote record table and can inject failures per call.
type MockTransport struct {
	mu sync.Mutex

	// remote state keyed by "type/id"
	remote map[string]map[string]interface{}

	// failures to inject, consumed in FIFO order per method
	failures map[string][]error

	// ServerIDs, when non-empty, are assigned to created records in
	// order instead of echoing the client id.
	ServerIDs []string

	// Calls records every invocation as "METHOD type/id".
	Calls []string

	changes chan models.ChangeEvent
}

// NewMockTransport creates an empty mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		remote:   make(map[string]map[string]interface{}),
		failures: make(map[string][]error),
		changes:  make(chan models.ChangeEvent, 16),
	}
}

// SeedRemote installs a remote record.
func (m *MockTransport) SeedRemote(recordType models.RecordType, id string, payload map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote[key(recordType, id)] = payload
}

// Remote returns the current remote copy, or nil.
func (m *MockTransport) Remote(recordType models.RecordType, id string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote[key(recordType, id)]
}

// FailNext queues an error for the next call of the given method
// ("create", "fetch", "update", "delete").
func (m *MockTransport) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], err)
}

// EmitChange pushes an event into the watch feed.
func (m *MockTransport) EmitChange(ev models.ChangeEvent) {
	m.changes <- ev
}

func (m *MockTransport) takeFailure(method string) error {
	if errs := m.failures[method]; len(errs) > 0 {
		m.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (m *MockTransport) Create(ctx context.Context, recordType models.RecordType, payload map[string]interface{}) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _ := payload["id"].(string)
	m.Calls = append(m.Calls, fmt.Sprintf("CREATE %s/%s", recordType, id))

	if err := m.takeFailure("create"); err != nil {
		return nil, err
	}

	if len(m.ServerIDs) > 0 {
		id = m.ServerIDs[0]
		m.ServerIDs = m.ServerIDs[1:]
	} else if id == "" {
		id = fmt.Sprintf("server-%d", len(m.remote)+1)
	}

	stored := copyPayload(payload)
	stored["id"] = id
	stored["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	m.remote[key(recordType, id)] = stored

	return copyPayload(stored), nil
}

func (m *MockTransport) Fetch(ctx context.Context, recordType models.RecordType, id string) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, fmt.Sprintf("FETCH %s/%s", recordType, id))

	if err := m.takeFailure("fetch"); err != nil {
		return nil, err
	}

	payload, ok := m.remote[key(recordType, id)]
	if !ok {
		return nil, models.ErrRemoteNotFound
	}
	return copyPayload(payload), nil
}

func (m *MockTransport) Update(ctx context.Context, recordType models.RecordType, id string, payload map[string]interface{}, force bool) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, fmt.Sprintf("UPDATE %s/%s", recordType, id))

	if err := m.takeFailure("update"); err != nil {
		return nil, err
	}

	stored := copyPayload(payload)
	stored["id"] = id
	stored["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	m.remote[key(recordType, id)] = stored

	return copyPayload(stored), nil
}

func (m *MockTransport) Delete(ctx context.Context, recordType models.RecordType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, fmt.Sprintf("DELETE %s/%s", recordType, id))

	if err := m.takeFailure("delete"); err != nil {
		return err
	}

	// Idempotent: deleting a missing record is success.
	delete(m.remote, key(recordType, id))
	return nil
}

func (m *MockTransport) Watch(ctx context.Context) (<-chan models.ChangeEvent, error) {
	if err := m.takeFailure("watch"); err != nil {
		return nil, err
	}
	return m.changes, nil
}

func (m *MockTransport) Close() error {
	return nil
}

func key(recordType models.RecordType, id string) string {
	return string(recordType) + "/" + id
}

func copyPayload(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
