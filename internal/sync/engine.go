// Package sync reconciles the local sync queue against the remote API:
// one snapshot pass at a time, batched with backpressure, with conflict
// detection and pluggable resolution.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
	"github.com/lexohub/lexsync/internal/store"
	"github.com/lexohub/lexsync/internal/transport"

	gosync "sync"
)

// Config controls engine behavior.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration

	// MaxRetries holds a queue item back from automatic passes once it
	// has failed this many times; RetryFailed resets the counter and
	// makes it eligible again. 0 means no ceiling.
	MaxRetries int

	ConflictPolicy models.Resolution
}

// ConflictResolver decides a conflict when the policy is manual.
// Returning ResolveLocal or ResolveRemote settles the item; any other
// value leaves it pending.
type ConflictResolver func(models.SyncConflict) (models.Resolution, error)

// Engine drains the sync queue against the remote API.
type Engine struct {
	store     store.Store
	transport transport.Transport
	logger    *events.Logger
	cfg       Config

	mu       gosync.Mutex
	active   bool
	cancelFn context.CancelFunc

	statusMu    gosync.Mutex
	status      models.EngineStatus
	subscribers map[int]func(models.EngineStatus)
	nextSubID   int

	resolver ConflictResolver
}

// NewEngine creates a sync engine.
func NewEngine(st store.Store, tr transport.Transport, cfg Config, logger *events.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Engine{
		store:       st,
		transport:   tr,
		cfg:         cfg,
		logger:      logger.WithField("component", "sync_engine"),
		subscribers: make(map[int]func(models.EngineStatus)),
	}
}

// SetConflictResolver registers the manual-resolution callback.
func (e *Engine) SetConflictResolver(r ConflictResolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver = r
}

// OnStatusChange registers a subscriber notified on every status
// change. The returned function unsubscribes.
func (e *Engine) OnStatusChange(cb func(models.EngineStatus)) func() {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = cb

	return func() {
		e.statusMu.Lock()
		defer e.statusMu.Unlock()
		delete(e.subscribers, id)
	}
}

// Status returns a copy of the live engine status.
func (e *Engine) Status() models.EngineStatus {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}

func (e *Engine) updateStatus(mutate func(*models.EngineStatus)) {
	e.statusMu.Lock()
	mutate(&e.status)
	snapshot := e.status
	subs := make([]func(models.EngineStatus), 0, len(e.subscribers))
	for _, cb := range e.subscribers {
		subs = append(subs, cb)
	}
	e.statusMu.Unlock()

	for _, cb := range subs {
		cb(snapshot)
	}
}

func (e *Engine) setNextSync(t time.Time) {
	e.updateStatus(func(s *models.EngineStatus) { s.NextSync = t })
}

// SyncAll drains a snapshot of the sync queue. Items enqueued during
// the pass wait for the next pass. Per-item failures are aggregated in
// the result, never returned as an error.
func (e *Engine) SyncAll(ctx context.Context) (*models.SyncResult, error) {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil, models.ErrSyncInProgress
	}
	e.active = true
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFn = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.active = false
		e.cancelFn = nil
		e.mu.Unlock()
	}()

	queue, err := e.store.SyncQueue()
	if err != nil {
		e.updateStatus(func(s *models.EngineStatus) {
			s.IsActive = false
			s.CurrentItem = ""
		})
		return nil, fmt.Errorf("read sync queue: %w", err)
	}

	if e.cfg.MaxRetries > 0 {
		eligible := make([]*models.SyncQueueItem, 0, len(queue))
		for _, item := range queue {
			if item.Retries >= e.cfg.MaxRetries {
				continue
			}
			eligible = append(eligible, item)
		}
		if held := len(queue) - len(eligible); held > 0 {
			e.logger.WithField("items", held).Info("Holding items at the retry ceiling")
		}
		queue = eligible
	}

	result := &models.SyncResult{Success: true}
	total := len(queue)

	e.updateStatus(func(s *models.EngineStatus) {
		s.IsActive = true
		s.Progress = 0
		s.TotalItems = total
		s.CompletedItems = 0
		s.CurrentItem = ""
	})

	if total == 0 {
		e.updateStatus(func(s *models.EngineStatus) {
			s.IsActive = false
			s.Progress = 100
			s.LastSync = time.Now().UTC()
		})
		return result, nil
	}

	e.logger.WithField("items", total).Info("Starting sync pass")

	completed := 0
processing:
	for i := 0; i < total; i += e.cfg.BatchSize {
		end := i + e.cfg.BatchSize
		if end > total {
			end = total
		}

		for _, item := range queue[i:end] {
			if ctx.Err() != nil {
				break processing
			}

			e.updateStatus(func(s *models.EngineStatus) {
				s.CurrentItem = fmt.Sprintf("%s %s", item.RecordType, item.RecordID)
				s.Progress = completed * 100 / total
			})

			e.processItem(ctx, item, result)
			completed++

			e.updateStatus(func(s *models.EngineStatus) {
				s.CompletedItems = completed
				s.Progress = completed * 100 / total
			})
		}

		// Backpressure between batches, not concurrency.
		if end < total && e.cfg.BatchDelay > 0 {
			select {
			case <-time.After(e.cfg.BatchDelay):
			case <-ctx.Done():
				break processing
			}
		}
	}

	result.Success = result.FailedCount == 0 && result.ConflictCount == 0

	e.updateStatus(func(s *models.EngineStatus) {
		s.IsActive = false
		s.CurrentItem = ""
		s.Progress = 100
		s.LastSync = time.Now().UTC()
	})

	e.logger.WithFields(map[string]interface{}{
		"synced":    result.SyncedCount,
		"failed":    result.FailedCount,
		"conflicts": result.ConflictCount,
	}).Info("Sync pass complete")

	return result, nil
}

// processItem dispatches one queue item and folds the outcome into the
// pass result.
func (e *Engine) processItem(ctx context.Context, item *models.SyncQueueItem, result *models.SyncResult) {
	if err := e.store.UpdateSyncStatus(item.RecordID, models.StatusSyncing, ""); err != nil {
		e.logger.WithError(err).WithField("record_id", item.RecordID).
			Warn("Could not mark record syncing")
	}

	var outcome itemOutcome
	switch item.Action {
	case models.ActionCreate:
		outcome = e.syncCreate(ctx, item)
	case models.ActionUpdate:
		outcome = e.syncUpdate(ctx, item)
	case models.ActionDelete:
		outcome = e.syncDelete(ctx, item)
	default:
		outcome = itemOutcome{err: fmt.Errorf("unknown action %q", item.Action)}
	}

	switch {
	case outcome.conflict != nil:
		result.ConflictCount++
		result.Conflicts = append(result.Conflicts, *outcome.conflict)
		// Queue item stays; record returns to pending until resolved.
		if err := e.store.UpdateSyncStatus(item.RecordID, models.StatusPending, ""); err != nil {
			e.logger.WithError(err).Warn("Could not reset conflicted record")
		}

	case outcome.err != nil:
		result.FailedCount++
		result.Errors = append(result.Errors, models.ItemError{
			ItemID: item.ID,
			Error:  outcome.err.Error(),
		})
		if err := e.store.MarkQueueItemFailed(item.ID, outcome.err.Error()); err != nil {
			e.logger.WithError(err).Warn("Could not mark queue item failed")
		}
		if err := e.store.UpdateSyncStatus(item.RecordID, models.StatusFailed, outcome.err.Error()); err != nil {
			e.logger.WithError(err).Warn("Could not mark record failed")
		}

	default:
		result.SyncedCount++
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			e.logger.WithError(err).Warn("Could not remove queue item")
		}
		if err := e.store.UpdateSyncStatus(outcome.recordID(item), models.StatusSynced, ""); err != nil {
			e.logger.WithError(err).Warn("Could not mark record synced")
		}
	}
}

// itemOutcome is the per-item result: exactly one of conflict/err set,
// or neither for success. newID carries a server-assigned id.
type itemOutcome struct {
	conflict *models.SyncConflict
	err      error
	newID    string
}

func (o itemOutcome) recordID(item *models.SyncQueueItem) string {
	if o.newID != "" {
		return o.newID
	}
	return item.RecordID
}

func (e *Engine) syncCreate(ctx context.Context, item *models.SyncQueueItem) itemOutcome {
	resp, err := e.transport.Create(ctx, item.RecordType, item.Data)
	if err != nil {
		return itemOutcome{err: err}
	}

	serverID, _ := resp["id"].(string)
	if serverID != "" && serverID != item.RecordID {
		if err := e.store.RemapID(item.RecordID, serverID); err != nil {
			return itemOutcome{err: fmt.Errorf("remap id: %w", err)}
		}
		return itemOutcome{newID: serverID}
	}
	return itemOutcome{}
}

func (e *Engine) syncUpdate(ctx context.Context, item *models.SyncQueueItem) itemOutcome {
	remote, err := e.transport.Fetch(ctx, item.RecordType, item.RecordID)
	if errors.Is(err, models.ErrRemoteNotFound) {
		return e.handleDeletedConflict(ctx, item)
	}
	if err != nil {
		return itemOutcome{err: err}
	}

	conflict := e.detectConflict(item, remote)
	if conflict != nil {
		return e.resolveConflict(ctx, item, conflict)
	}

	if _, err := e.transport.Update(ctx, item.RecordType, item.RecordID, item.Data, false); err != nil {
		return itemOutcome{err: err}
	}
	return itemOutcome{}
}

func (e *Engine) syncDelete(ctx context.Context, item *models.SyncQueueItem) itemOutcome {
	// Transport treats remote 404 as success: delete is idempotent.
	if err := e.transport.Delete(ctx, item.RecordType, item.RecordID); err != nil {
		return itemOutcome{err: err}
	}
	return itemOutcome{}
}

// detectConflict raises a conflict iff the remote copy postdates the
// local one AND the normalized payloads differ.
func (e *Engine) detectConflict(item *models.SyncQueueItem, remote map[string]interface{}) *models.SyncConflict {
	local, err := e.store.Get(item.RecordID)
	if err != nil {
		// No local record, nothing to conflict with.
		return nil
	}

	remoteTS, ok := remoteTimestamp(remote)
	if !ok || !remoteTS.After(local.UpdatedAt) {
		return nil
	}

	if !payloadsDiffer(local.Data, remote) {
		return nil
	}

	return &models.SyncConflict{
		RecordID:        item.RecordID,
		RecordType:      item.RecordType,
		Type:            models.ConflictData,
		LocalData:       local.Data,
		RemoteData:      remote,
		LocalTimestamp:  local.UpdatedAt,
		RemoteTimestamp: remoteTS,
	}
}

// handleDeletedConflict handles an update whose target no longer
// exists remotely.
func (e *Engine) handleDeletedConflict(ctx context.Context, item *models.SyncQueueItem) itemOutcome {
	local, err := e.store.Get(item.RecordID)
	if err != nil {
		// Gone on both sides: nothing left to reconcile.
		return itemOutcome{}
	}

	conflict := &models.SyncConflict{
		RecordID:       item.RecordID,
		RecordType:     item.RecordType,
		Type:           models.ConflictDeleted,
		LocalData:      local.Data,
		LocalTimestamp: local.UpdatedAt,
	}
	return e.resolveConflict(ctx, item, conflict)
}

// resolveConflict applies the configured policy. With a manual policy
// and no resolver the conflict is surfaced, never silently decided.
func (e *Engine) resolveConflict(ctx context.Context, item *models.SyncQueueItem, conflict *models.SyncConflict) itemOutcome {
	resolution := e.cfg.ConflictPolicy

	if resolution == models.ResolveManual {
		e.mu.Lock()
		resolver := e.resolver
		e.mu.Unlock()

		if resolver == nil {
			conflict.Resolution = models.ResolveManual
			return itemOutcome{conflict: conflict}
		}

		decided, err := resolver(*conflict)
		if err != nil {
			return itemOutcome{err: fmt.Errorf("conflict resolver: %w", err)}
		}
		resolution = decided
	}

	switch resolution {
	case models.ResolveLocal:
		conflict.Resolution = models.ResolveLocal
		if conflict.Type == models.ConflictDeleted {
			// Recreate the record remotely under its existing id.
			payload := item.Data
			if _, ok := payload["id"]; !ok {
				payload = make(map[string]interface{}, len(item.Data)+1)
				for k, v := range item.Data {
					payload[k] = v
				}
				payload["id"] = item.RecordID
			}
			if _, err := e.transport.Create(ctx, item.RecordType, payload); err != nil {
				return itemOutcome{err: err}
			}
			return itemOutcome{}
		}
		if _, err := e.transport.Update(ctx, item.RecordType, item.RecordID, item.Data, true); err != nil {
			return itemOutcome{err: err}
		}
		return itemOutcome{}

	case models.ResolveRemote:
		conflict.Resolution = models.ResolveRemote
		if conflict.Type == models.ConflictDeleted {
			if err := e.store.RemoveLocal(item.RecordID); err != nil {
				return itemOutcome{err: err}
			}
			return itemOutcome{}
		}
		if err := e.store.ApplyRemote(item.RecordID, conflict.RemoteData, conflict.RemoteTimestamp); err != nil {
			return itemOutcome{err: err}
		}
		return itemOutcome{}

	default:
		// Merge or anything else defers to manual handling.
		conflict.Resolution = models.ResolveManual
		return itemOutcome{conflict: conflict}
	}
}

// RetryFailed resets retry counters on previously failed queue items
// and runs another pass. Items that never failed are untouched by the
// reset.
func (e *Engine) RetryFailed(ctx context.Context) (*models.SyncResult, error) {
	n, err := e.store.ResetFailedQueueItems()
	if err != nil {
		return nil, fmt.Errorf("reset failed items: %w", err)
	}
	if n == 0 {
		return &models.SyncResult{Success: true}, nil
	}

	e.logger.WithField("items", n).Info("Retrying failed items")
	return e.SyncAll(ctx)
}

// Cancel stops the active pass before the next item. In-flight remote
// calls complete naturally; nothing is rolled back.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancelFn
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		e.updateStatus(func(s *models.EngineStatus) {
			s.IsActive = false
			s.CurrentItem = ""
		})
		e.logger.Info("Sync cancelled")
	}
}

// remoteTimestamp extracts the remote last-modified time, accepting
// both updated_at and updatedAt keys.
func remoteTimestamp(payload map[string]interface{}) (time.Time, bool) {
	for _, key := range []string{"updated_at", "updatedAt"} {
		raw, ok := payload[key].(string)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// volatileFields are stripped before payload comparison.
var volatileFields = []string{
	"id", "created_at", "createdAt", "updated_at", "updatedAt", "version",
}

// payloadsDiffer compares payloads with volatile fields removed.
// json.Marshal writes map keys in sorted order, so byte comparison is
// a stable deep-equality check.
func payloadsDiffer(local, remote map[string]interface{}) bool {
	a, errA := json.Marshal(normalize(local))
	b, errB := json.Marshal(normalize(remote))
	if errA != nil || errB != nil {
		return true
	}
	return !bytes.Equal(a, b)
}

func normalize(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, f := range volatileFields {
		delete(out, f)
	}
	return out
}
