package sync_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
	"github.com/lexohub/lexsync/internal/store"
	"github.com/lexohub/lexsync/internal/sync"
	"github.com/lexohub/lexsync/internal/transport"
)

type fixture struct {
	store     *store.SQLiteStore
	transport *transport.MockTransport
	engine    *sync.Engine
}

func newFixture(t *testing.T, policy models.Resolution) *fixture {
	t.Helper()

	st, err := store.New(&config.StorageConfig{
		DatabasePath: filepath.Join(t.TempDir(), "test.db"),
	}, events.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tr := transport.NewMockTransport()
	eng := sync.NewEngine(st, tr, sync.Config{
		BatchSize:      2,
		ConflictPolicy: policy,
	}, events.NewTestLogger())

	return &fixture{store: st, transport: tr, engine: eng}
}

// drain runs one pass and requires it to fully succeed.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestSyncAllEmptyQueue(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.SyncedCount)
	assert.Zero(t, res.FailedCount)
	assert.Zero(t, res.ConflictCount)

	status := f.engine.Status()
	assert.False(t, status.IsActive)
	assert.Equal(t, 100, status.Progress)
	assert.False(t, status.LastSync.IsZero())
}

func TestSyncAllPushesCreates(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{
		"title": "Smith v Jones",
	}, false)
	require.NoError(t, err)

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.SyncedCount)

	remote := f.transport.Remote(models.RecordMatter, id)
	require.NotNil(t, remote)
	assert.Equal(t, "Smith v Jones", remote["title"])

	rec, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, rec.SyncStatus)

	queue, err := f.store.SyncQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestSyncAllProcessesInQueueOrder(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "a"}, false)
	require.NoError(t, err)
	_, err = f.store.Store(models.RecordPayment, map[string]interface{}{"amount": 50.0}, false)
	require.NoError(t, err)
	f.drain(t)

	require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "b"}))
	require.NoError(t, f.store.Delete(id))

	f.transport.Calls = nil
	f.drain(t)

	// Update fetches before pushing; delete follows the update.
	require.Len(t, f.transport.Calls, 3)
	assert.Equal(t, "FETCH matter/"+id, f.transport.Calls[0])
	assert.Equal(t, "UPDATE matter/"+id, f.transport.Calls[1])
	assert.Equal(t, "DELETE matter/"+id, f.transport.Calls[2])
}

func TestSyncAllRemapsServerAssignedID(t *testing.T) {
	f := newFixture(t, models.ResolveManual)
	f.transport.ServerIDs = []string{"srv-900"}

	localID, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = f.store.Get(localID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	rec, err := f.store.Get("srv-900")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, rec.SyncStatus)
	assert.Equal(t, "m", rec.Data["title"])
}

func TestSyncAllRejectsConcurrentPass(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	var reentrant error
	fired := false
	unsubscribe := f.engine.OnStatusChange(func(s models.EngineStatus) {
		if s.IsActive && !fired {
			fired = true
			_, reentrant = f.engine.SyncAll(context.Background())
		}
	})
	defer unsubscribe()

	_, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	_, err = f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	require.True(t, fired)
	assert.ErrorIs(t, reentrant, models.ErrSyncInProgress)
}

func TestItemsEnqueuedMidPassWaitForNextPass(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	_, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "first"}, false)
	require.NoError(t, err)

	enqueued := false
	unsubscribe := f.engine.OnStatusChange(func(s models.EngineStatus) {
		if s.IsActive && !enqueued {
			enqueued = true
			_, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "second"}, false)
			require.NoError(t, err)
		}
	})
	defer unsubscribe()

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	require.True(t, enqueued)
	assert.Equal(t, 1, res.SyncedCount, "only the snapshot is drained")

	queue, err := f.store.SyncQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "second", queue[0].Data["title"])

	f.drain(t)

	queue, err = f.store.SyncQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestRetryCeilingHoldsFailedItems(t *testing.T) {
	f := newFixture(t, models.ResolveManual)
	eng := sync.NewEngine(f.store, f.transport, sync.Config{
		BatchSize:      2,
		MaxRetries:     1,
		ConflictPolicy: models.ResolveManual,
	}, events.NewTestLogger())

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	f.transport.FailNext("create", errors.New("connection refused"))

	res, err := eng.SyncAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.FailedCount)

	// At the ceiling the item is held back from automatic passes.
	calls := len(f.transport.Calls)
	res, err = eng.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.SyncedCount)
	assert.Zero(t, res.FailedCount)
	assert.Len(t, f.transport.Calls, calls, "held items reach no remote calls")

	// An explicit retry resets the counter and syncs it.
	res, err = eng.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.SyncedCount)

	rec, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, rec.SyncStatus)
}

func TestSyncUpdateWithoutConflict(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
	require.NoError(t, err)
	f.drain(t)

	require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "v2"}))

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.ConflictCount)
	assert.Equal(t, "v2", f.transport.Remote(models.RecordMatter, id)["title"])
}

func TestConflictRequiresNewerRemoteAndDifferingPayload(t *testing.T) {
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	past := "2020-01-01T00:00:00Z"

	for _, tc := range []struct {
		name     string
		remote   map[string]interface{}
		conflict bool
	}{
		{
			"newer remote, different payload",
			map[string]interface{}{"title": "theirs", "updated_at": future},
			true,
		},
		{
			"newer remote, identical payload",
			map[string]interface{}{"title": "ours", "updated_at": future, "version": 7.0},
			false,
		},
		{
			"older remote, different payload",
			map[string]interface{}{"title": "theirs", "updated_at": past},
			false,
		},
		{
			"remote without timestamp",
			map[string]interface{}{"title": "theirs"},
			false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, models.ResolveManual)

			id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
			require.NoError(t, err)
			f.drain(t)

			require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
			f.transport.SeedRemote(models.RecordMatter, id, tc.remote)

			res, err := f.engine.SyncAll(context.Background())
			require.NoError(t, err)

			if !tc.conflict {
				assert.True(t, res.Success)
				assert.Zero(t, res.ConflictCount)
				return
			}

			assert.False(t, res.Success)
			assert.Equal(t, 1, res.ConflictCount)
			require.Len(t, res.Conflicts, 1)

			c := res.Conflicts[0]
			assert.Equal(t, id, c.RecordID)
			assert.Equal(t, models.ConflictData, c.Type)
			assert.Equal(t, models.ResolveManual, c.Resolution)
			assert.Equal(t, "ours", c.LocalData["title"])
			assert.Equal(t, "theirs", c.RemoteData["title"])

			// Unresolved conflicts keep the item queued and the record pending.
			queue, err := f.store.SyncQueue()
			require.NoError(t, err)
			assert.Len(t, queue, 1)

			rec, err := f.store.Get(id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, rec.SyncStatus)
		})
	}
}

func TestConflictPolicyLocalWins(t *testing.T) {
	f := newFixture(t, models.ResolveLocal)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
	require.NoError(t, err)
	f.drain(t)

	require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
	f.transport.SeedRemote(models.RecordMatter, id, map[string]interface{}{
		"title":      "theirs",
		"updated_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano),
	})

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.ConflictCount)
	assert.Equal(t, "ours", f.transport.Remote(models.RecordMatter, id)["title"])
}

func TestConflictPolicyRemoteWins(t *testing.T) {
	f := newFixture(t, models.ResolveRemote)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
	require.NoError(t, err)
	f.drain(t)

	require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
	remoteTS := time.Now().UTC().Add(time.Hour)
	f.transport.SeedRemote(models.RecordMatter, id, map[string]interface{}{
		"title":      "theirs",
		"updated_at": remoteTS.Format(time.RFC3339Nano),
	})

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)

	rec, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "theirs", rec.Data["title"])
	assert.Equal(t, models.StatusSynced, rec.SyncStatus)

	queue, err := f.store.SyncQueue()
	require.NoError(t, err)
	assert.Empty(t, queue, "remote-wins must not enqueue a new mutation")
}

func TestManualResolverDecides(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	var seen models.SyncConflict
	f.engine.SetConflictResolver(func(c models.SyncConflict) (models.Resolution, error) {
		seen = c
		return models.ResolveLocal, nil
	})

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
	require.NoError(t, err)
	f.drain(t)

	require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
	f.transport.SeedRemote(models.RecordMatter, id, map[string]interface{}{
		"title":      "theirs",
		"updated_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano),
	})

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, id, seen.RecordID)
	assert.Equal(t, "ours", f.transport.Remote(models.RecordMatter, id)["title"])
}

func TestDeletedConflict(t *testing.T) {
	t.Run("remote wins removes local copy", func(t *testing.T) {
		f := newFixture(t, models.ResolveRemote)

		id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
		require.NoError(t, err)
		f.drain(t)

		require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
		require.NoError(t, f.transport.Delete(context.Background(), models.RecordMatter, id))

		res, err := f.engine.SyncAll(context.Background())
		require.NoError(t, err)
		require.True(t, res.Success)

		_, err = f.store.Get(id)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
	})

	t.Run("local wins recreates remotely", func(t *testing.T) {
		f := newFixture(t, models.ResolveLocal)

		id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
		require.NoError(t, err)
		f.drain(t)

		require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
		require.NoError(t, f.transport.Delete(context.Background(), models.RecordMatter, id))

		res, err := f.engine.SyncAll(context.Background())
		require.NoError(t, err)
		require.True(t, res.Success)

		remote := f.transport.Remote(models.RecordMatter, id)
		require.NotNil(t, remote)
		assert.Equal(t, "ours", remote["title"])
	})

	t.Run("manual policy without resolver surfaces conflict", func(t *testing.T) {
		f := newFixture(t, models.ResolveManual)

		id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "v1"}, false)
		require.NoError(t, err)
		f.drain(t)

		require.NoError(t, f.store.Update(id, map[string]interface{}{"title": "ours"}))
		require.NoError(t, f.transport.Delete(context.Background(), models.RecordMatter, id))

		res, err := f.engine.SyncAll(context.Background())
		require.NoError(t, err)

		assert.False(t, res.Success)
		require.Len(t, res.Conflicts, 1)
		assert.Equal(t, models.ConflictDeleted, res.Conflicts[0].Type)
	})
}

func TestFailureAndRetry(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	f.transport.FailNext("create", errors.New("connection refused"))

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "connection refused")

	rec, err := f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.SyncStatus)
	assert.Equal(t, 1, rec.SyncRetries)

	res, err = f.engine.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.SyncedCount)

	rec, err = f.store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, rec.SyncStatus)
	assert.Equal(t, 0, rec.SyncRetries)
}

func TestRetryFailedWithNothingFailed(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	res, err := f.engine.RetryFailed(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.SyncedCount)
	assert.Empty(t, f.transport.Calls, "no pass runs when nothing failed")
}

func TestCancelStopsBeforeNextItem(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	for _, title := range []string{"a", "b", "c"} {
		_, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": title}, false)
		require.NoError(t, err)
	}

	cancelled := false
	unsubscribe := f.engine.OnStatusChange(func(s models.EngineStatus) {
		if s.CompletedItems == 1 && !cancelled {
			cancelled = true
			f.engine.Cancel()
		}
	})
	defer unsubscribe()

	res, err := f.engine.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.SyncedCount)

	queue, err := f.store.SyncQueue()
	require.NoError(t, err)
	assert.Len(t, queue, 2, "unprocessed items stay queued for the next pass")
}

func TestStatusProgress(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	for _, title := range []string{"a", "b"} {
		_, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": title}, false)
		require.NoError(t, err)
	}

	var sawActive bool
	unsubscribe := f.engine.OnStatusChange(func(s models.EngineStatus) {
		if s.IsActive {
			sawActive = true
			assert.GreaterOrEqual(t, s.Progress, 0)
			assert.LessOrEqual(t, s.Progress, 100)
		}
	})
	defer unsubscribe()

	f.drain(t)

	assert.True(t, sawActive)
	status := f.engine.Status()
	assert.False(t, status.IsActive)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 2, status.TotalItems)
	assert.Equal(t, 2, status.CompletedItems)
}
