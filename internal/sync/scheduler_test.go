package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
	"github.com/lexohub/lexsync/internal/sync"
)

func TestSchedulerSyncsOnChangeEvent(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	// No interval: passes run only on change notifications.
	sched := sync.NewScheduler(f.engine, f.transport, 0, events.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	f.transport.EmitChange(models.ChangeEvent{
		RecordType: models.RecordMatter,
		RecordID:   "someone-else",
		Action:     models.ActionUpdate,
	})

	require.Eventually(t, func() bool {
		rec, err := f.store.Get(id)
		return err == nil && rec.SyncStatus == models.StatusSynced
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerSyncsOnInterval(t *testing.T) {
	f := newFixture(t, models.ResolveManual)

	id, err := f.store.Store(models.RecordMatter, map[string]interface{}{"title": "m"}, false)
	require.NoError(t, err)

	// Make the watch fail so only the ticker drives passes.
	f.transport.FailNext("watch", errors.New("feed down"))

	sched := sync.NewScheduler(f.engine, f.transport, 20*time.Millisecond, events.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec, err := f.store.Get(id)
		return err == nil && rec.SyncStatus == models.StatusSynced
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, f.engine.Status().NextSync.IsZero())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
