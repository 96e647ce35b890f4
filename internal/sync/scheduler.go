package sync

import (
	"context"
	"errors"
	"time"

	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
	"github.com/lexohub/lexsync/internal/transport"
)

// Scheduler runs sync passes on an interval and additionally when the
// remote change feed reports activity.
type Scheduler struct {
	engine    *Engine
	transport transport.Transport
	interval  time.Duration
	logger    *events.Logger
}

// NewScheduler creates an auto-sync scheduler. A non-positive interval
// disables the timer; passes then run only on change notifications.
func NewScheduler(engine *Engine, tr transport.Transport, interval time.Duration, logger *events.Logger) *Scheduler {
	return &Scheduler{
		engine:    engine,
		transport: tr,
		interval:  interval,
		logger:    logger.WithField("component", "sync_scheduler"),
	}
}

// Run blocks until ctx is done, triggering passes on the interval and
// on change events. The change feed is optional; watch failures only
// degrade to interval-driven syncing.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
		s.engine.setNextSync(time.Now().UTC().Add(s.interval))
	}

	changes, err := s.transport.Watch(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Change feed unavailable, syncing on interval only")
		changes = nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			s.runPass(ctx, "interval")
			s.engine.setNextSync(time.Now().UTC().Add(s.interval))

		case ev, ok := <-changes:
			if !ok {
				changes = nil
				if tick == nil {
					return errors.New("change feed closed and no interval configured")
				}
				continue
			}
			s.logger.WithFields(map[string]interface{}{
				"record_type": ev.RecordType,
				"record_id":   ev.RecordID,
				"action":      ev.Action,
			}).Debug("Remote change notification")
			s.runPass(ctx, "change")
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, trigger string) {
	result, err := s.engine.SyncAll(ctx)
	if errors.Is(err, models.ErrSyncInProgress) {
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("trigger", trigger).Warn("Scheduled sync failed")
		return
	}
	if !result.Success {
		s.logger.WithFields(map[string]interface{}{
			"trigger":   trigger,
			"failed":    result.FailedCount,
			"conflicts": result.ConflictCount,
		}).Warn("Scheduled sync finished with issues")
	}
}
