package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/task"
)

// RecoverySweeper fails RUNNING records whose owning worker stopped
// heartbeating. Recovery is conservative: records are never re-enqueued, a
// failed report beats a double execution.
type RecoverySweeper struct {
	store  TaskStore
	now    func() time.Time
	logger *zap.Logger
}

func NewRecoverySweeper(store TaskStore, logger *zap.Logger) *RecoverySweeper {
	return &RecoverySweeper{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// Sweep scans every task record once and fails the stale RUNNING ones.
// Records without a heartbeat yet are judged by their start time.
func (s *RecoverySweeper) Sweep(ctx context.Context) error {
	keys, err := s.store.ScanKeys(ctx, task.AllTasksPattern())
	if err != nil {
		return err
	}

	var swept int
	for _, key := range keys {
		rec, err := s.store.Load(ctx, key)
		if err != nil {
			s.logger.Warn("Skipping unreadable task record",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if rec == nil || rec.Status != task.StatusRunning {
			continue
		}

		lastSeen := rec.LastHeartbeat
		if lastSeen == 0 {
			lastSeen = rec.StartedAt
		}
		if lastSeen == 0 {
			// Nothing to judge staleness by; leave it for a later sweep.
			continue
		}
		if s.now().Unix()-lastSeen <= int64(task.StaleThreshold.Seconds()) {
			continue
		}

		if err := rec.Transition(task.StatusFailed, "worker died unexpectedly"); err != nil {
			s.logger.Warn("Cannot fail stale task",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if err := s.store.Save(ctx, key, rec, task.TTLTerminal); err != nil {
			s.logger.Warn("Stale-task save failed",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		s.logger.Info("Recovered stale task",
			zap.String("key", key),
			zap.String("worker_id", rec.WorkerID))
		swept++
	}

	if swept > 0 {
		s.logger.Info("Recovery sweep done", zap.Int("failed_tasks", swept))
	}
	return nil
}
