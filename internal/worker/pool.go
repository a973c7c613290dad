// Package worker runs the task pool: a fixed set of goroutine workers that
// pop queued tasks, heartbeat them while running, and dispatch them to a
// handler by kind. A startup sweeper fails tasks left behind by dead workers.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tunesync/internal/core"
	"tunesync/internal/task"
)

const (
	// popTimeout bounds each blocking queue pop so the loop can observe
	// shutdown between pops.
	popTimeout = 5 * time.Second
	// iterationPause paces the worker loop after every processed task.
	iterationPause = time.Second
)

// TaskStore is the slice of the task store the pool needs.
type TaskStore interface {
	PopNext(ctx context.Context, timeout time.Duration) (string, error)
	Load(ctx context.Context, key string) (*task.Record, error)
	Save(ctx context.Context, key string, rec *task.Record, ttl time.Duration) error
	Touch(ctx context.Context, key, workerID string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Handler executes one task to completion. The handler owns the record's
// final save; an error return means the handler could not finalize the record
// itself and the pool should try to fail it.
type Handler interface {
	Handle(ctx context.Context, key string, rec *task.Record, userID int64) error
}

// sleepFunc pauses for d unless ctx ends first. Injected so tests run fast.
type sleepFunc func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Pool runs Count workers until its context ends.
type Pool struct {
	store          TaskStore
	users          core.UserStore
	handlers       map[task.TaskKind]Handler
	count          int
	sleep          sleepFunc
	heartbeatEvery time.Duration
	logger         *zap.Logger
}

func NewPool(store TaskStore, users core.UserStore, handlers map[task.TaskKind]Handler, count int, logger *zap.Logger) *Pool {
	return &Pool{
		store:          store,
		users:          users,
		handlers:       handlers,
		count:          count,
		sleep:          sleepContext,
		heartbeatEvery: task.HeartbeatInterval,
		logger:         logger,
	}
}

// Run blocks until ctx ends, then returns once every worker has drained its
// in-flight task.
func (p *Pool) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.count; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		group.Go(func() error {
			p.runWorker(ctx, workerID)
			return nil
		})
	}
	return group.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	logger := p.logger.With(zap.String("worker_id", workerID))
	logger.Info("Worker started")

	for {
		if ctx.Err() != nil {
			logger.Info("Worker stopped")
			return
		}

		key, err := p.store.PopNext(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Worker stopped")
				return
			}
			logger.Warn("Queue pop failed", zap.Error(err))
			p.sleep(ctx, iterationPause)
			continue
		}
		if key == "" {
			continue
		}

		p.process(ctx, workerID, key, logger)
		p.sleep(ctx, iterationPause)
	}
}

// process claims the popped task and runs it end to end.
func (p *Pool) process(ctx context.Context, workerID, key string, logger *zap.Logger) {
	rec, err := p.store.Load(ctx, key)
	if err != nil {
		logger.Warn("Skipping unreadable task", zap.String("key", key), zap.Error(err))
		return
	}
	if rec == nil || rec.Status != task.StatusQueued {
		logger.Debug("Discarding stale queue entry", zap.String("key", key))
		return
	}

	_, userID, _, err := task.ParseTaskKey(key)
	if err != nil {
		logger.Warn("Skipping malformed task key", zap.String("key", key), zap.Error(err))
		return
	}

	now := time.Now().Unix()
	if err := rec.Transition(task.StatusRunning, ""); err != nil {
		logger.Warn("Cannot claim task", zap.String("key", key), zap.Error(err))
		return
	}
	rec.StartedAt = now
	rec.WorkerID = workerID
	rec.LastHeartbeat = now
	if err := p.store.Save(ctx, key, rec, task.TTLRunning); err != nil {
		logger.Warn("Claim save failed", zap.String("key", key), zap.Error(err))
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go p.heartbeat(hbCtx, key, workerID, logger)
	defer stopHeartbeat()

	logger.Info("Task started",
		zap.String("key", key),
		zap.String("kind", string(rec.Kind)))

	user, err := p.users.Get(ctx, userID)
	if err != nil || user == nil {
		p.failRecord(ctx, key, rec, "task owner does not exist", logger)
		return
	}

	handler, ok := p.handlers[rec.Kind]
	if !ok {
		p.failRecord(ctx, key, rec, fmt.Sprintf("unsupported task kind %q", rec.Kind), logger)
		return
	}

	if err := handler.Handle(ctx, key, rec, userID); err != nil {
		if ctx.Err() != nil {
			p.holdRecord(ctx, key, rec, logger)
			return
		}
		logger.Error("Task handler failed",
			zap.String("key", key),
			zap.Error(err))
		p.failRecord(ctx, key, rec, err.Error(), logger)
		return
	}

	logger.Info("Task done",
		zap.String("key", key),
		zap.String("status", string(rec.Status)))
}

// heartbeat refreshes last_heartbeat and the running TTL until stopped. The
// store performs the refresh atomically and leaves terminal records alone, so
// a cancellation landing mid-beat can never be rewritten back to RUNNING.
func (p *Pool) heartbeat(ctx context.Context, key, workerID string, logger *zap.Logger) {
	ticker := time.NewTicker(p.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := p.store.Touch(ctx, key, workerID); err != nil {
			logger.Warn("Heartbeat failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// failRecord terminates the record with reason; best effort.
func (p *Pool) failRecord(ctx context.Context, key string, rec *task.Record, reason string, logger *zap.Logger) {
	if err := rec.Transition(task.StatusFailed, reason); err != nil {
		logger.Warn("Cannot fail task", zap.String("key", key), zap.Error(err))
		return
	}
	// Shutdown may already have cancelled ctx; use a detached deadline so the
	// terminal write still lands.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.store.Save(saveCtx, key, rec, task.TTLTerminal); err != nil {
		logger.Warn("Failed-state save failed", zap.String("key", key), zap.Error(err))
	}
}

// holdRecord parks an in-flight record on shutdown so a later worker can
// retry it.
func (p *Pool) holdRecord(ctx context.Context, key string, rec *task.Record, logger *zap.Logger) {
	if rec.Status.Terminal() {
		return
	}
	if err := rec.Transition(task.StatusOnHold, "worker shutdown; will be retried later"); err != nil {
		logger.Warn("Cannot park task", zap.String("key", key), zap.Error(err))
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.store.Save(saveCtx, key, rec, task.TTLRunning); err != nil {
		logger.Warn("Shutdown save failed", zap.String("key", key), zap.Error(err))
	}
}
