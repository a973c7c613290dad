package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"tunesync/internal/task"
)

func TestSweeper_FailsStaleRunningTasks(t *testing.T) {
	now := time.Now()
	store := newMemStore()

	seed := func(taskID string, status task.TaskStatus, heartbeatAge, startedAge time.Duration) string {
		rec := &task.Record{
			TaskID:   taskID,
			Kind:     task.KindPlaylistTransfer,
			Status:   status,
			QueuedAt: now.Add(-time.Hour).Unix(),
			WorkerID: "worker-0",
		}
		if startedAge > 0 {
			rec.StartedAt = now.Add(-startedAge).Unix()
		}
		if heartbeatAge > 0 {
			rec.LastHeartbeat = now.Add(-heartbeatAge).Unix()
		}
		key := task.TaskKey(rec.Kind, 1, taskID)
		store.put(key, rec)
		return key
	}

	staleKey := seed("stale", task.StatusRunning, 200*time.Second, 300*time.Second)
	freshKey := seed("fresh", task.StatusRunning, 10*time.Second, 60*time.Second)
	// Claimed but died before the first heartbeat: judged by started_at.
	noBeatKey := seed("nobeat", task.StatusRunning, 0, 200*time.Second)
	queuedKey := seed("queued", task.StatusQueued, 0, 0)
	heldKey := seed("held", task.StatusOnHold, 200*time.Second, 300*time.Second)
	// RUNNING but with no timestamps at all: nothing to judge by.
	orphanKey := seed("orphan", task.StatusRunning, 0, 0)

	sweeper := NewRecoverySweeper(store, zap.NewNop())
	sweeper.now = func() time.Time { return now }
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	for _, key := range []string{staleKey, noBeatKey} {
		rec := store.get(key)
		if rec.Status != task.StatusFailed {
			t.Errorf("%s: status = %s, want failed", key, rec.Status)
		}
		if rec.StatusReason != "worker died unexpectedly" {
			t.Errorf("%s: reason = %q", key, rec.StatusReason)
		}
		if rec.DoneAt == 0 {
			t.Errorf("%s: terminal record has no done_at", key)
		}
	}

	if rec := store.get(freshKey); rec.Status != task.StatusRunning {
		t.Errorf("fresh record touched: %s", rec.Status)
	}
	if rec := store.get(queuedKey); rec.Status != task.StatusQueued {
		t.Errorf("queued record touched: %s", rec.Status)
	}
	if rec := store.get(heldKey); rec.Status != task.StatusOnHold {
		t.Errorf("on_hold record touched: %s", rec.Status)
	}
	if rec := store.get(orphanKey); rec.Status != task.StatusRunning {
		t.Errorf("record without timestamps touched: %s", rec.Status)
	}
}

func TestSweeper_EmptyStoreIsFine(t *testing.T) {
	sweeper := NewRecoverySweeper(newMemStore(), zap.NewNop())
	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}
