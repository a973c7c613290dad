// Package task persists task records and the work queue in Redis.
//
// The KV is the single source of truth for task state: only the worker that
// owns a task writes non-terminal transitions for it, API handlers write
// idempotent cancellations, and the recovery sweeper writes RUNNING→FAILED on
// stale records.
package task

import (
	"encoding/json"
	"fmt"
	"time"

	"tunesync/internal/core"
)

// TaskStatus is the lifecycle state of a task record.
type TaskStatus string

const (
	StatusQueued   TaskStatus = "queued"
	StatusRunning  TaskStatus = "running"
	StatusFinished TaskStatus = "finished"
	StatusFailed   TaskStatus = "failed"
	StatusCanceled TaskStatus = "canceled"
	StatusOnHold   TaskStatus = "on_hold"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo validates the status state machine:
//
//	QUEUED ──pop──► RUNNING ──ok──► FINISHED
//	                │             ├──err──► FAILED
//	                │             └──user──► CANCELED
//	                ├──pause──► ON_HOLD ──resume──► RUNNING
//	                └──shutdown──► ON_HOLD
//
// Re-asserting the current status is always legal; terminal states accept
// nothing.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s == next {
		return !s.Terminal()
	}

	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusCanceled
	case StatusRunning:
		return next == StatusFinished || next == StatusFailed || next == StatusCanceled || next == StatusOnHold
	case StatusOnHold:
		return next == StatusRunning || next == StatusFailed || next == StatusCanceled
	}
	return false
}

// TaskKind discriminates the task payload.
type TaskKind string

// KindPlaylistTransfer replicates a playlist from one provider onto another.
const KindPlaylistTransfer TaskKind = "user_initiated_playlist_transfer"

// TransferArgs are the arguments of a playlist transfer task.
type TransferArgs struct {
	FromProvider core.ServiceName `json:"from_provider"`
	ToProvider   core.ServiceName `json:"to_provider"`
	FromPlaylist string           `json:"from_playlist"`
}

// TaskProgress tracks how far a playlist task has come. InQueue is always
// len(source tracks) - Handled after each increment.
type TaskProgress struct {
	Track      *core.Track `json:"track,omitempty"`
	CoverImage string      `json:"cover_image,omitempty"`
	Handled    int         `json:"handled"`
	InQueue    int         `json:"in_queue"`
}

// Record is the persisted form of a task. It is exclusively owned by the
// worker currently holding it; ownership is a status+heartbeat convention,
// not a lock.
type Record struct {
	TaskID        string       `json:"task_id"`
	Kind          TaskKind     `json:"kind"`
	Status        TaskStatus   `json:"status"`
	StatusReason  string       `json:"status_reason,omitempty"`
	Arguments     TransferArgs `json:"arguments"`
	Progress      TaskProgress `json:"progress"`
	QueuedAt      int64        `json:"queued_at"`
	StartedAt     int64        `json:"started_at,omitempty"`
	DoneAt        int64        `json:"done_at,omitempty"`
	LastHeartbeat int64        `json:"last_heartbeat,omitempty"`
	WorkerID      string       `json:"worker_id,omitempty"`
}

// Transition moves the record to next, validating against the state machine.
// The reason replaces any previous one; terminal transitions stamp DoneAt.
func (r *Record) Transition(next TaskStatus, reason string) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: illegal task transition %s -> %s", core.ErrInvalidArgument, r.Status, next)
	}

	r.Status = next
	r.StatusReason = reason
	if next.Terminal() {
		r.DoneAt = time.Now().Unix()
	}
	return nil
}

// Encode serializes the record for storage.
func (r *Record) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode task record: %w", err)
	}
	return string(raw), nil
}

// DecodeRecord parses a stored record.
func DecodeRecord(raw string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	return &rec, nil
}
