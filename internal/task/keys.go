package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key layout is bit-exact and shared with external consumers; do not change
// it without a migration.
const (
	// QueueName is the Redis list holding task keys in FIFO order.
	QueueName = "user_tasks_queue"

	taskKeyPrefix = "user_tasks"
)

// TTLs for task records by lifecycle phase.
const (
	TTLQueued   = time.Hour
	TTLRunning  = time.Hour // refreshed on every heartbeat
	TTLTerminal = 24 * time.Hour
)

// Heartbeat settings.
const (
	// HeartbeatInterval is how often a worker refreshes LastHeartbeat.
	HeartbeatInterval = 30 * time.Second
	// StaleThreshold is how old a heartbeat may be before the recovery
	// sweeper declares the owning worker dead.
	StaleThreshold = 120 * time.Second
)

// TaskKey builds the record key: user_tasks:{kind}:{user_id}:{task_id}.
func TaskKey(kind TaskKind, userID int64, taskID string) string {
	return fmt.Sprintf("%s:%s:%d:%s", taskKeyPrefix, kind, userID, taskID)
}

// ParseTaskKey splits a record key into its components.
func ParseTaskKey(key string) (kind TaskKind, userID int64, taskID string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != taskKeyPrefix {
		return "", 0, "", fmt.Errorf("invalid task key %q", key)
	}

	userID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("invalid user id in task key %q: %w", key, err)
	}
	return TaskKind(parts[1]), userID, parts[3], nil
}

// UserTasksPattern matches every task key belonging to one user.
func UserTasksPattern(userID int64) string {
	return fmt.Sprintf("%s:*:%d:*", taskKeyPrefix, userID)
}

// UserTaskPattern matches a single task of one user regardless of kind.
func UserTaskPattern(userID int64, taskID string) string {
	return fmt.Sprintf("%s:*:%d:%s", taskKeyPrefix, userID, taskID)
}

// AllTasksPattern matches every task key; used by the recovery sweeper.
func AllTasksPattern() string {
	return taskKeyPrefix + ":*:*:*"
}
