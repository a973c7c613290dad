package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrTaskNotFound is returned when no record matches a user/task pair.
var ErrTaskNotFound = errors.New("task not found")

// Store persists task records and the work queue in Redis. Enqueue is "atomic
// enough": a worker that pops a key immediately re-reads the record and
// discards the pop if the record is gone.
type Store struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, logger *zap.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

// Enqueue persists a fresh record with the queued TTL and pushes its key onto
// the work queue. Returns the record key.
func (s *Store) Enqueue(ctx context.Context, userID int64, rec *Record) (string, error) {
	key := TaskKey(rec.Kind, userID, rec.TaskID)

	raw, err := rec.Encode()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, key, raw, TTLQueued).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", key, err)
	}
	if err := s.rdb.RPush(ctx, QueueName, key).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", key, err)
	}

	s.logger.Info("Task enqueued",
		zap.String("key", key),
		zap.String("kind", string(rec.Kind)))
	return key, nil
}

// PopNext blocks up to timeout for the next task key. Returns "" when the
// queue stayed empty.
func (s *Store) PopNext(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.rdb.BLPop(ctx, timeout, QueueName).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pop task queue: %w", err)
	}
	// BLPOP answers [queue, element].
	return res[1], nil
}

// Load reads one record. A missing key yields (nil, nil): records expire by
// TTL and cancellation may delete them under a running worker.
func (s *Store) Load(ctx context.Context, key string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return DecodeRecord(raw)
}

// Save writes the record back under its key with the given TTL.
func (s *Store) Save(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	raw, err := rec.Encode()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Touch atomically refreshes a running record's heartbeat and TTL. Missing
// and terminal records are left untouched so a cancellation racing the
// heartbeat wins; optimistic-lock conflicts are silently dropped and the next
// beat retries.
func (s *Store) Touch(ctx context.Context, key, workerID string) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := DecodeRecord(raw)
		if err != nil {
			return err
		}
		if rec.Status.Terminal() {
			return nil
		}

		rec.LastHeartbeat = time.Now().Unix()
		rec.WorkerID = workerID
		encoded, err := rec.Encode()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, TTLRunning)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("touch %s: %w", key, err)
	}
	return nil
}

// ListForUser yields every task record belonging to the user, any status.
func (s *Store) ListForUser(ctx context.Context, userID int64) ([]*Record, error) {
	var records []*Record

	iter := s.rdb.Scan(ctx, 0, UserTasksPattern(userID), 0).Iterator()
	for iter.Next(ctx) {
		rec, err := s.Load(ctx, iter.Val())
		if err != nil {
			s.logger.Warn("Skipping unreadable task record",
				zap.String("key", iter.Val()),
				zap.Error(err))
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks for user %d: %w", userID, err)
	}
	return records, nil
}

// ScanKeys yields every key matching pattern. Used by the recovery sweeper.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	iter := s.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}

// MarkCancelled flips the unique record matching (userID, taskID) to
// CANCELED with the terminal TTL. The owning worker observes the change at
// its next cancellation check and aborts cooperatively. Cancelling an
// already-terminal task is a no-op.
func (s *Store) MarkCancelled(ctx context.Context, userID int64, taskID string) error {
	keys, err := s.ScanKeys(ctx, UserTaskPattern(userID, taskID))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return ErrTaskNotFound
	}
	if len(keys) > 1 {
		s.logger.Warn("Multiple records matched a single task id; cancelling the first",
			zap.Int64("user_id", userID),
			zap.String("task_id", taskID),
			zap.Strings("keys", keys))
	}

	key := keys[0]
	rec, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrTaskNotFound
	}
	if rec.Status.Terminal() {
		return nil
	}

	if err := rec.Transition(StatusCanceled, "canceled by user"); err != nil {
		return err
	}
	if err := s.Save(ctx, key, rec, TTLTerminal); err != nil {
		return err
	}

	s.logger.Info("Task cancelled",
		zap.String("key", key),
		zap.Int64("user_id", userID))
	return nil
}
