package taskredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markhub/classifier/internal/core/domain"
)

// Store keeps submit+poll task records as JSON values under a TTL so
// abandoned polls clean themselves up.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = domain.RemoteTaskTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Create(ctx context.Context, task *domain.RemoteTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	if err := s.rdb.Set(ctx, recordKey(task.ID), payload, s.ttl).Err(); err != nil {
		return domain.WrapError(domain.ErrTransport, "create task record", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.RemoteTask, error) {
	raw, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.WrapError(domain.ErrTaskNotFound, "get task record", fmt.Errorf("task %s", id))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrTransport, "get task record", err)
	}

	var task domain.RemoteTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task record %s: %w", id, err)
	}
	return &task, nil
}

// Update overwrites the stored record while keeping its remaining TTL.
// A record that already reached a terminal status is left untouched.
func (s *Store) Update(ctx context.Context, task *domain.RemoteTask) error {
	current, err := s.Get(ctx, task.ID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		slog.Warn("task_record_update_ignored",
			"task_id", task.ID,
			"stored_status", current.Status,
			"requested_status", task.Status,
		)
		return nil
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	if err := s.rdb.Set(ctx, recordKey(task.ID), payload, redis.KeepTTL).Err(); err != nil {
		return domain.WrapError(domain.ErrTransport, "update task record", err)
	}
	return nil
}

func recordKey(id string) string {
	return "classifier:task:" + id
}
