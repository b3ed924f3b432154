// Package cache provides the optional Redis/Valkey cache used to persist
// background task status across restarts. All methods are safe on a nil
// receiver so the cache can simply be absent.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/permitkit/permitflow/internal/config"
)

// TaskStatus is the persisted record of a task's most recent run.
type TaskStatus struct {
	LastRun time.Time `json:"last_run"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
}

// RedisCache wraps the redis client.
type RedisCache struct {
	client *redis.Client
}

// New connects to the configured redis instance. Returns nil (not an error)
// when the cache is disabled.
func New(cfg *config.RedisConfig) (*RedisCache, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

func taskKey(name string) string {
	return "permitflow:task:" + name
}

// SetTaskStatus stores the latest run result for a task.
func (c *RedisCache) SetTaskStatus(ctx context.Context, name string, status TaskStatus) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode task status: %w", err)
	}
	return c.client.Set(ctx, taskKey(name), data, 7*24*time.Hour).Err()
}

// GetTaskStatus loads the latest run result for a task. Returns nil when the
// cache is absent or the key does not exist.
func (c *RedisCache) GetTaskStatus(ctx context.Context, name string) (*TaskStatus, error) {
	if c == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, taskKey(name)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task status: %w", err)
	}
	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode task status: %w", err)
	}
	return &status, nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
