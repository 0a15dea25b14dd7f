package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/pkg/logger"
)

const scanBatch = 500

type Client struct {
	client *redis.Client
}

// NewClient connects to redis. An unreachable server at startup is logged
// rather than returned: the cache degrades to misses until it recovers.
func NewClient(ctx context.Context, addr, password string, db int) *Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, search cache will miss until it recovers",
			zap.String("addr", addr), zap.Error(err))
	} else {
		logger.Info("Redis client initialized", zap.String("addr", addr))
	}

	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// ScanDelete removes all keys starting with prefix using SCAN, so the
// server is never blocked by a KEYS call. Keys are collected before any
// delete so the deletes cannot shift the cursor past unvisited keys.
func (c *Client) ScanDelete(ctx context.Context, prefix string) (int, error) {
	seen := make(map[string]struct{})
	var keys []string

	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	deleted := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := c.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete cache keys: %w", err)
		}
		deleted += int(n)
	}

	logger.Debug("Cache keys deleted", zap.String("prefix", prefix), zap.Int("count", deleted))
	return deleted, nil
}
