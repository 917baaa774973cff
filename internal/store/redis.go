package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL bounds how long a Redis dedup key is kept.
const DefaultDedupTTL = 7 * 24 * time.Hour

// RedisDeduper implements Deduper with SETNX so several servers share one
// dedup set.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(addr, password string, db int) *RedisDeduper {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisDeduper{client: rdb, prefix: "igt:seen:", ttl: DefaultDedupTTL}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event seen: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Unmark(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to unmark event: %w", err)
	}
	return nil
}

func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDeduper) Close() error {
	return d.client.Close()
}
