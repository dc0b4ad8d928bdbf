// Package lock provides a best-effort distributed mutex on Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotObtained = errors.New("lock is held by another process")

type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisLocker(rdb redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (l *RedisLocker) key(name string) string {
	return l.prefix + ":lock:" + name
}

// Obtain sets the lock key if absent. The key expires after ttl so a
// crashed holder cannot block later runs.
func (l *RedisLocker) Obtain(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.key(name)
	ok, err := l.rdb.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotObtained
	}

	release := func(ctx context.Context) error {
		if err := l.rdb.Del(ctx, key).Err(); err != nil {
			slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
			return err
		}
		return nil
	}
	return release, nil
}
