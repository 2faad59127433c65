package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const failureKeyPrefix = "intel:login_failures:"

// RedisTracker shares failure counters between processes. Each username is a
// hash {count, last} whose TTL is reset to the window on every failure.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
}

func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{client: client, window: window}
}

func failureKey(username string) string {
	return failureKeyPrefix + username
}

func (t *RedisTracker) Get(ctx context.Context, username string) (FailureRecord, bool, error) {
	values, err := t.client.HGetAll(ctx, failureKey(username)).Result()
	if err != nil {
		return FailureRecord{}, false, fmt.Errorf("read login failures: %w", err)
	}
	if len(values) == 0 {
		return FailureRecord{}, false, nil
	}
	return parseFailureRecord(values)
}

func (t *RedisTracker) Record(ctx context.Context, username string, at time.Time) (FailureRecord, error) {
	key := failureKey(username)

	pipe := t.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, "count", 1)
	pipe.HSet(ctx, key, "last", at.UnixNano())
	pipe.Expire(ctx, key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return FailureRecord{}, fmt.Errorf("record login failure: %w", err)
	}
	return FailureRecord{Count: int(incr.Val()), LastFailure: at}, nil
}

func (t *RedisTracker) Clear(ctx context.Context, username string) error {
	if err := t.client.Del(ctx, failureKey(username)).Err(); err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	return nil
}

func parseFailureRecord(values map[string]string) (FailureRecord, bool, error) {
	count, err := strconv.Atoi(values["count"])
	if err != nil {
		return FailureRecord{}, false, fmt.Errorf("parse failure count: %w", err)
	}
	last, err := strconv.ParseInt(values["last"], 10, 64)
	if err != nil {
		return FailureRecord{}, false, fmt.Errorf("parse failure time: %w", err)
	}
	return FailureRecord{Count: count, LastFailure: time.Unix(0, last)}, true, nil
}
