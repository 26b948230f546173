// Package replay counts refresh token reuse per subject so that repeated
// replays stay visible across process restarts.
package replay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker records presentations of already rotated refresh tokens.
type Tracker interface {
	// Record notes one reuse of tokenID by subjectID and returns the number
	// of reuse events seen for the subject within the tracking window.
	Record(ctx context.Context, subjectID uint, tokenID string) (int64, error)
	Count(ctx context.Context, subjectID uint) (int64, error)
}

type RedisTracker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (t *RedisTracker) countKey(subjectID uint) string {
	return t.prefix + strconv.FormatUint(uint64(subjectID), 10)
}

func (t *RedisTracker) Record(ctx context.Context, subjectID uint, tokenID string) (int64, error) {
	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, t.countKey(subjectID))
		pipe.Expire(ctx, t.countKey(subjectID), t.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record token reuse: %w", err)
	}

	return incr.Val(), nil
}

func (t *RedisTracker) Count(ctx context.Context, subjectID uint) (int64, error) {
	count, err := t.client.Get(ctx, t.countKey(subjectID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read token reuse count: %w", err)
	}

	return count, nil
}

// NopTracker is used when reuse tracking is disabled.
type NopTracker struct{}

func (NopTracker) Record(context.Context, uint, string) (int64, error) { return 0, nil }

func (NopTracker) Count(context.Context, uint) (int64, error) { return 0, nil }
