package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps fixed window counters. Get reports a zero count for a key
// without a live window.
type Store interface {
	Get(ctx context.Context, key string) (count int, resetTime time.Time, err error)
	Increment(ctx context.Context, key string, period time.Duration) (count int, resetTime time.Time, err error)
	Reset(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.data[key]; exists && s.now().Before(e.resetTime) {
		return e.count, e.resetTime, nil
	}

	return 0, time.Time{}, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, period time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.data[key]; exists && now.Before(e.resetTime) {
		e.count++
		return e.count, e.resetTime, nil
	}

	e := &entry{count: 1, resetTime: now.Add(period)}
	s.data[key] = e

	return e.count, e.resetTime, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close stops the background cleanup.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, entry := range s.data {
				if now.After(entry.resetTime) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisStore shares counters between instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, s.prefix+key)
		ttl = pipe.PTTL(ctx, s.prefix+key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	count, err := get.Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("failed to parse rate limit counter: %w", err)
	}

	return count, time.Now().Add(ttl.Val()), nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, period time.Duration) (int, time.Time, error) {
	count, err := s.client.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, s.prefix+key, period).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		return 1, time.Now().Add(period), nil
	}

	ttl, err := s.client.PTTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl < 0 {
		// counter survived without expiry
		if err := s.client.PExpire(ctx, s.prefix+key, period).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = period
	}

	return int(count), time.Now().Add(ttl), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}
