package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockRepository hands out short-lived named locks shared by every API replica.
type RedisLockRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisLockRepository builds a Redis backed locker.
func NewRedisLockRepository(client *redis.Client, prefix string) *RedisLockRepository {
	return &RedisLockRepository{client: client, prefix: prefix}
}

// TryAcquire sets the lock key if absent. The bool is false when another holder owns it;
// otherwise the returned func gives the lock back.
func (r *RedisLockRepository) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := r.prefix + name
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// LocalLockRepository is the in-process locker used when Redis is not configured.
type LocalLockRepository struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLockRepository builds an in-memory locker.
func NewLocalLockRepository() *LocalLockRepository {
	return &LocalLockRepository{held: make(map[string]time.Time), clock: time.Now}
}

// TryAcquire mirrors RedisLockRepository.TryAcquire; expired holders are evicted.
func (r *LocalLockRepository) TryAcquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	if expiry, ok := r.held[name]; ok && now.Before(expiry) {
		return nil, false, nil
	}
	expiry := now.Add(ttl)
	r.held[name] = expiry
	release := func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.held[name]; ok && current.Equal(expiry) {
			delete(r.held, name)
		}
		return nil
	}
	return release, true, nil
}
