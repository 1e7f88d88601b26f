package redisclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("resource lock not acquired")
)

// Locker guards the check-then-insert critical section for a single
// contended resource (a doctor's calendar slot). The key identifies
// the resource; concurrent callers with the same key are serialized.
type Locker interface {
	WithResourceLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisResourceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResourceLocker creates a locker that uses a per resource Redis key
func NewRedisResourceLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisResourceLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisResourceLocker) WithResourceLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire resource lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// The TTL still reclaims the key, but a failed release means
		// the slot stays locked for up to that long.
		if err := l.release(ctx, lockKey, token); err != nil {
			log.Printf("release resource lock %s: %v", lockKey, err)
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisResourceLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release resource lock: %w", err)
	}
	return nil
}
