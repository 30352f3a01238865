package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"market/pkg/platform/sentinel"
)

const (
	keyPrefix  = "provision:"
	defaultTTL = 5 * time.Second
	retryDelay = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still carries our token, so a lock
// that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes first-contact provisioning of a login across instances.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire blocks until the lock for key is held or ctx is done. A lock is held
// for at most the configured TTL; the returned func releases it.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", redisKey, err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
					return fmt.Errorf("release lock %s: %w", redisKey, err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w: %w", redisKey, sentinel.ErrLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}
