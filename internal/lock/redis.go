package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX so several engine processes can share jobs.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisClient builds a client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisLocker wraps client; keys are stored under prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Acquire takes key for ttl or returns ErrLockHeld.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", full, err)
		}
		return nil
	}, nil
}
