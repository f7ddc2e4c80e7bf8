// Package lock provides per-key mutual exclusion with a TTL so a crashed
// holder never blocks a meeting forever.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Locker acquires exclusive, expiring locks by key.
type Locker interface {
	// TryLock returns ok=false without blocking when the key is held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares locks across every instance pointed at the same Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker parses url, connects and pings.
func NewRedisLocker(ctx context.Context, url string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLocker{client: client, prefix: "meetingbot:lock:"}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// Fresh context: the caller's may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
	}
	return unlock, true, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// MemoryLocker keeps locks in process memory. It is the fallback when no
// Redis is configured and is only correct for a single instance.
type MemoryLocker struct {
	mu    sync.Mutex
	store *gocache.Cache
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{store: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	l.mu.Lock()
	err := l.store.Add(key, token, ttl)
	l.mu.Unlock()
	if err != nil {
		return nil, false, nil
	}

	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, found := l.store.Get(key); found && current == token {
			l.store.Delete(key)
		}
	}
	return unlock, true, nil
}
