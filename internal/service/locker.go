package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Locker grants exclusive generation rights for a key. Acquire blocks until
// the lock is held or ctx ends; the returned release is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker serializes holders within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

// Acquire waits for key to be free. ttl is ignored; holders always release.
func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// releaseScript deletes the lock only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares generation locks between replicas with SET NX PX.
// The TTL bounds how long a crashed holder can block a key.
type RedisLocker struct {
	client *redis.Client
	poll   time.Duration
	prefix string
	logger *logrus.Logger
}

// NewRedisLocker creates a locker polling every poll interval while contended
func NewRedisLocker(client *redis.Client, poll time.Duration, logger *logrus.Logger) *RedisLocker {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &RedisLocker{client: client, poll: poll, prefix: "propcast:lock:", logger: logger}
}

// Acquire polls until the key is set by us or ctx ends
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	redisKey := l.prefix + key

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
						l.logger.WithError(err).WithField("key", key).Warn("Failed to release generation lock")
					}
				})
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
