package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by someone else is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// extendScript pushes the expiry forward while the key still holds our token.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

const keyPrefix = "lostfound:lock:"

// redisClient is the part of *redis.Client the locker uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker implements Locker with SET NX PX. While a lock is held it is
// extended every third of the TTL, so the TTL only bounds how long a
// crashed holder can block others, not how long a live holder may keep it.
type RedisLocker struct {
	client redisClient
	ttl    time.Duration
	retry  time.Duration
	logger logging.Logger
}

// NewRedisLocker returns a locker whose keys expire after ttl unless the
// holder is still alive to extend them.
func NewRedisLocker(client redisClient, ttl time.Duration, logger logging.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger.With("module", "redis-locker"),
	}
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Lock blocks until key is acquired or ctx ends. The returned func releases
// the lock and may be called more than once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn(releaseCtx, "lock release failed", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := l.client.Eval(ctx, extendScript, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			l.logger.Warn(context.Background(), "lock extend failed", "key", key, "error", err)
			continue
		}
		if n == 0 {
			l.logger.Error(context.Background(), "lock lost while held", "key", key)
			return
		}
	}
}
