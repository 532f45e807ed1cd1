package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sheetvend-api/internal/errs"
	"sheetvend-api/pkg/uid"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultTTL bounds how long a crashed holder can block the key.
	DefaultTTL = 4 * time.Minute

	retryInterval  = 50 * time.Millisecond
	releaseTimeout = 5 * time.Second
)

// Only the holder that set the token may delete the key.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker shared by every process talking to the same Redis.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *zap.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client *redis.Client, keyPrefix string, ttl time.Duration, log *zap.Logger) *Redis {
	if keyPrefix == "" {
		keyPrefix = "sheetvend:lock"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, keyPrefix: keyPrefix, ttl: ttl, log: log}
}

func (r *Redis) lockKey(key string) string {
	return r.keyPrefix + ":" + key
}

// Acquire polls SET NX until it wins or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := r.lockKey(key)
	token := uid.Token()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", errs.ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrLockTimeout, key, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.log.Warn("lock release failed", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}, nil
}

// Ensure Redis implements Locker
var _ Locker = (*Redis)(nil)
