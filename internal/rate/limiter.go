package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix          string
	MaxCodeRequests int
	Window          time.Duration
}

// Limiter enforces the per-user code-request budget and records the flood
// waits the network hands back, using Redis so the budget survives restarts
// and is shared across instances.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) codeRequestKey(userID string) string {
	return l.config.Prefix + ":cr:" + userID
}

func (l *Limiter) floodWaitKey(phone string) string {
	return l.config.Prefix + ":fw:" + phone
}

// CheckCodeRequest reports the remaining wait before userID may request
// another code for phone. Zero means the request may proceed. Checks the
// phone's flood-wait record first, then the user's fixed-window budget.
func (l *Limiter) CheckCodeRequest(ctx context.Context, userID, phone string) (time.Duration, error) {
	wait, err := l.remainingTTL(ctx, l.floodWaitKey(phone))
	if err != nil {
		return 0, err
	}
	if wait > 0 {
		return wait, ErrRateLimited
	}

	count, err := l.currentCount(ctx, l.codeRequestKey(userID))
	if err != nil {
		return 0, err
	}
	if count >= int64(l.config.MaxCodeRequests) {
		wait, err = l.remainingTTL(ctx, l.codeRequestKey(userID))
		if err != nil {
			return 0, err
		}
		if wait <= 0 {
			wait = l.config.Window
		}
		return wait, ErrRateLimited
	}

	return 0, nil
}

// RecordCodeRequest charges one code request against userID's window.
func (l *Limiter) RecordCodeRequest(ctx context.Context, userID string) error {
	key := l.codeRequestKey(userID)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// RecordFloodWait stores the wait the network demanded for phone. The key
// expires exactly when the wait ends.
func (l *Limiter) RecordFloodWait(ctx context.Context, phone string, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	if err := l.redis.Set(ctx, l.floodWaitKey(phone), "1", wait).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) currentCount(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

func (l *Limiter) remainingTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		// -1 (no expiry) and -2 (missing key) both mean no active wait.
		return 0, nil
	}
	return ttl, nil
}
