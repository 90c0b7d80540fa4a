package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds sign-in throttle tuning parameters.
type Config struct {
	EnableIPThrottle  bool
	MaxSignInAttempts int
	SignInCooldown    time.Duration
}

// Limiter enforces per-address and per-IP budgets for failed sign-ins using Redis
// counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckSignIn checks whether the address+IP pair is within the failed sign-in budget.
func (l *Limiter) CheckSignIn(ctx context.Context, addressHash, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.checkCounter(ctx, signInAddressKey(addressHash), l.config.MaxSignInAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, signInIPKey(ip), l.config.MaxSignInAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementSignIn records a failed sign-in for the address+IP pair.
func (l *Limiter) IncrementSignIn(ctx context.Context, addressHash, ip string) error {
	if l == nil {
		return nil
	}
	count, err := FixedWindow(ctx, l.redis, signInAddressKey(addressHash), l.config.SignInCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSignInAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = FixedWindow(ctx, l.redis, signInIPKey(ip), l.config.SignInCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxSignInAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetSignIn clears the failed sign-in counter after a successful sign-in.
func (l *Limiter) ResetSignIn(ctx context.Context, addressHash, ip string) error {
	if l == nil {
		return nil
	}
	keys := []string{signInAddressKey(addressHash)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, signInIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// SignInAttempts returns the current failed-attempt counter for an address.
func (l *Limiter) SignInAttempts(ctx context.Context, addressHash string) (int, error) {
	count, err := l.redis.Get(ctx, signInAddressKey(addressHash)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// FixedWindow increments key and starts its window on the first hit. It returns the
// count within the current window.
func FixedWindow(ctx context.Context, rdb redis.UniversalClient, key string, window time.Duration) (int64, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func signInAddressKey(addressHash string) string {
	return "obsi:a:" + addressHash
}

func signInIPKey(ip string) string {
	return "obsi:ip:" + ip
}
