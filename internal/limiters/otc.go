package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goOnboard/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrOTCRateLimited        = errors.New("otc rate limited")
	ErrOTCLimiterUnavailable = errors.New("otc limiter unavailable")
)

type OTCConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	RequestWindow            time.Duration
	MaxRequests              int
	VerifyWindow             time.Duration
	MaxVerifyAttempts        int
}

// OTCLimiter throttles code issuance and verification per hashed address and per IP.
type OTCLimiter struct {
	redis  redis.UniversalClient
	config OTCConfig
}

func NewOTCLimiter(redisClient redis.UniversalClient, cfg OTCConfig) *OTCLimiter {
	return &OTCLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts one issuance (request or resend).
func (l *OTCLimiter) CheckRequest(ctx context.Context, addressHash, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, otcRequestKey(addressHash), l.config.RequestWindow, l.config.MaxRequests); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, otcRequestIPKey(ip), l.config.RequestWindow, l.config.MaxRequests); err != nil {
			return err
		}
	}
	return nil
}

// CheckVerify counts one verification attempt.
func (l *OTCLimiter) CheckVerify(ctx context.Context, addressHash, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := l.enforce(ctx, otcVerifyKey(addressHash), l.config.VerifyWindow, l.config.MaxVerifyAttempts); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, otcVerifyIPKey(ip), l.config.VerifyWindow, l.config.MaxVerifyAttempts); err != nil {
			return err
		}
	}
	return nil
}

// ResetVerify clears the verify counter after a successful verification.
func (l *OTCLimiter) ResetVerify(ctx context.Context, addressHash string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, otcVerifyKey(addressHash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTCLimiterUnavailable, err)
	}
	return nil
}

func (l *OTCLimiter) enforce(ctx context.Context, key string, window time.Duration, max int) error {
	count, err := rate.FixedWindow(ctx, l.redis, key, window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTCLimiterUnavailable, err)
	}
	if count > int64(max) {
		return ErrOTCRateLimited
	}
	return nil
}

func otcRequestKey(addressHash string) string {
	return "obor:" + addressHash
}

func otcRequestIPKey(ip string) string {
	return "oborip:" + ip
}

func otcVerifyKey(addressHash string) string {
	return "obov:" + addressHash
}

func otcVerifyIPKey(ip string) string {
	return "obovip:" + ip
}
