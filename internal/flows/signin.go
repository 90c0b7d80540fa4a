package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goOnboard/session"
)

type SignInMetrics struct {
	SignInSuccess     int
	SignInFailure     int
	SignInRateLimited int
}

type SignInErrors struct {
	EngineNotReady     error
	InvalidInput       error
	AuthRejected       error
	RateLimited        error
	ServiceUnavailable error
}

type SignInDeps struct {
	HashAddress         func(string) string
	ClientIPFromContext func(context.Context) string

	CheckThrottle     func(ctx context.Context, addressHash, ip string) error
	IncrementThrottle func(ctx context.Context, addressHash, ip string) error
	ResetThrottle     func(ctx context.Context, addressHash string) error
	MapLimiterError   func(error) error

	SignIn          func(ctx context.Context, email, password string) (*session.Session, error)
	MapServiceError func(error) error

	MetricInc     func(int)
	EmitAudit     func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	EmitRateLimit func(ctx context.Context, scope string, metadata func() map[string]string)

	Event   string
	Metrics SignInMetrics
	Errors  SignInErrors
}

// RunSignIn exchanges credentials for a session. Rejected credentials count against the
// per-address throttle; a success clears it.
func RunSignIn(ctx context.Context, email, password string, deps SignInDeps) (*session.Session, error) {
	normalizeSignInDeps(&deps)

	if deps.SignIn == nil || deps.HashAddress == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if strings.TrimSpace(email) == "" || password == "" {
		deps.MetricInc(deps.Metrics.SignInFailure)
		deps.EmitAudit(ctx, deps.Event, false, "", deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"reason": "missing_credentials",
			}
		})
		return nil, deps.Errors.InvalidInput
	}

	hash := deps.HashAddress(email)
	ip := deps.ClientIPFromContext(ctx)
	meta := func() map[string]string {
		return map[string]string{
			"address_hash": hash,
		}
	}

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, hash, ip); err != nil {
			mapped := deps.MapLimiterError(err)
			deps.MetricInc(deps.Metrics.SignInFailure)
			deps.EmitAudit(ctx, deps.Event, false, "", mapped, meta)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.SignInRateLimited)
				deps.EmitRateLimit(ctx, "signin", meta)
			}
			return nil, mapped
		}
	}

	sess, err := deps.SignIn(ctx, email, password)
	if err != nil {
		mapped := deps.MapServiceError(err)
		deps.MetricInc(deps.Metrics.SignInFailure)
		if errors.Is(mapped, deps.Errors.AuthRejected) && deps.IncrementThrottle != nil {
			_ = deps.IncrementThrottle(ctx, hash, ip)
		}
		deps.EmitAudit(ctx, deps.Event, false, "", mapped, meta)
		return nil, mapped
	}

	if deps.ResetThrottle != nil {
		_ = deps.ResetThrottle(ctx, hash)
	}
	deps.MetricInc(deps.Metrics.SignInSuccess)
	deps.EmitAudit(ctx, deps.Event, true, sess.Identity.ID, nil, meta)
	return sess, nil
}

func normalizeSignInDeps(deps *SignInDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
	if deps.MapServiceError == nil {
		deps.MapServiceError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
}
