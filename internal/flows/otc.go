package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

// OTCWindow mirrors the server-side record of an issued code.
type OTCWindow struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
	ResendAt  time.Time
	Resends   int
}

type OTCMetrics struct {
	OTCRequest     int
	OTCResend      int
	OTCCooldown    int
	OTCVerify      int
	OTCVerifyFail  int
	OTCExpired     int
	OTCRateLimited int
}

type OTCEvents struct {
	OTCRequest string
	OTCResend  string
	OTCVerify  string
}

type OTCErrors struct {
	EngineNotReady     error
	InvalidInput       error
	AuthRejected       error
	CodeExpired        error
	Cooldown           error
	NoChallenge        error
	RateLimited        error
	ServiceUnavailable error
}

// OTCDeps wires the code flows. Window functions return store errors unmapped;
// IssueWindow also returns the current window alongside a cooldown error.
type OTCDeps struct {
	HashAddress         func(string) string
	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckRequestLimiter func(ctx context.Context, addressHash, ip string) error
	CheckVerifyLimiter  func(ctx context.Context, addressHash, ip string) error
	ResetVerifyLimiter  func(ctx context.Context, addressHash string) error
	MapLimiterError     func(error) error

	IssueWindow     func(ctx context.Context, addressHash string, purpose otc.Purpose, now time.Time) (OTCWindow, error)
	CheckWindow     func(ctx context.Context, addressHash string, purpose otc.Purpose, now time.Time) (OTCWindow, error)
	CloseWindow     func(ctx context.Context, addressHash string, purpose otc.Purpose) error
	MapStoreError   func(error) error
	SendCode        func(ctx context.Context, address string, purpose otc.Purpose) error
	ResendCode      func(ctx context.Context, address string, purpose otc.Purpose) error
	VerifyCode      func(ctx context.Context, address, code string, purpose otc.Purpose) (*session.Session, error)
	MapServiceError func(error) error

	MetricInc     func(int)
	EmitAudit     func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	EmitRateLimit func(ctx context.Context, scope string, metadata func() map[string]string)

	Metrics OTCMetrics
	Events  OTCEvents
	Errors  OTCErrors
}

// RunRequestOTC opens a code window for address and asks the service to send the code.
// A window still inside its resend cooldown is returned with Errors.Cooldown.
func RunRequestOTC(ctx context.Context, address string, purpose otc.Purpose, deps OTCDeps) (OTCWindow, error) {
	normalizeOTCDeps(&deps)
	return issueOTC(ctx, address, purpose, false, deps)
}

// RunResendOTC reissues the code of an existing window, expired or not. Without a
// window on record it fails with Errors.NoChallenge.
func RunResendOTC(ctx context.Context, address string, purpose otc.Purpose, deps OTCDeps) (OTCWindow, error) {
	normalizeOTCDeps(&deps)
	return issueOTC(ctx, address, purpose, true, deps)
}

func issueOTC(ctx context.Context, address string, purpose otc.Purpose, resend bool, deps OTCDeps) (OTCWindow, error) {
	event, metric := deps.Events.OTCRequest, deps.Metrics.OTCRequest
	send := deps.SendCode
	if resend {
		event, metric = deps.Events.OTCResend, deps.Metrics.OTCResend
		send = deps.ResendCode
	}

	if deps.IssueWindow == nil || deps.CheckWindow == nil || deps.CloseWindow == nil || send == nil || deps.HashAddress == nil {
		return OTCWindow{}, deps.Errors.EngineNotReady
	}
	if address == "" {
		deps.EmitAudit(ctx, event, false, "", deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"reason": "empty_address",
			}
		})
		return OTCWindow{}, deps.Errors.InvalidInput
	}

	hash := deps.HashAddress(address)
	meta := func() map[string]string {
		return map[string]string{
			"address_hash": hash,
			"purpose":      string(purpose),
		}
	}

	if resend {
		if _, err := deps.CheckWindow(ctx, hash, purpose, deps.Now()); err != nil {
			// An expired window may be reissued; anything else ends the resend.
			mapped := deps.MapStoreError(err)
			if !errors.Is(mapped, deps.Errors.CodeExpired) {
				deps.EmitAudit(ctx, event, false, "", mapped, meta)
				return OTCWindow{}, mapped
			}
		}
	}

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, hash, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			deps.EmitAudit(ctx, event, false, "", mapped, meta)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.OTCRateLimited)
				deps.EmitRateLimit(ctx, "otc_request", meta)
			}
			return OTCWindow{}, mapped
		}
	}

	window, err := deps.IssueWindow(ctx, hash, purpose, deps.Now())
	if err != nil {
		mapped := deps.MapStoreError(err)
		if errors.Is(mapped, deps.Errors.Cooldown) {
			deps.MetricInc(deps.Metrics.OTCCooldown)
			deps.EmitAudit(ctx, event, false, "", mapped, meta)
			return window, mapped
		}
		deps.EmitAudit(ctx, event, false, "", mapped, meta)
		return OTCWindow{}, mapped
	}

	if err := send(ctx, address, purpose); err != nil {
		// The service never sent this code, so the window must not hold a cooldown.
		_ = deps.CloseWindow(ctx, hash, purpose)
		mapped := deps.MapServiceError(err)
		deps.EmitAudit(ctx, event, false, "", mapped, meta)
		return OTCWindow{}, mapped
	}

	deps.MetricInc(metric)
	deps.EmitAudit(ctx, event, true, "", nil, meta)
	return window, nil
}

// RunVerifyOTC checks code against the service inside the window on record. A
// malformed code is rejected before any I/O. A missing window is reported the same
// way as a wrong code so the response never reveals whether the address exists.
func RunVerifyOTC(ctx context.Context, address, code string, purpose otc.Purpose, deps OTCDeps) (*session.Session, error) {
	normalizeOTCDeps(&deps)

	if deps.CheckWindow == nil || deps.CloseWindow == nil || deps.VerifyCode == nil || deps.HashAddress == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if address == "" || !otc.ValidCode(code) {
		deps.MetricInc(deps.Metrics.OTCVerifyFail)
		deps.EmitAudit(ctx, deps.Events.OTCVerify, false, "", deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"reason": "invalid_format",
			}
		})
		return nil, deps.Errors.InvalidInput
	}

	hash := deps.HashAddress(address)
	meta := func() map[string]string {
		return map[string]string{
			"address_hash": hash,
			"purpose":      string(purpose),
		}
	}

	if deps.CheckVerifyLimiter != nil {
		if err := deps.CheckVerifyLimiter(ctx, hash, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			deps.MetricInc(deps.Metrics.OTCVerifyFail)
			deps.EmitAudit(ctx, deps.Events.OTCVerify, false, "", mapped, meta)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.OTCRateLimited)
				deps.EmitRateLimit(ctx, "otc_verify", meta)
			}
			return nil, mapped
		}
	}

	if _, err := deps.CheckWindow(ctx, hash, purpose, deps.Now()); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.OTCVerifyFail)
		switch {
		case errors.Is(mapped, deps.Errors.NoChallenge):
			deps.EmitAudit(ctx, deps.Events.OTCVerify, false, "", mapped, meta)
			return nil, deps.Errors.AuthRejected
		case errors.Is(mapped, deps.Errors.CodeExpired):
			deps.MetricInc(deps.Metrics.OTCExpired)
		}
		deps.EmitAudit(ctx, deps.Events.OTCVerify, false, "", mapped, meta)
		return nil, mapped
	}

	sess, err := deps.VerifyCode(ctx, address, code, purpose)
	if err != nil {
		mapped := deps.MapServiceError(err)
		deps.MetricInc(deps.Metrics.OTCVerifyFail)
		if errors.Is(mapped, deps.Errors.CodeExpired) {
			deps.MetricInc(deps.Metrics.OTCExpired)
			_ = deps.CloseWindow(ctx, hash, purpose)
		}
		deps.EmitAudit(ctx, deps.Events.OTCVerify, false, "", mapped, meta)
		return nil, mapped
	}

	_ = deps.CloseWindow(ctx, hash, purpose)
	if deps.ResetVerifyLimiter != nil {
		_ = deps.ResetVerifyLimiter(ctx, hash)
	}

	deps.MetricInc(deps.Metrics.OTCVerify)
	deps.EmitAudit(ctx, deps.Events.OTCVerify, true, sess.Identity.ID, nil, meta)
	return sess, nil
}

func normalizeOTCDeps(deps *OTCDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
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
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
	if deps.MapServiceError == nil {
		deps.MapServiceError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
}
