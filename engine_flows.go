package goOnboard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal"
	internalflows "github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/internal/stores"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
	"github.com/redis/go-redis/v9"
)

func (e *Engine) buildFlowDeps() internalflows.Deps {
	return internalflows.Deps{
		SignIn:  e.signInFlowDeps(),
		Restore: e.restoreFlowDeps(),
		OTC:     e.otcFlowDeps(),
		Profile: e.profileFlowDeps(),
	}
}

func (e *Engine) metricIncFunc() func(int) {
	return func(id int) {
		e.metricInc(MetricID(id))
	}
}

func (e *Engine) signInFlowDeps() internalflows.SignInDeps {
	deps := internalflows.SignInDeps{
		HashAddress:         internal.HashAddress,
		ClientIPFromContext: clientIPFromContext,
		MapLimiterError:     mapLimiterError,
		SignIn: func(ctx context.Context, email, password string) (*session.Session, error) {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			return e.auth.SignIn(callCtx, email, password)
		},
		MapServiceError: mapServiceError,
		MetricInc:       e.metricIncFunc(),
		EmitAudit:       e.emitAudit,
		EmitRateLimit:   e.emitRateLimit,
		Event:           auditEventSignIn,
		Metrics: internalflows.SignInMetrics{
			SignInSuccess:     int(MetricSignInSuccess),
			SignInFailure:     int(MetricSignInFailure),
			SignInRateLimited: int(MetricSignInRateLimited),
		},
		Errors: internalflows.SignInErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			AuthRejected:       ErrAuthRejected,
			RateLimited:        ErrRateLimited,
			ServiceUnavailable: ErrServiceUnavailable,
		},
	}

	if e.rateLimiter != nil {
		deps.CheckThrottle = e.rateLimiter.CheckSignIn
		deps.IncrementThrottle = e.rateLimiter.IncrementSignIn
		deps.ResetThrottle = func(ctx context.Context, addressHash string) error {
			return e.rateLimiter.ResetSignIn(ctx, addressHash, clientIPFromContext(ctx))
		}
	}

	return deps
}

func (e *Engine) restoreFlowDeps() internalflows.RestoreDeps {
	deps := internalflows.RestoreDeps{
		Now: e.now,
		Load: func(ctx context.Context, clientKey string) (*session.Session, error) {
			sess, err := e.sessionStore.Load(ctx, clientKey)
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, session.ErrSessionCorrupt):
				return nil, nil
			case err != nil:
				return nil, err
			}
			return sess, nil
		},
		Save:          e.saveSession,
		Delete:        e.sessionStore.Delete,
		MapStoreError: mapStoreError,
		Exchange: func(ctx context.Context, accessToken, refreshToken string) (*session.Session, error) {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			return e.auth.ExchangeTokens(callCtx, accessToken, refreshToken)
		},
		Refresh:         e.refreshTokens,
		MapServiceError: mapServiceError,
		MetricInc:       e.metricIncFunc(),
		EmitAudit:       e.emitAudit,
		Event:           auditEventRestore,
		Metrics: internalflows.RestoreMetrics{
			RestoreSuccess: int(MetricRestoreSuccess),
			RestoreEmpty:   int(MetricRestoreEmpty),
			RestoreFailure: int(MetricRestoreFailure),
			TokenRefreshed: int(MetricTokenRefreshed),
		},
		Errors: internalflows.RestoreErrors{
			EngineNotReady:     ErrEngineNotReady,
			AuthRejected:       ErrAuthRejected,
			ServiceUnavailable: ErrServiceUnavailable,
		},
	}

	if e.jwtManager != nil {
		deps.ParseLocal = e.parseLocal
	}

	return deps
}

func (e *Engine) otcFlowDeps() internalflows.OTCDeps {
	cfg := e.config.OTC

	return internalflows.OTCDeps{
		HashAddress:         internal.HashAddress,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		CheckRequestLimiter: e.otcLimiter.CheckRequest,
		CheckVerifyLimiter:  e.otcLimiter.CheckVerify,
		ResetVerifyLimiter:  e.otcLimiter.ResetVerify,
		MapLimiterError:     mapLimiterError,
		IssueWindow: func(ctx context.Context, addressHash string, purpose otc.Purpose, now time.Time) (internalflows.OTCWindow, error) {
			w, err := e.otcStore.Issue(ctx, addressHash, purposeCode(purpose), now, cfg.TTL, cfg.ResendCooldown)
			return flowWindow(w), err
		},
		CheckWindow: func(ctx context.Context, addressHash string, purpose otc.Purpose, now time.Time) (internalflows.OTCWindow, error) {
			w, err := e.otcStore.Check(ctx, addressHash, purposeCode(purpose), now)
			return flowWindow(w), err
		},
		CloseWindow: func(ctx context.Context, addressHash string, purpose otc.Purpose) error {
			return e.otcStore.Close(ctx, addressHash, purposeCode(purpose))
		},
		MapStoreError: mapStoreError,
		SendCode: func(ctx context.Context, address string, purpose otc.Purpose) error {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			_, err := e.auth.RequestOTC(callCtx, address, purpose)
			return err
		},
		ResendCode: func(ctx context.Context, address string, purpose otc.Purpose) error {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			_, err := e.auth.ResendOTC(callCtx, address, purpose)
			return err
		},
		VerifyCode: func(ctx context.Context, address, code string, purpose otc.Purpose) (*session.Session, error) {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			return e.auth.VerifyOTC(callCtx, address, code, purpose)
		},
		MapServiceError: mapServiceError,
		MetricInc:       e.metricIncFunc(),
		EmitAudit:       e.emitAudit,
		EmitRateLimit:   e.emitRateLimit,
		Metrics: internalflows.OTCMetrics{
			OTCRequest:     int(MetricOTCRequest),
			OTCResend:      int(MetricOTCResend),
			OTCCooldown:    int(MetricOTCCooldown),
			OTCVerify:      int(MetricOTCVerify),
			OTCVerifyFail:  int(MetricOTCVerifyFailure),
			OTCExpired:     int(MetricOTCExpired),
			OTCRateLimited: int(MetricOTCRateLimited),
		},
		Events: internalflows.OTCEvents{
			OTCRequest: auditEventOTCRequest,
			OTCResend:  auditEventOTCResend,
			OTCVerify:  auditEventOTCVerify,
		},
		Errors: internalflows.OTCErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			AuthRejected:       ErrAuthRejected,
			CodeExpired:        ErrCodeExpired,
			Cooldown:           ErrCooldown,
			NoChallenge:        ErrNoChallenge,
			RateLimited:        ErrRateLimited,
			ServiceUnavailable: ErrServiceUnavailable,
		},
	}
}

func (e *Engine) profileFlowDeps() internalflows.ProfileDeps {
	return internalflows.ProfileDeps{
		GetProfile: func(ctx context.Context, id string, role session.Role) (identity.Profile, error) {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			return e.profiles.GetProfile(callCtx, id, role)
		},
		UpdateProfile: func(ctx context.Context, id string, role session.Role, patch identity.ProfilePatch) error {
			callCtx, cancel := e.callContext(ctx)
			defer cancel()
			defer e.observeIdentity(time.Now())
			return e.profiles.UpdateProfile(callCtx, id, role, patch)
		},
		MapStoreError: mapServiceError,
		LogFetchError: e.logFetchError,
		MetricInc:     e.metricIncFunc(),
		EmitAudit:     e.emitAudit,
		Metrics: internalflows.ProfileMetrics{
			ProfileResolved:     int(MetricProfileResolved),
			ProfileMissing:      int(MetricProfileMissing),
			ProfileFetchFailure: int(MetricProfileFetchFailure),
			QualificationSaved:  int(MetricQualificationSaved),
			ProviderActivated:   int(MetricProviderActivated),
			ProfileWriteFailure: int(MetricProfileWriteFailure),
		},
		Events: internalflows.ProfileEvents{
			QualificationSaved: auditEventQualificationSaved,
			ProviderActivated:  auditEventProviderActivated,
		},
		Errors: internalflows.ProfileErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			ServiceUnavailable: ErrServiceUnavailable,
		},
	}
}

func flowWindow(w stores.OTCWindow) internalflows.OTCWindow {
	return internalflows.OTCWindow{
		IssuedAt:  w.IssuedAt,
		ExpiresAt: w.ExpiresAt,
		ResendAt:  w.ResendAt,
		Resends:   int(w.Resends),
	}
}

func (e *Engine) saveSession(ctx context.Context, clientKey string, sess *session.Session) error {
	return e.sessionStore.Save(ctx, clientKey, sess, e.config.Session.TTL)
}

func (e *Engine) refreshTokens(ctx context.Context, refreshToken string) (*session.Session, error) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	defer e.observeIdentity(time.Now())
	return e.auth.Refresh(callCtx, refreshToken)
}

// parseLocal verifies an access token with the configured key and rebuilds the
// session it describes.
func (e *Engine) parseLocal(accessToken string) (*session.Session, error) {
	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	sess := &session.Session{
		Identity:    claims.Identity(),
		AccessToken: accessToken,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return sess, nil
}
