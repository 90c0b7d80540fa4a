package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goOnboard/session"
)

type RestoreMetrics struct {
	RestoreSuccess int
	RestoreEmpty   int
	RestoreFailure int
	TokenRefreshed int
}

type RestoreErrors struct {
	EngineNotReady     error
	AuthRejected       error
	ServiceUnavailable error
}

// RestoreDeps wires session restore. ParseLocal is optional; when set and the stored
// access token verifies locally, no service call is made.
type RestoreDeps struct {
	Now func() time.Time

	Load          func(ctx context.Context, clientKey string) (*session.Session, error)
	Save          func(ctx context.Context, clientKey string, sess *session.Session) error
	Delete        func(ctx context.Context, clientKey string) error
	MapStoreError func(error) error

	ParseLocal      func(accessToken string) (*session.Session, error)
	Exchange        func(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)
	Refresh         func(ctx context.Context, refreshToken string) (*session.Session, error)
	MapServiceError func(error) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

	Event   string
	Metrics RestoreMetrics
	Errors  RestoreErrors
}

// RunRestore resolves the stored credential pair of clientKey into a live session.
//
// It returns (nil, nil) when nothing is stored. A pair the service rejects is removed
// from the store; a service or store outage leaves it in place and returns the error.
func RunRestore(ctx context.Context, clientKey string, deps RestoreDeps) (*session.Session, bool, error) {
	normalizeRestoreDeps(&deps)

	if deps.Load == nil || deps.Save == nil || deps.Delete == nil || deps.Exchange == nil || deps.Refresh == nil {
		return nil, false, deps.Errors.EngineNotReady
	}
	if clientKey == "" {
		deps.MetricInc(deps.Metrics.RestoreEmpty)
		return nil, false, nil
	}

	stored, err := deps.Load(ctx, clientKey)
	if err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.RestoreFailure)
		deps.EmitAudit(ctx, deps.Event, false, "", mapped, nil)
		return nil, false, mapped
	}
	if stored == nil {
		deps.MetricInc(deps.Metrics.RestoreEmpty)
		return nil, false, nil
	}

	now := deps.Now()
	if deps.ParseLocal != nil && !stored.Expired(now) {
		if sess, err := deps.ParseLocal(stored.AccessToken); err == nil {
			sess.RefreshToken = stored.RefreshToken
			deps.MetricInc(deps.Metrics.RestoreSuccess)
			deps.EmitAudit(ctx, deps.Event, true, sess.Identity.ID, nil, func() map[string]string {
				return map[string]string{
					"source": "local",
				}
			})
			return sess, false, nil
		}
	}

	var (
		sess      *session.Session
		refreshed bool
	)
	if stored.Expired(now) {
		sess, err = deps.Refresh(ctx, stored.RefreshToken)
		refreshed = true
	} else {
		sess, err = deps.Exchange(ctx, stored.AccessToken, stored.RefreshToken)
	}
	if err != nil {
		mapped := deps.MapServiceError(err)
		deps.MetricInc(deps.Metrics.RestoreFailure)
		if errors.Is(mapped, deps.Errors.AuthRejected) {
			_ = deps.Delete(ctx, clientKey)
		}
		deps.EmitAudit(ctx, deps.Event, false, stored.Identity.ID, mapped, nil)
		return nil, false, mapped
	}

	if refreshed {
		deps.MetricInc(deps.Metrics.TokenRefreshed)
	}
	if sess.AccessToken != stored.AccessToken || sess.RefreshToken != stored.RefreshToken {
		if err := deps.Save(ctx, clientKey, sess); err != nil {
			mapped := deps.MapStoreError(err)
			deps.MetricInc(deps.Metrics.RestoreFailure)
			deps.EmitAudit(ctx, deps.Event, false, sess.Identity.ID, mapped, nil)
			return nil, false, mapped
		}
	}

	deps.MetricInc(deps.Metrics.RestoreSuccess)
	deps.EmitAudit(ctx, deps.Event, true, sess.Identity.ID, nil, func() map[string]string {
		source := "exchange"
		if refreshed {
			source = "refresh"
		}
		return map[string]string{
			"source": source,
		}
	})
	return sess, refreshed, nil
}

func normalizeRestoreDeps(deps *RestoreDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
	if deps.MapServiceError == nil {
		deps.MapServiceError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
}
