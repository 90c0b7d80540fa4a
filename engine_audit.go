package goOnboard

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/MrEthical07/goOnboard/internal"
)

const (
	auditEventSignIn             = "sign_in"
	auditEventSignUp             = "sign_up"
	auditEventSignOut            = "sign_out"
	auditEventOAuthCallback      = "oauth_callback"
	auditEventRestore            = "session_restore"
	auditEventTokenRefresh       = "token_refresh"
	auditEventSessionInvalidated = "session_invalidated"
	auditEventOTCRequest         = "otc_request"
	auditEventOTCResend          = "otc_resend"
	auditEventOTCVerify          = "otc_verify"
	auditEventQualificationSaved = "qualification_saved"
	auditEventTestScored         = "test_scored"
	auditEventProviderActivated  = "provider_activated"
	auditEventRateLimitTriggered = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by goOnboard APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidInput   AuditErrorCode = "invalid_input"
	auditErrAuthRejected   AuditErrorCode = "auth_rejected"
	auditErrCodeExpired    AuditErrorCode = "code_expired"
	auditErrCooldown       AuditErrorCode = "cooldown"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrNoChallenge    AuditErrorCode = "no_challenge"
	auditErrNotFound       AuditErrorCode = "not_found"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrNoSession      AuditErrorCode = "no_session"
	auditErrWrongRole      AuditErrorCode = "wrong_role"
	auditErrEngineNotReady AuditErrorCode = "engine_not_ready"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		ClientKey: clientKeyDigest(clientKeyFromContext(ctx)),
		Role:      string(auditRoleFromContext(ctx)),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

// clientKeyDigest keeps raw client keys, which act as bearer cookies, out of audit
// records.
func clientKeyDigest(key string) string {
	if key == "" {
		return ""
	}
	sum := internal.HashSecret([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrNoChallenge):
		return auditErrNoChallenge
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrWrongRole):
		return auditErrWrongRole
	case errors.Is(err, ErrEngineNotReady):
		return auditErrEngineNotReady
	}

	switch KindOf(err) {
	case KindInvalidInput:
		return auditErrInvalidInput
	case KindAuthRejected:
		return auditErrAuthRejected
	case KindCooldown:
		return auditErrCooldown
	case KindNotFound:
		return auditErrNotFound
	case KindServiceUnavailable:
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
