package goOnboard

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal"
	internalflows "github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/internal/stores"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

// Restore loads the stored credential pair of the client and exchanges it for a live
// session, publishing the Restored event either way. Afterwards [Client.Bootstrapped]
// is true.
//
// A failure settles to no session. The error is returned for logging only; a pair the
// service rejects has already been removed from the store.
func (c *Client) Restore(ctx context.Context) error {
	const op = "restore"
	if c.isClosed() {
		return ErrClientClosed
	}

	ctx = withClientKey(ctx, c.key)
	src := session.SourceFunc(func(ctx context.Context) (*session.Session, error) {
		sess, _, err := internalflows.RunRestore(ctx, c.key, c.engine.flows.Restore)
		return sess, err
	})
	if err := c.provider.Restore(ctx, src); err != nil {
		c.engine.logger.InfoContext(ctx, "session restore failed",
			slog.String("client", clientKeyDigest(c.key)),
			slog.Any("error", err),
		)
		return wrapError(op, err)
	}
	return nil
}

// SignIn exchanges credentials for a session and publishes SignedIn.
//
// A role attached with [WithNavigationRole] overrides the identity metadata for
// profile resolution and navigation.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	const op = "sign_in"
	if c.isClosed() {
		return nil, ErrClientClosed
	}

	ctx = c.scope(ctx)
	sess, err := internalflows.RunSignIn(ctx, email, password, c.engine.flows.SignIn)
	if err != nil {
		return nil, wrapError(op, err)
	}
	return c.establish(ctx, sess), nil
}

// establish persists sess under the client key and publishes SignedIn. A store failure
// leaves the session live for this client but lost on reload, so it is logged only.
func (c *Client) establish(ctx context.Context, sess *session.Session) *session.Session {
	if err := c.engine.saveSession(ctx, c.key, sess); err != nil {
		c.engine.logger.WarnContext(ctx, "session store write failed",
			slog.String("client", clientKeyDigest(c.key)),
			slog.String("identity_id", sess.Identity.ID),
			slog.Any("error", err),
		)
	}
	role, _ := navigationRoleFromContext(ctx)
	c.setOverride(role)
	c.provider.Publish(session.Event{Kind: session.EventSignedIn, Session: sess})
	return sess.Clone()
}

// SignUp registers an unverified identity with req.Role as metadata. The identity
// service sends a sign-up code; the returned window describes it. No session is
// created until the code is verified with [Client.VerifyOTC].
//
// An address that is already registered yields the same result, so the response never
// reveals whether it exists.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (OTCWindow, error) {
	const op = "sign_up"
	if e == nil || e.auth == nil || e.otcStore == nil {
		return OTCWindow{}, ErrEngineNotReady
	}

	email := internal.NormalizeAddress(req.Email)
	role, roleErr := session.ParseRole(req.Role)
	switch {
	case email == "":
		return OTCWindow{}, invalidInput(op, "An email address is required.", nil)
	case !validEmail(email):
		return OTCWindow{}, invalidInput(op, "Enter a valid email address.", nil)
	case req.Password == "":
		return OTCWindow{}, invalidInput(op, "A password is required.", nil)
	case roleErr != nil:
		return OTCWindow{}, invalidInput(op, "Choose whether you are a seeker or a provider.", roleErr)
	}

	md := session.Metadata{
		Role:      role,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Country:   strings.TrimSpace(req.Country),
	}
	ctx = withAuditRole(ctx, role)
	hash := internal.HashAddress(email)
	meta := func() map[string]string {
		return map[string]string{
			"address_hash": hash,
			"role":         string(role),
		}
	}

	callCtx, cancel := e.callContext(ctx)
	start := time.Now()
	_, err := e.auth.SignUp(callCtx, email, req.Password, md)
	e.observeIdentity(start)
	cancel()
	if err != nil {
		mapped := mapServiceError(err)
		e.emitAudit(ctx, auditEventSignUp, false, "", mapped, meta)
		return OTCWindow{}, wrapError(op, mapped)
	}

	// The service sent the code itself, so the window opens here rather than through
	// the request flow.
	w, err := e.otcStore.Issue(ctx, hash, purposeCode(otc.PurposeSignup), e.now(), e.config.OTC.TTL, e.config.OTC.ResendCooldown)
	if err != nil && !errors.Is(err, stores.ErrOTCCooldown) {
		mapped := mapStoreError(err)
		e.emitAudit(ctx, auditEventSignUp, false, "", mapped, meta)
		return OTCWindow{}, wrapError(op, mapped)
	}

	e.metricInc(MetricSignUp)
	e.emitAudit(ctx, auditEventSignUp, true, "", nil, meta)
	return publicWindow(email, otc.PurposeSignup, flowWindow(w)), nil
}

func validEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// SignOut ends the session of the client. The local session is cleared even when the
// identity service cannot be reached; the failure is recorded in the audit trail.
func (c *Client) SignOut(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}

	sess, ok := c.provider.Current()
	if !ok {
		return nil
	}
	ctx = c.scope(ctx)
	e := c.engine

	callCtx, cancel := e.callContext(ctx)
	start := time.Now()
	err := e.auth.SignOut(callCtx, sess.AccessToken)
	e.observeIdentity(start)
	cancel()

	var mapped error
	if err != nil {
		mapped = mapServiceError(err)
		e.logger.WarnContext(ctx, "identity sign-out failed",
			slog.String("identity_id", sess.Identity.ID),
			slog.Any("error", err),
		)
	}
	if err := e.sessionStore.Delete(ctx, c.key); err != nil {
		e.logger.WarnContext(ctx, "session store delete failed",
			slog.String("client", clientKeyDigest(c.key)),
			slog.Any("error", err),
		)
	}

	c.mu.Lock()
	ch := c.challenge
	c.challenge = nil
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	c.closeWizard()

	c.provider.Publish(session.Event{Kind: session.EventSignedOut})

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, mapped == nil, sess.Identity.ID, mapped, nil)
	return nil
}

// OAuthURL returns the identity service URL that starts an OAuth round trip. A
// non-empty role is carried back on the callback and overrides the identity metadata.
func (e *Engine) OAuthURL(provider, redirectTo, role string) (string, error) {
	const op = "oauth_url"
	if e == nil || e.auth == nil {
		return "", ErrEngineNotReady
	}
	if strings.TrimSpace(provider) == "" {
		return "", invalidInput(op, "Choose a sign-in provider.", nil)
	}

	var r session.Role
	if role != "" {
		parsed, err := session.ParseRole(role)
		if err != nil {
			return "", invalidInput(op, "Choose whether you are a seeker or a provider.", err)
		}
		r = parsed
	}

	u, err := e.auth.OAuthURL(provider, redirectTo, r)
	if err != nil {
		return "", wrapError(op, mapServiceError(err))
	}
	return u, nil
}

// HandleCallback completes an OAuth round trip or an email link. The tokens on rawURL
// are exchanged for a session, which is stored and published as SignedIn. A role on
// the callback query becomes the navigation override.
func (c *Client) HandleCallback(ctx context.Context, rawURL string) (*session.Session, error) {
	const op = "oauth_callback"
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	e := c.engine
	ctx = withClientKey(ctx, c.key)

	cb, err := identity.ParseCallback(rawURL)
	if err != nil {
		mapped := mapServiceError(err)
		e.emitAudit(ctx, auditEventOAuthCallback, false, "", mapped, nil)
		return nil, wrapError(op, mapped)
	}
	if cb.Role.Valid() {
		ctx = WithNavigationRole(ctx, cb.Role)
	}
	ctx = withAuditRole(ctx, cb.Role)

	callCtx, cancel := e.callContext(ctx)
	start := time.Now()
	sess, err := e.auth.ExchangeTokens(callCtx, cb.AccessToken, cb.RefreshToken)
	e.observeIdentity(start)
	cancel()
	if err != nil {
		mapped := mapServiceError(err)
		e.emitAudit(ctx, auditEventOAuthCallback, false, "", mapped, nil)
		return nil, wrapError(op, mapped)
	}

	out := c.establish(ctx, sess)
	e.metricInc(MetricOAuthCallback)
	e.emitAudit(ctx, auditEventOAuthCallback, true, sess.Identity.ID, nil, func() map[string]string {
		kind := cb.Type
		if kind == "" {
			kind = "oauth"
		}
		return map[string]string{
			"type": kind,
		}
	})
	return out, nil
}

// Refresh rotates the credential pair of the current session and publishes
// TokenRefreshed. A pair the service rejects ends the session with Invalidated; any
// other failure keeps it.
func (c *Client) Refresh(ctx context.Context) error {
	const op = "token_refresh"
	if c.isClosed() {
		return ErrClientClosed
	}
	sess, ok := c.provider.Current()
	if !ok {
		return newError(op, KindAuthRejected, ErrNoSession)
	}
	ctx = c.scope(ctx)
	e := c.engine

	next, err := e.refreshTokens(ctx, sess.RefreshToken)
	if err != nil {
		mapped := mapServiceError(err)
		e.emitAudit(ctx, auditEventTokenRefresh, false, sess.Identity.ID, mapped, nil)
		if errors.Is(mapped, ErrAuthRejected) {
			_ = e.sessionStore.Delete(ctx, c.key)
			c.closeWizard()
			c.provider.Publish(session.Event{Kind: session.EventInvalidated})
		}
		return wrapError(op, mapped)
	}

	if err := e.saveSession(ctx, c.key, next); err != nil {
		e.logger.WarnContext(ctx, "session store write failed",
			slog.String("client", clientKeyDigest(c.key)),
			slog.Any("error", err),
		)
	}
	c.provider.Publish(session.Event{Kind: session.EventTokenRefreshed, Session: next})

	e.metricInc(MetricTokenRefreshed)
	e.emitAudit(ctx, auditEventTokenRefresh, true, next.Identity.ID, nil, nil)
	return nil
}

func (e *Engine) resolveProfile(ctx context.Context, id session.Identity, override session.Role) Resolution {
	res := internalflows.RunResolveProfile(ctx, id, override, e.flows.Profile)
	return Resolution{Role: res.Role, Profile: res.Profile}
}
