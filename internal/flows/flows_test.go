package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

var (
	errNotReady    = errors.New("not ready")
	errInvalid     = errors.New("invalid input")
	errRejected    = errors.New("rejected")
	errExpired     = errors.New("expired")
	errCooldown    = errors.New("cooldown")
	errNoChallenge = errors.New("no challenge")
	errLimited     = errors.New("rate limited")
	errUnavailable = errors.New("unavailable")

	storeMissing  = errors.New("store: missing")
	storeExpired  = errors.New("store: expired")
	storeCooldown = errors.New("store: cooldown")
)

type otcHarness struct {
	windows  map[string]OTCWindow
	now      time.Time
	sent     int
	verified int
	closed   int
	audits   []string
	sendErr  error
	verifyFn func(code string) (*session.Session, error)
}

func newOTCHarness() *otcHarness {
	return &otcHarness{
		windows: map[string]OTCWindow{},
		now:     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		verifyFn: func(code string) (*session.Session, error) {
			if code == "123456" {
				return &session.Session{Identity: session.Identity{ID: "u1"}}, nil
			}
			return nil, otc.ErrCodeMismatch
		},
	}
}

func (h *otcHarness) deps() OTCDeps {
	key := func(hash string, p otc.Purpose) string { return hash + ":" + string(p) }
	return OTCDeps{
		HashAddress: func(a string) string { return "h(" + a + ")" },
		Now:         func() time.Time { return h.now },
		IssueWindow: func(_ context.Context, hash string, p otc.Purpose, now time.Time) (OTCWindow, error) {
			if w, ok := h.windows[key(hash, p)]; ok && now.Before(w.ResendAt) {
				return w, storeCooldown
			}
			w := OTCWindow{IssuedAt: now, ExpiresAt: now.Add(600 * time.Second), ResendAt: now.Add(60 * time.Second)}
			if prev, ok := h.windows[key(hash, p)]; ok {
				w.Resends = prev.Resends + 1
			}
			h.windows[key(hash, p)] = w
			return w, nil
		},
		CheckWindow: func(_ context.Context, hash string, p otc.Purpose, now time.Time) (OTCWindow, error) {
			w, ok := h.windows[key(hash, p)]
			if !ok {
				return OTCWindow{}, storeMissing
			}
			if !now.Before(w.ExpiresAt) {
				return w, storeExpired
			}
			return w, nil
		},
		CloseWindow: func(_ context.Context, hash string, p otc.Purpose) error {
			h.closed++
			delete(h.windows, key(hash, p))
			return nil
		},
		MapStoreError: func(err error) error {
			switch {
			case errors.Is(err, storeMissing):
				return errNoChallenge
			case errors.Is(err, storeExpired):
				return errExpired
			case errors.Is(err, storeCooldown):
				return errCooldown
			}
			return errUnavailable
		},
		SendCode: func(context.Context, string, otc.Purpose) error {
			h.sent++
			return h.sendErr
		},
		ResendCode: func(context.Context, string, otc.Purpose) error {
			h.sent++
			return h.sendErr
		},
		VerifyCode: func(_ context.Context, _, code string, _ otc.Purpose) (*session.Session, error) {
			h.verified++
			return h.verifyFn(code)
		},
		MapServiceError: func(err error) error {
			switch {
			case errors.Is(err, otc.ErrCodeMismatch):
				return errRejected
			case errors.Is(err, otc.ErrCodeExpired):
				return errExpired
			}
			return errUnavailable
		},
		EmitAudit: func(_ context.Context, event string, success bool, _ string, _ error, _ func() map[string]string) {
			if success {
				h.audits = append(h.audits, event+":ok")
			} else {
				h.audits = append(h.audits, event+":fail")
			}
		},
		Events: OTCEvents{OTCRequest: "otc.request", OTCResend: "otc.resend", OTCVerify: "otc.verify"},
		Errors: OTCErrors{
			EngineNotReady:     errNotReady,
			InvalidInput:       errInvalid,
			AuthRejected:       errRejected,
			CodeExpired:        errExpired,
			Cooldown:           errCooldown,
			NoChallenge:        errNoChallenge,
			RateLimited:        errLimited,
			ServiceUnavailable: errUnavailable,
		},
	}
}

func TestRunRequestOTCCooldownBoundary(t *testing.T) {
	h := newOTCHarness()
	ctx := context.Background()

	w, err := RunRequestOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps())
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !w.ExpiresAt.Equal(h.now.Add(600 * time.Second)) {
		t.Fatalf("unexpected expiry %v", w.ExpiresAt)
	}

	h.now = h.now.Add(59 * time.Second)
	if _, err := RunResendOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps()); !errors.Is(err, errCooldown) {
		t.Fatalf("expected cooldown at 59s, got %v", err)
	}
	if h.sent != 1 {
		t.Fatalf("cooldown must not reach the service, sent=%d", h.sent)
	}

	h.now = h.now.Add(time.Second)
	w, err = RunResendOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps())
	if err != nil {
		t.Fatalf("resend at 60s: %v", err)
	}
	if w.Resends != 1 || !w.ExpiresAt.Equal(h.now.Add(600*time.Second)) {
		t.Fatalf("expected fresh window, got %+v", w)
	}
}

func TestRunResendOTCWithoutWindow(t *testing.T) {
	h := newOTCHarness()
	if _, err := RunResendOTC(context.Background(), "a@example.com", otc.PurposeRecovery, h.deps()); !errors.Is(err, errNoChallenge) {
		t.Fatalf("expected no challenge, got %v", err)
	}
	if h.sent != 0 {
		t.Fatal("service must not be called")
	}
}

func TestRunRequestOTCSendFailureClosesWindow(t *testing.T) {
	h := newOTCHarness()
	h.sendErr = errors.New("boom")
	if _, err := RunRequestOTC(context.Background(), "a@example.com", otc.PurposeSignup, h.deps()); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(h.windows) != 0 {
		t.Fatal("failed send must not leave a window behind")
	}
}

func TestRunVerifyOTCFormatCheckedFirst(t *testing.T) {
	h := newOTCHarness()
	for _, code := range []string{"", "12345", "1234567", "12a456", "١٢٣٤٥٦"} {
		if _, err := RunVerifyOTC(context.Background(), "a@example.com", code, otc.PurposeSignup, h.deps()); !errors.Is(err, errInvalid) {
			t.Fatalf("code %q: expected invalid input, got %v", code, err)
		}
	}
	if h.verified != 0 {
		t.Fatal("malformed codes must not reach the service")
	}
}

func TestRunVerifyOTCNoWindowIsRejected(t *testing.T) {
	h := newOTCHarness()
	if _, err := RunVerifyOTC(context.Background(), "ghost@example.com", "123456", otc.PurposeSignup, h.deps()); !errors.Is(err, errRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if h.verified != 0 {
		t.Fatal("service must not be called without a window")
	}
}

func TestRunVerifyOTCOutcomes(t *testing.T) {
	h := newOTCHarness()
	ctx := context.Background()
	if _, err := RunRequestOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps()); err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := RunVerifyOTC(ctx, "a@example.com", "000000", otc.PurposeSignup, h.deps()); !errors.Is(err, errRejected) {
		t.Fatalf("expected mismatch rejection, got %v", err)
	}
	if len(h.windows) != 1 {
		t.Fatal("a mismatch must keep the window")
	}

	sess, err := RunVerifyOTC(ctx, "a@example.com", "123456", otc.PurposeSignup, h.deps())
	if err != nil || sess.Identity.ID != "u1" {
		t.Fatalf("expected session, got %v %v", sess, err)
	}
	if len(h.windows) != 0 {
		t.Fatal("a verified code must close its window")
	}
	if h.audits[len(h.audits)-1] != "otc.verify:ok" {
		t.Fatalf("unexpected audit trail %v", h.audits)
	}
}

func TestRunVerifyOTCExpiredWindow(t *testing.T) {
	h := newOTCHarness()
	ctx := context.Background()
	if _, err := RunRequestOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps()); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.now = h.now.Add(600 * time.Second)
	if _, err := RunVerifyOTC(ctx, "a@example.com", "123456", otc.PurposeSignup, h.deps()); !errors.Is(err, errExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if h.verified != 0 {
		t.Fatal("an expired window must not reach the service")
	}

	if _, err := RunResendOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps()); err != nil {
		t.Fatalf("resend after expiry: %v", err)
	}
}

func TestRunVerifyOTCServiceExpired(t *testing.T) {
	h := newOTCHarness()
	h.verifyFn = func(string) (*session.Session, error) { return nil, otc.ErrCodeExpired }
	ctx := context.Background()
	_, _ = RunRequestOTC(ctx, "a@example.com", otc.PurposeSignup, h.deps())

	if _, err := RunVerifyOTC(ctx, "a@example.com", "123456", otc.PurposeSignup, h.deps()); !errors.Is(err, errExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if h.closed != 1 {
		t.Fatal("a service-expired code must close the window")
	}
}

func TestRunOTCRateLimited(t *testing.T) {
	h := newOTCHarness()
	deps := h.deps()
	limited := 0
	deps.CheckRequestLimiter = func(context.Context, string, string) error { return errLimited }
	deps.MapLimiterError = func(err error) error { return err }
	deps.EmitRateLimit = func(context.Context, string, func() map[string]string) { limited++ }

	if _, err := RunRequestOTC(context.Background(), "a@example.com", otc.PurposeSignup, deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if limited != 1 || h.sent != 0 {
		t.Fatalf("expected one rate-limit event and no send, got %d/%d", limited, h.sent)
	}
}

func TestRunOTCNotReady(t *testing.T) {
	if _, err := RunRequestOTC(context.Background(), "a", otc.PurposeSignup, OTCDeps{Errors: OTCErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func signInDeps(signIn func(string) (*session.Session, error)) (*SignInDeps, *int) {
	attempts := 0
	deps := &SignInDeps{
		HashAddress: func(a string) string { return a },
		CheckThrottle: func(context.Context, string, string) error {
			if attempts >= 2 {
				return errLimited
			}
			return nil
		},
		IncrementThrottle: func(context.Context, string, string) error { attempts++; return nil },
		ResetThrottle:     func(context.Context, string) error { attempts = 0; return nil },
		MapLimiterError:   func(err error) error { return err },
		SignIn: func(_ context.Context, _, password string) (*session.Session, error) {
			return signIn(password)
		},
		MapServiceError: func(err error) error {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				return errRejected
			}
			return errUnavailable
		},
		Errors: SignInErrors{
			EngineNotReady:     errNotReady,
			InvalidInput:       errInvalid,
			AuthRejected:       errRejected,
			RateLimited:        errLimited,
			ServiceUnavailable: errUnavailable,
		},
	}
	return deps, &attempts
}

func TestRunSignInThrottle(t *testing.T) {
	deps, attempts := signInDeps(func(password string) (*session.Session, error) {
		if password == "right" {
			return &session.Session{Identity: session.Identity{ID: "u1"}}, nil
		}
		return nil, identity.ErrInvalidCredentials
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := RunSignIn(ctx, "a@example.com", "wrong", *deps); !errors.Is(err, errRejected) {
			t.Fatalf("attempt %d: expected rejected, got %v", i, err)
		}
	}
	if _, err := RunSignIn(ctx, "a@example.com", "right", *deps); !errors.Is(err, errLimited) {
		t.Fatalf("expected throttled, got %v", err)
	}

	*attempts = 1
	if _, err := RunSignIn(ctx, "a@example.com", "right", *deps); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if *attempts != 0 {
		t.Fatal("success must reset the throttle")
	}
}

func TestRunSignInOutageDoesNotCount(t *testing.T) {
	deps, attempts := signInDeps(func(string) (*session.Session, error) {
		return nil, identity.ErrUnavailable
	})
	if _, err := RunSignIn(context.Background(), "a@example.com", "pw", *deps); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if *attempts != 0 {
		t.Fatal("an outage must not count as a failed attempt")
	}
	if _, err := RunSignIn(context.Background(), " ", "pw", *deps); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

type restoreHarness struct {
	stored    map[string]*session.Session
	exchanged int
	refreshed int
	deleted   int
	serviceFn func() (*session.Session, error)
	now       time.Time
}

func (h *restoreHarness) deps() RestoreDeps {
	return RestoreDeps{
		Now: func() time.Time { return h.now },
		Load: func(_ context.Context, key string) (*session.Session, error) {
			return h.stored[key].Clone(), nil
		},
		Save: func(_ context.Context, key string, s *session.Session) error {
			h.stored[key] = s.Clone()
			return nil
		},
		Delete: func(_ context.Context, key string) error {
			h.deleted++
			delete(h.stored, key)
			return nil
		},
		Exchange: func(context.Context, string, string) (*session.Session, error) {
			h.exchanged++
			return h.serviceFn()
		},
		Refresh: func(context.Context, string) (*session.Session, error) {
			h.refreshed++
			return h.serviceFn()
		},
		MapServiceError: func(err error) error {
			if errors.Is(err, identity.ErrInvalidToken) {
				return errRejected
			}
			return errUnavailable
		},
		Errors: RestoreErrors{EngineNotReady: errNotReady, AuthRejected: errRejected, ServiceUnavailable: errUnavailable},
	}
}

func TestRunRestorePaths(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	fresh := &session.Session{Identity: session.Identity{ID: "u1"}, AccessToken: "a2", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour).Unix()}
	h := &restoreHarness{
		stored:    map[string]*session.Session{},
		now:       now,
		serviceFn: func() (*session.Session, error) { return fresh.Clone(), nil },
	}
	ctx := context.Background()

	sess, _, err := RunRestore(ctx, "ck", h.deps())
	if sess != nil || err != nil {
		t.Fatalf("expected empty restore, got %v %v", sess, err)
	}

	h.stored["ck"] = &session.Session{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: now.Add(time.Minute).Unix()}
	sess, refreshed, err := RunRestore(ctx, "ck", h.deps())
	if err != nil || sess.Identity.ID != "u1" || refreshed || h.exchanged != 1 {
		t.Fatalf("expected exchange, got %v %v %v", sess, refreshed, err)
	}
	if h.stored["ck"].AccessToken != "a2" {
		t.Fatal("rotated tokens must be saved")
	}

	h.stored["ck"].ExpiresAt = now.Add(-time.Second).Unix()
	_, refreshed, err = RunRestore(ctx, "ck", h.deps())
	if err != nil || !refreshed || h.refreshed != 1 {
		t.Fatalf("expected refresh, got %v %v", refreshed, err)
	}
}

func TestRunRestoreLocalParse(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	h := &restoreHarness{
		stored: map[string]*session.Session{
			"ck": {AccessToken: "a1", RefreshToken: "r1", ExpiresAt: now.Add(time.Hour).Unix()},
		},
		now:       now,
		serviceFn: func() (*session.Session, error) { return nil, errors.New("unexpected call") },
	}
	deps := h.deps()
	deps.ParseLocal = func(token string) (*session.Session, error) {
		return &session.Session{Identity: session.Identity{ID: "local"}, AccessToken: token}, nil
	}
	sess, _, err := RunRestore(context.Background(), "ck", deps)
	if err != nil || sess.Identity.ID != "local" || sess.RefreshToken != "r1" {
		t.Fatalf("expected local session, got %+v %v", sess, err)
	}
	if h.exchanged+h.refreshed != 0 {
		t.Fatal("a locally verified token must not reach the service")
	}
}

func TestRunRestoreFailures(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	h := &restoreHarness{
		stored:    map[string]*session.Session{"ck": {AccessToken: "a1", RefreshToken: "r1"}},
		now:       now,
		serviceFn: func() (*session.Session, error) { return nil, identity.ErrUnavailable },
	}
	if _, _, err := RunRestore(context.Background(), "ck", h.deps()); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if h.deleted != 0 {
		t.Fatal("an outage must keep the stored pair")
	}

	h.serviceFn = func() (*session.Session, error) { return nil, identity.ErrInvalidToken }
	if _, _, err := RunRestore(context.Background(), "ck", h.deps()); !errors.Is(err, errRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
	if h.deleted != 1 {
		t.Fatal("a rejected pair must be removed")
	}
}

func TestRunResolveProfile(t *testing.T) {
	provider := &identity.ProviderProfile{ID: "u1", Expertise: []string{"physics"}}
	logged := 0
	deps := ProfileDeps{
		GetProfile: func(_ context.Context, id string, role session.Role) (identity.Profile, error) {
			switch {
			case id == "down":
				return nil, identity.ErrUnavailable
			case role == session.RoleProvider && id == "u1":
				return provider, nil
			}
			return nil, identity.ErrNotFound
		},
		LogFetchError: func(context.Context, string, session.Role, error) { logged++ },
	}
	ctx := context.Background()

	res := RunResolveProfile(ctx, session.Identity{ID: "u1", Metadata: session.Metadata{Role: session.RoleProvider}}, "", deps)
	if res.Role != session.RoleProvider || res.Profile != provider {
		t.Fatalf("unexpected resolution %+v", res)
	}

	res = RunResolveProfile(ctx, session.Identity{ID: "u1", Metadata: session.Metadata{Role: session.RoleProvider}}, session.RoleSeeker, deps)
	if res.Role != session.RoleSeeker || res.Profile != nil {
		t.Fatalf("override must win, got %+v", res)
	}

	res = RunResolveProfile(ctx, session.Identity{ID: "down", Metadata: session.Metadata{Role: session.RoleSeeker}}, "", deps)
	if res.Profile != nil || logged != 1 {
		t.Fatalf("fetch failure must surface as no profile and be logged, got %+v logged=%d", res, logged)
	}

	res = RunResolveProfile(ctx, session.Identity{ID: "x"}, "", deps)
	if res.Role != "" || res.Profile != nil {
		t.Fatalf("missing role must resolve to nothing, got %+v", res)
	}
}

func TestRunCommitExpertiseSingleWrite(t *testing.T) {
	var patches []identity.ProfilePatch
	deps := ProfileDeps{
		UpdateProfile: func(_ context.Context, _ string, role session.Role, p identity.ProfilePatch) error {
			if role != session.RoleProvider {
				t.Fatalf("unexpected role %s", role)
			}
			patches = append(patches, p)
			return nil
		},
		Errors: ProfileErrors{EngineNotReady: errNotReady, InvalidInput: errInvalid, ServiceUnavailable: errUnavailable},
	}
	if err := RunCommitExpertise(context.Background(), "u1", "physics", 90, deps); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected one write, got %d", len(patches))
	}
	p := patches[0]
	if len(p.AddExpertise) != 1 || p.AddExpertise[0] != "physics" || p.IsActive == nil || !*p.IsActive {
		t.Fatalf("unexpected patch %+v", p)
	}

	deps.UpdateProfile = func(context.Context, string, session.Role, identity.ProfilePatch) error { return errors.New("down") }
	if err := RunCommitExpertise(context.Background(), "u1", "physics", 90, deps); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := RunSaveQualification(context.Background(), "", "b", "e", "x", deps); !errors.Is(err, errInvalid) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
