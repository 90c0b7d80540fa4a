package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goOnboard/jwt"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMemory(t *testing.T) (*Memory, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("memory-service-secret-with-32-plus-chars"),
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	m, err := NewMemory(MemoryConfig{
		Signer:  signer,
		Now:     clock.Now,
		NewCode: func() (string, error) { return "482913", nil },
	})
	if err != nil {
		t.Fatalf("new memory: %v", err)
	}
	return m, clock
}

func TestMemorySignUpVerifySignIn(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	md := session.Metadata{Role: session.RoleProvider, FirstName: "Ada"}

	if _, err := m.SignUp(ctx, "P@Example.com", "hunter22", md); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := m.SignIn(ctx, "p@example.com", "hunter22"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected unconfirmed sign-in rejected, got %v", err)
	}

	sess, err := m.VerifyOTC(ctx, "p@example.com", "482913", otc.PurposeSignup)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !sess.Identity.Verified || sess.Role() != session.RoleProvider {
		t.Fatalf("unexpected identity: %+v", sess.Identity)
	}

	if _, err := m.SignIn(ctx, "p@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := m.SignIn(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown address, got %v", err)
	}
	if _, err := m.SignIn(ctx, "p@example.com", "hunter22"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
}

func TestMemoryVerifyBeforeIssuanceIsMismatch(t *testing.T) {
	m, _ := newTestMemory(t)
	_, err := m.VerifyOTC(context.Background(), "a@x.com", "000000", otc.PurposeSignup)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestMemoryCodeWindows(t *testing.T) {
	m, clock := newTestMemory(t)
	ctx := context.Background()
	_, _ = m.SignUp(ctx, "s@example.com", "pw", session.Metadata{Role: session.RoleSeeker})

	clock.Advance(59 * time.Second)
	if _, err := m.ResendOTC(ctx, "s@example.com", otc.PurposeSignup); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown at 59s, got %v", err)
	}
	clock.Advance(time.Second)
	if _, err := m.ResendOTC(ctx, "s@example.com", otc.PurposeSignup); err != nil {
		t.Fatalf("expected resend at 60s, got %v", err)
	}

	clock.Advance(600 * time.Second)
	if _, err := m.VerifyOTC(ctx, "s@example.com", "482913", otc.PurposeSignup); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected expired code, got %v", err)
	}
}

func TestMemoryUnknownAddressNotRevealed(t *testing.T) {
	m, _ := newTestMemory(t)
	issued, err := m.RequestOTC(context.Background(), "ghost@example.com", otc.PurposeRecovery)
	if err != nil || issued.Email != "ghost@example.com" {
		t.Fatalf("expected uniform issuance response, got %+v %v", issued, err)
	}
	if _, ok := m.LastCode("ghost@example.com"); ok {
		t.Fatal("no code may be stored for an unknown address")
	}
}

func TestMemoryTokensRefreshExchangeSignOut(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()
	_, _ = m.SignUp(ctx, "s@example.com", "pw", session.Metadata{Role: session.RoleSeeker})
	sess, _ := m.VerifyOTC(ctx, "s@example.com", "482913", otc.PurposeSignup)

	exchanged, err := m.ExchangeTokens(ctx, sess.AccessToken, sess.RefreshToken)
	if err != nil || exchanged.Identity.ID != sess.Identity.ID {
		t.Fatalf("exchange failed: %+v %v", exchanged, err)
	}

	refreshed, err := m.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := m.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rotated refresh token rejected, got %v", err)
	}

	if err := m.SignOut(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := m.Refresh(ctx, refreshed.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh after sign-out rejected, got %v", err)
	}
}

func TestMemoryOAuthRoundTrip(t *testing.T) {
	m, _ := newTestMemory(t)
	authURL, err := m.OAuthURL("google", "https://app.example/auth/callback", session.RoleProvider)
	if err != nil {
		t.Fatalf("oauth url: %v", err)
	}
	cbURL, err := m.CompleteOAuth(authURL, "oauth@example.com")
	if err != nil {
		t.Fatalf("complete oauth: %v", err)
	}
	cb, err := ParseCallback(cbURL)
	if err != nil {
		t.Fatalf("parse callback: %v", err)
	}
	if cb.Role != session.RoleProvider {
		t.Fatalf("expected role carried across redirect, got %q", cb.Role)
	}
	sess, err := m.ExchangeTokens(context.Background(), cb.AccessToken, cb.RefreshToken)
	if err != nil || sess.Role() != session.RoleProvider {
		t.Fatalf("exchange failed: %+v %v", sess, err)
	}
}

func TestMemoryProfileUpsertAndMerge(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	if _, err := m.GetProfile(ctx, "p1", session.RoleProvider); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.UpdateProfile(ctx, "p1", session.RoleProvider, ProfilePatch{Bio: String("bio")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.UpdateProfile(ctx, "p1", session.RoleProvider, ProfilePatch{AddExpertise: []string{"physics"}, IsActive: Bool(true)}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	p, err := m.GetProfile(ctx, "p1", session.RoleProvider)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	pp := p.(*ProviderProfile)
	if pp.Bio != "bio" || !pp.IsActive || len(pp.Expertise) != 1 {
		t.Fatalf("unexpected profile: %+v", pp)
	}

	if _, err := m.GetProfile(ctx, "p1", session.RoleSeeker); !errors.Is(err, ErrNotFound) {
		t.Fatalf("role mismatch must read as not found, got %v", err)
	}
	if err := m.UpdateProfile(ctx, "s1", session.RoleSeeker, ProfilePatch{Bio: String("x")}); err == nil {
		t.Fatal("expected provider fields rejected on seeker profile")
	}
}
