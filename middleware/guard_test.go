package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/jwt"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/scheduler"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const guardPassword = "correct-horse-battery"

func newGuardEngine(t *testing.T) (*goOnboard.Engine, *identity.Memory) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sched := scheduler.Manual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("memory-service-secret-with-32-plus-chars"),
		Now:           sched.Now,
	})
	if err != nil {
		t.Fatalf("jwt.NewManager failed: %v", err)
	}
	svc, err := identity.NewMemory(identity.MemoryConfig{
		Signer:  signer,
		Now:     sched.Now,
		NewCode: func() (string, error) { return "482913", nil },
	})
	if err != nil {
		t.Fatalf("identity.NewMemory failed: %v", err)
	}

	engine, err := goOnboard.New().WithRedis(rdb).WithAuthService(svc).WithScheduler(sched).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, svc
}

func signedInClient(t *testing.T, engine *goOnboard.Engine, svc *identity.Memory, email, role string) *goOnboard.Client {
	t.Helper()

	ctx := context.Background()
	if _, err := engine.SignUp(ctx, goOnboard.SignUpRequest{Email: email, Password: guardPassword, Role: role}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := svc.VerifyOTC(ctx, email, "482913", otc.PurposeSignup); err != nil {
		t.Fatalf("VerifyOTC failed: %v", err)
	}

	c, err := engine.Client("")
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}
	if err := c.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if _, err := c.SignIn(ctx, email, guardPassword); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.WaitResolved(wctx); err != nil {
		t.Fatalf("WaitResolved failed: %v", err)
	}
	return c
}

func fixedLookup(c *goOnboard.Client) ClientLookup {
	return func(*http.Request) *goOnboard.Client { return c }
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/provider/dashboard", nil))
	return rr
}

func TestGuardNoClientRedirectsToRoleSignIn(t *testing.T) {
	engine, _ := newGuardEngine(t)

	h := RequireProvider(engine, fixedLookup(nil), "/provider/dashboard")(http.NotFoundHandler())
	rr := serve(h)

	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/provider/signin" {
		t.Fatalf("expected redirect to provider sign-in, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if rr.Header().Get(ReasonHeader) != "no_session" {
		t.Fatalf("unexpected reason %q", rr.Header().Get(ReasonHeader))
	}
}

func TestGuardPendingBeforeRestore(t *testing.T) {
	engine, _ := newGuardEngine(t)
	c, err := engine.Client("")
	if err != nil {
		t.Fatalf("Client failed: %v", err)
	}

	h := RequireProvider(engine, fixedLookup(c), "/provider/dashboard")(http.NotFoundHandler())
	rr := serve(h)

	if rr.Code != http.StatusServiceUnavailable || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After, got %d", rr.Code)
	}
}

func TestGuardWrongRoleGoesHome(t *testing.T) {
	engine, svc := newGuardEngine(t)
	c := signedInClient(t, engine, svc, "seeker@example.com", "seeker")

	h := RequireProvider(engine, fixedLookup(c), "/provider/dashboard")(http.NotFoundHandler())
	rr := serve(h)

	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/seeker/dashboard" {
		t.Fatalf("expected redirect to seeker home, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if rr.Header().Get(ReasonHeader) != "wrong_role" {
		t.Fatalf("unexpected reason %q", rr.Header().Get(ReasonHeader))
	}
}

func TestGuardAllowsAndInjectsClient(t *testing.T) {
	engine, svc := newGuardEngine(t)
	c := signedInClient(t, engine, svc, "tutor@example.com", "provider")

	var got *goOnboard.Client
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClientFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	rr := serve(RequireProvider(engine, fixedLookup(c), "/provider/dashboard")(next))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got != c {
		t.Fatal("expected admitted client in context")
	}

	rr = serve(RequireSession(engine, fixedLookup(c), "/account")(next))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected any-role view allowed, got %d", rr.Code)
	}
}

func TestGuardNilEngine(t *testing.T) {
	rr := serve(RequireSeeker(nil, fixedLookup(nil), "/seeker/dashboard")(http.NotFoundHandler()))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
