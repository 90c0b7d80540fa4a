package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

const tokenJSON = `{
  "access_token": "at-1",
  "refresh_token": "rt-1",
  "expires_in": 3600,
  "expires_at": 1772400000,
  "user": {
    "id": "6a1f5a8e-3f7c-4b5e-9d12-0c8b7e6f5a41",
    "email": "p@example.com",
    "email_confirmed_at": "2026-03-01T09:00:00Z",
    "user_metadata": {"role": "provider", "first_name": "Ada", "last_name": "L", "country": "GB"}
  }
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "anon-key", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClientSignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing apikey header")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "right" {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, tokenJSON)
	})

	sess, err := c.SignIn(context.Background(), "p@example.com", "right")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.Role() != session.RoleProvider || !sess.Identity.Verified || sess.ExpiresAt != 1772400000 {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if _, err := c.SignIn(context.Background(), "p@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestClientVerifyOTCErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["token"] {
		case "111111":
			writeJSON(w, http.StatusForbidden, `{"code":403,"error_code":"otp_expired","msg":"Token has expired"}`)
		case "222222":
			writeJSON(w, http.StatusOK, tokenJSON)
		default:
			writeJSON(w, http.StatusBadRequest, `{"code":400,"error_code":"validation_failed","msg":"Invalid token"}`)
		}
	})
	ctx := context.Background()

	if _, err := c.VerifyOTC(ctx, "p@example.com", "111111", otc.PurposeSignup); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if _, err := c.VerifyOTC(ctx, "p@example.com", "000000", otc.PurposeSignup); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if _, err := c.VerifyOTC(ctx, "p@example.com", "222222", otc.PurposeSignup); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestClientSendCodeRoutesAndCooldown(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 3 {
			writeJSON(w, http.StatusTooManyRequests, `{"error_code":"over_email_send_rate_limit"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{}`)
	})
	ctx := context.Background()

	if _, err := c.RequestOTC(ctx, "a@x.com", otc.PurposeSignup); err != nil {
		t.Fatalf("request signup: %v", err)
	}
	if _, err := c.RequestOTC(ctx, "a@x.com", otc.PurposeRecovery); err != nil {
		t.Fatalf("request recovery: %v", err)
	}
	if _, err := c.ResendOTC(ctx, "a@x.com", otc.PurposeSignup); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
	if paths[0] != "/auth/v1/resend" || paths[1] != "/auth/v1/recover" {
		t.Fatalf("unexpected routes %v", paths)
	}
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `upstream`)
	})
	if _, err := c.SignIn(context.Background(), "a@x.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.SignIn(context.Background(), "a@x.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected timeout as ErrUnavailable, got %v", err)
	}
}

func TestClientGetProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("expected caller token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/rest/v1/providers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("id") == "eq.missing" {
			writeJSON(w, http.StatusOK, `[]`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":"p1","first_name":"Ada","expertise":["physics"],"rating":4.75,"total_earnings":"120.50","is_active":true,"last_active":null,"created_at":"2026-03-01T09:00:00Z","updated_at":"2026-03-01T09:00:00Z"}]`)
	})
	ctx := WithAccessToken(context.Background(), "user-token")

	p, err := c.GetProfile(ctx, "p1", session.RoleProvider)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	pp := p.(*ProviderProfile)
	if pp.Rating.String() != "4.75" || pp.TotalEarnings.String() != "120.5" || !pp.OnboardingComplete() {
		t.Fatalf("unexpected profile: %+v", pp)
	}

	if _, err := c.GetProfile(ctx, "missing", session.RoleProvider); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientUpdateProfileMergesExpertise(t *testing.T) {
	var upsert []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `[{"id":"p1","expertise":["physics"]}]`)
		case http.MethodPost:
			if !strings.Contains(r.Header.Get("Prefer"), "merge-duplicates") {
				t.Errorf("expected upsert preference")
			}
			_ = json.NewDecoder(r.Body).Decode(&upsert)
			w.WriteHeader(http.StatusCreated)
		}
	})

	err := c.UpdateProfile(context.Background(), "p1", session.RoleProvider, ProfilePatch{
		AddExpertise: []string{"mathematics", "physics"},
		IsActive:     Bool(true),
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if len(upsert) != 1 {
		t.Fatalf("expected one row, got %v", upsert)
	}
	exp, _ := upsert[0]["expertise"].([]any)
	if len(exp) != 2 || exp[0] != "physics" || exp[1] != "mathematics" || upsert[0]["is_active"] != true {
		t.Fatalf("unexpected row: %v", upsert[0])
	}
}

func TestClientOAuthURLCarriesRole(t *testing.T) {
	c, err := NewClient(ClientConfig{BaseURL: "https://id.example.co", APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	raw, err := c.OAuthURL("google", "https://app.example/auth/callback", session.RoleSeeker)
	if err != nil {
		t.Fatalf("oauth url: %v", err)
	}
	u, _ := url.Parse(raw)
	target, _ := url.Parse(u.Query().Get("redirect_to"))
	if u.Path != "/auth/v1/authorize" || target.Query().Get("role") != "seeker" {
		t.Fatalf("unexpected oauth url %s", raw)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{BaseURL: "not a url", APIKey: "k"}); err == nil {
		t.Fatal("expected invalid base url")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://id.example.co"}); err == nil {
		t.Fatal("expected missing api key")
	}
}
