package identity

import (
	"errors"
	"testing"

	"github.com/MrEthical07/goOnboard/session"
)

func TestParseCallbackFragmentAndQuery(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want Callback
	}{
		{
			name: "fragment tokens with role query",
			url:  "https://app.example/auth/callback?role=provider#access_token=at&refresh_token=rt&type=signup&expires_in=3600",
			want: Callback{AccessToken: "at", RefreshToken: "rt", Type: "signup", ExpiresIn: 3600, Role: session.RoleProvider},
		},
		{
			name: "query tokens",
			url:  "https://app.example/auth/callback?access_token=at&refresh_token=rt&type=recovery",
			want: Callback{AccessToken: "at", RefreshToken: "rt", Type: "recovery"},
		},
		{
			name: "fragment wins over query",
			url:  "/auth/callback?access_token=old#access_token=new&refresh_token=rt",
			want: Callback{AccessToken: "new", RefreshToken: "rt"},
		},
		{
			name: "invalid role ignored",
			url:  "/auth/callback?role=admin#access_token=at",
			want: Callback{AccessToken: "at"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCallback(tc.url)
			if err != nil {
				t.Fatalf("ParseCallback failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseCallbackErrors(t *testing.T) {
	if _, err := ParseCallback("/auth/callback?role=seeker"); !errors.Is(err, ErrCallbackMissingTokens) {
		t.Fatalf("expected ErrCallbackMissingTokens, got %v", err)
	}
	if _, err := ParseCallback("/auth/callback#error=access_denied&error_description=Email+link+is+invalid"); !errors.Is(err, ErrCallbackRejected) {
		t.Fatalf("expected ErrCallbackRejected, got %v", err)
	}
	if _, err := ParseCallback("://bad"); !errors.Is(err, ErrCallbackMissingTokens) {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestMergeExpertise(t *testing.T) {
	got := MergeExpertise([]string{"physics"}, []string{"mathematics", "physics", " ", "mathematics"})
	if len(got) != 2 || got[0] != "physics" || got[1] != "mathematics" {
		t.Fatalf("unexpected merge: %v", got)
	}
}

func TestProfilePatchApply(t *testing.T) {
	p := &ProviderProfile{ID: "p1", Expertise: []string{}}
	patch := ProfilePatch{Bio: String("bio"), AddExpertise: []string{"physics"}, IsActive: Bool(true)}
	if patch.Empty() || !patch.ProviderOnly() {
		t.Fatal("unexpected patch classification")
	}
	ApplyPatch(p, patch, p.CreatedAt)
	if p.Bio != "bio" || !p.IsActive || !p.OnboardingComplete() {
		t.Fatalf("patch not applied: %+v", p)
	}
	if ExpertiseCount(p) != 1 || ExpertiseCount(&SeekerProfile{}) != 0 || ExpertiseCount(nil) != 0 {
		t.Fatal("unexpected expertise count")
	}
}
