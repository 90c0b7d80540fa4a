package route

import (
	"errors"
	"strings"

	"github.com/MrEthical07/goOnboard/session"
)

// Paths names the views navigation decisions point at.
//
// Paths instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Paths struct {
	// SignIn is used when no role-specific sign-in view applies.
	SignIn         string
	SeekerSignIn   string
	ProviderSignIn string
	SeekerHome     string
	ProviderHome   string
	// Onboarding is the entry point of the provider qualification wizard.
	Onboarding string
	// AuthEntry lists views a signed-in caller should be moved away from, such as the
	// sign-in forms and the OAuth callback.
	AuthEntry []string
}

// DefaultPaths returns the stock view layout.
func DefaultPaths() Paths {
	return Paths{
		SignIn:         "/signin",
		SeekerSignIn:   "/seeker/signin",
		ProviderSignIn: "/provider/signin",
		SeekerHome:     "/seeker/dashboard",
		ProviderHome:   "/provider/dashboard",
		Onboarding:     "/provider/onboarding",
		AuthEntry: []string{
			"/",
			"/signin",
			"/signup",
			"/seeker/signin",
			"/seeker/signup",
			"/provider/signin",
			"/provider/signup",
			"/auth/callback",
		},
	}
}

// Validate reports missing or relative paths.
func (p Paths) Validate() error {
	for name, v := range map[string]string{
		"sign-in":          p.SignIn,
		"seeker sign-in":   p.SeekerSignIn,
		"provider sign-in": p.ProviderSignIn,
		"seeker home":      p.SeekerHome,
		"provider home":    p.ProviderHome,
		"onboarding":       p.Onboarding,
	} {
		if !strings.HasPrefix(v, "/") {
			return errors.New("route " + name + " path must be absolute")
		}
	}
	for _, v := range p.AuthEntry {
		if !strings.HasPrefix(v, "/") {
			return errors.New("route auth entry paths must be absolute")
		}
	}
	return nil
}

// SignInFor returns the sign-in view for role, or the default sign-in view.
func (p Paths) SignInFor(role session.Role) string {
	switch role {
	case session.RoleSeeker:
		if p.SeekerSignIn != "" {
			return p.SeekerSignIn
		}
	case session.RoleProvider:
		if p.ProviderSignIn != "" {
			return p.ProviderSignIn
		}
	}
	return p.SignIn
}

// HomeFor returns role's home view. An unknown role has no home and falls back to the
// default sign-in view.
func (p Paths) HomeFor(role session.Role) string {
	switch role {
	case session.RoleSeeker:
		return p.SeekerHome
	case session.RoleProvider:
		return p.ProviderHome
	default:
		return p.SignIn
	}
}

// IsAuthEntry reports whether path is one of the auth-entry views. A trailing slash
// and query string are ignored.
func (p Paths) IsAuthEntry(path string) bool {
	path = clean(path)
	for _, v := range p.AuthEntry {
		if clean(v) == path {
			return true
		}
	}
	return false
}

func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	if path == "" {
		return "/"
	}
	return path
}
