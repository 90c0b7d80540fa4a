package route

import "github.com/MrEthical07/goOnboard/session"

// Resolved summarizes a profile resolution for [DecideRedirect].
type Resolved struct {
	Role session.Role
	// ProfileFound is false when no row exists yet or the fetch failed.
	ProfileFound bool
	// Expertise is the number of subjects on a provider profile.
	Expertise int
}

// OnboardingComplete reports whether a provider has at least one qualified subject.
func (r Resolved) OnboardingComplete() bool {
	return r.Role == session.RoleProvider && r.ProfileFound && r.Expertise > 0
}

// DecideRedirect returns the navigation a resolution triggers from currentPath, if any.
//
// Seekers are moved off auth-entry views to the seeker home and left alone elsewhere.
// Providers with expertise go to the provider home; providers without a profile or
// without expertise go to the onboarding entry. A target equal to currentPath yields no
// navigation.
func DecideRedirect(r Resolved, currentPath string, paths Paths) (string, bool) {
	var target string
	switch r.Role {
	case session.RoleSeeker:
		if !paths.IsAuthEntry(currentPath) {
			return "", false
		}
		target = paths.SeekerHome
	case session.RoleProvider:
		if r.OnboardingComplete() {
			target = paths.ProviderHome
		} else {
			target = paths.Onboarding
		}
	default:
		return "", false
	}

	if target == "" || clean(target) == clean(currentPath) {
		return "", false
	}
	return target, true
}
