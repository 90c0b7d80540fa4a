package goOnboard

import (
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/route"
	"github.com/MrEthical07/goOnboard/session"
)

// Role is the marketplace role of an identity.
type Role = session.Role

const (
	// RoleSeeker is an exported constant or variable used by the onboarding engine.
	RoleSeeker = session.RoleSeeker
	// RoleProvider is an exported constant or variable used by the onboarding engine.
	RoleProvider = session.RoleProvider
)

// ParseRole normalizes and validates a role string.
func ParseRole(v string) (Role, error) {
	return session.ParseRole(v)
}

// Resolution is the role and profile a session resolved to. Profile is nil when no
// row exists yet or the fetch failed. Generation identifies the session event the
// resolution belongs to.
type Resolution struct {
	Role       Role
	Profile    identity.Profile
	Generation uint64
}

// OnboardingComplete reports whether the resolution is a provider with at least one
// qualified subject.
func (r Resolution) OnboardingComplete() bool {
	return r.routeResolved().OnboardingComplete()
}

func (r Resolution) routeResolved() route.Resolved {
	return route.Resolved{
		Role:         r.Role,
		ProfileFound: r.Profile != nil,
		Expertise:    identity.ExpertiseCount(r.Profile),
	}
}

// SignUpRequest defines a public type used by goOnboard APIs.
//
// SignUpRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Country   string `json:"country"`
}

// OTCWindow is the server-side record of the last code sent to an address. A code may
// be verified until ExpiresAt and resent from ResendAt.
type OTCWindow struct {
	Address   string      `json:"address"`
	Purpose   otc.Purpose `json:"purpose"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	ResendAt  time.Time   `json:"resend_at"`
	Resends   int         `json:"resends"`
}

// ExpiresIn returns the time left on the code at now, never negative.
func (w OTCWindow) ExpiresIn(now time.Time) time.Duration {
	return remaining(w.ExpiresAt, now)
}

// ResendIn returns the time left on the resend cooldown at now, never negative.
func (w OTCWindow) ResendIn(now time.Time) time.Duration {
	return remaining(w.ResendAt, now)
}

func remaining(at, now time.Time) time.Duration {
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}

func publicWindow(address string, purpose otc.Purpose, w flows.OTCWindow) OTCWindow {
	if w.IssuedAt.IsZero() {
		return OTCWindow{}
	}
	return OTCWindow{
		Address:   address,
		Purpose:   purpose,
		IssuedAt:  w.IssuedAt,
		ExpiresAt: w.ExpiresAt,
		ResendAt:  w.ResendAt,
		Resends:   w.Resends,
	}
}
