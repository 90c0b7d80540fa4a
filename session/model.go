package session

import (
	"errors"
	"strings"
	"time"
)

// Role is the marketplace role attached to an identity at sign-up.
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleProvider Role = "provider"
)

// ErrInvalidRole is returned by [ParseRole] for anything other than seeker or provider.
var ErrInvalidRole = errors.New("role must be seeker or provider")

// ParseRole normalizes and validates a role string.
func ParseRole(v string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(v))) {
	case RoleSeeker:
		return RoleSeeker, nil
	case RoleProvider:
		return RoleProvider, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleProvider
}

// Metadata is the sign-up metadata the identity service keeps with an identity.
type Metadata struct {
	Role      Role   `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Identity is the authenticated principal. Only Verified may change after creation.
type Identity struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Verified bool     `json:"verified"`
	Metadata Metadata `json:"metadata"`
}

// Session defines a public type used by goOnboard APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry in unix seconds.
	ExpiresAt int64

	// SchemaVersion is the encoding version the session was decoded from. Zero for
	// sessions that were never stored.
	SchemaVersion uint8
}

// Role returns the role from the identity metadata.
func (s *Session) Role() Role {
	if s == nil {
		return ""
	}
	return s.Identity.Metadata.Role
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt)
}

// Clone returns a copy that shares no state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
