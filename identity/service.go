package identity

import (
	"context"
	"time"

	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

// AuthService is the subset of the hosted identity service the Engine consumes.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*session.Session, error)
	// SignUp registers an unverified identity and sends a sign-up code. An address
	// that is already registered yields the same Pending result.
	SignUp(ctx context.Context, email, password string, md session.Metadata) (Pending, error)
	// OAuthURL returns the external URL that starts an OAuth round trip. role is carried
	// back on the callback URL as a query parameter.
	OAuthURL(provider, redirectTo string, role session.Role) (string, error)
	RequestOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error)
	VerifyOTC(ctx context.Context, email, code string, purpose otc.Purpose) (*session.Session, error)
	ResendOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error)
	SignOut(ctx context.Context, accessToken string) error
	// ExchangeTokens turns a callback token pair into a session.
	ExchangeTokens(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
}

// ProfileStore reads and writes role-specific profile rows.
type ProfileStore interface {
	// GetProfile returns ErrNotFound when no row exists for id under role.
	GetProfile(ctx context.Context, id string, role session.Role) (Profile, error)
	// UpdateProfile applies patch in one write, creating the row if it does not exist.
	UpdateProfile(ctx context.Context, id string, role session.Role, patch ProfilePatch) error
}

// Pending is the result of a sign-up awaiting code verification.
type Pending struct {
	Email  string    `json:"email"`
	SentAt time.Time `json:"sent_at"`
}

// Issued describes a code the service has sent.
type Issued struct {
	Email    string      `json:"email"`
	Purpose  otc.Purpose `json:"purpose"`
	IssuedAt time.Time   `json:"issued_at"`
}
