package identity

import (
	"strings"
	"time"

	"github.com/MrEthical07/goOnboard/session"
	"github.com/shopspring/decimal"
)

// Profile is implemented by [SeekerProfile] and [ProviderProfile].
type Profile interface {
	ProfileID() string
	ProfileRole() session.Role
}

// SeekerProfile is the profile row of a seeker.
type SeekerProfile struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *SeekerProfile) ProfileID() string         { return p.ID }
func (p *SeekerProfile) ProfileRole() session.Role { return session.RoleSeeker }

// ProviderProfile is the profile row of a provider. A provider with no expertise has
// not completed onboarding.
type ProviderProfile struct {
	ID            string          `json:"id"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Country       string          `json:"country"`
	Bio           string          `json:"bio"`
	Education     string          `json:"education"`
	Experience    string          `json:"experience"`
	Expertise     []string        `json:"expertise"`
	Rating        decimal.Decimal `json:"rating"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	IsActive      bool            `json:"is_active"`
	IsOnline      bool            `json:"is_online"`
	LastActive    *time.Time      `json:"last_active,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *ProviderProfile) ProfileID() string         { return p.ID }
func (p *ProviderProfile) ProfileRole() session.Role { return session.RoleProvider }

// OnboardingComplete reports whether the provider has at least one qualified subject.
func (p *ProviderProfile) OnboardingComplete() bool {
	return p != nil && len(p.Expertise) > 0
}

// ExpertiseCount returns the number of subjects on a provider profile and zero for
// anything else, including nil.
func ExpertiseCount(p Profile) int {
	if pp, ok := p.(*ProviderProfile); ok && pp != nil {
		return len(pp.Expertise)
	}
	return 0
}

// ProfilePatch is a partial row update. Nil fields are left unchanged. AddExpertise is
// merged into the existing expertise with set semantics, keeping first-seen order.
type ProfilePatch struct {
	FirstName    *string  `json:"first_name,omitempty"`
	LastName     *string  `json:"last_name,omitempty"`
	Country      *string  `json:"country,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	Education    *string  `json:"education,omitempty"`
	Experience   *string  `json:"experience,omitempty"`
	AddExpertise []string `json:"add_expertise,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

// String returns a pointer to v for patch literals.
func String(v string) *string { return &v }

// Bool returns a pointer to v for patch literals.
func Bool(v bool) *bool { return &v }

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Country == nil &&
		p.Bio == nil && p.Education == nil && p.Experience == nil &&
		len(p.AddExpertise) == 0 && p.IsActive == nil
}

// ProviderOnly reports whether the patch sets provider-only fields.
func (p ProfilePatch) ProviderOnly() bool {
	return p.Bio != nil || p.Education != nil || p.Experience != nil ||
		len(p.AddExpertise) > 0 || p.IsActive != nil
}

// ApplySeeker applies the patch to a seeker row.
func (p ProfilePatch) ApplySeeker(dst *SeekerProfile, now time.Time) {
	setString(&dst.FirstName, p.FirstName)
	setString(&dst.LastName, p.LastName)
	setString(&dst.Country, p.Country)
	dst.UpdatedAt = now
}

// ApplyProvider applies the patch to a provider row.
func (p ProfilePatch) ApplyProvider(dst *ProviderProfile, now time.Time) {
	setString(&dst.FirstName, p.FirstName)
	setString(&dst.LastName, p.LastName)
	setString(&dst.Country, p.Country)
	setString(&dst.Bio, p.Bio)
	setString(&dst.Education, p.Education)
	setString(&dst.Experience, p.Experience)
	dst.Expertise = MergeExpertise(dst.Expertise, p.AddExpertise)
	if p.IsActive != nil {
		dst.IsActive = *p.IsActive
	}
	dst.UpdatedAt = now
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// MergeExpertise returns existing followed by the subjects of add it does not already
// hold. Blank subjects are dropped.
func MergeExpertise(existing, add []string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]struct{}, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// NewProfile returns an empty row of the variant matching role.
func NewProfile(id string, role session.Role, now time.Time) (Profile, error) {
	switch role {
	case session.RoleSeeker:
		return &SeekerProfile{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	case session.RoleProvider:
		return &ProviderProfile{ID: id, Expertise: []string{}, CreatedAt: now, UpdatedAt: now}, nil
	default:
		return nil, session.ErrInvalidRole
	}
}

// ApplyPatch applies patch to whichever variant p is.
func ApplyPatch(p Profile, patch ProfilePatch, now time.Time) {
	switch v := p.(type) {
	case *SeekerProfile:
		patch.ApplySeeker(v, now)
	case *ProviderProfile:
		patch.ApplyProvider(v, now)
	}
}
