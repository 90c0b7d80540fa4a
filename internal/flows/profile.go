package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/session"
)

type ProfileMetrics struct {
	ProfileResolved     int
	ProfileMissing      int
	ProfileFetchFailure int
	QualificationSaved  int
	ProviderActivated   int
	ProfileWriteFailure int
}

type ProfileEvents struct {
	QualificationSaved string
	ProviderActivated  string
}

type ProfileErrors struct {
	EngineNotReady     error
	InvalidInput       error
	ServiceUnavailable error
}

type ProfileDeps struct {
	GetProfile    func(ctx context.Context, id string, role session.Role) (identity.Profile, error)
	UpdateProfile func(ctx context.Context, id string, role session.Role, patch identity.ProfilePatch) error
	MapStoreError func(error) error
	// LogFetchError receives fetch failures, which are not returned to the caller.
	LogFetchError func(ctx context.Context, id string, role session.Role, err error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

	Metrics ProfileMetrics
	Events  ProfileEvents
	Errors  ProfileErrors
}

// ProfileResolution is the role and profile a session resolves to. Profile is nil when
// no row exists or the fetch failed.
type ProfileResolution struct {
	Role    session.Role
	Profile identity.Profile
}

// RunResolveProfile picks the effective role, preferring override over the identity
// metadata, and fetches the matching profile. Fetch failures surface as a missing
// profile.
func RunResolveProfile(ctx context.Context, id session.Identity, override session.Role, deps ProfileDeps) ProfileResolution {
	normalizeProfileDeps(&deps)

	role := id.Metadata.Role
	if override.Valid() {
		role = override
	}
	if !role.Valid() || deps.GetProfile == nil {
		return ProfileResolution{Role: role}
	}

	p, err := deps.GetProfile(ctx, id.ID, role)
	switch {
	case err == nil && p != nil:
		deps.MetricInc(deps.Metrics.ProfileResolved)
		return ProfileResolution{Role: role, Profile: p}
	case err == nil || errors.Is(err, identity.ErrNotFound):
		deps.MetricInc(deps.Metrics.ProfileMissing)
	default:
		deps.MetricInc(deps.Metrics.ProfileFetchFailure)
		deps.LogFetchError(ctx, id.ID, role, err)
	}
	return ProfileResolution{Role: role}
}

// RunSaveQualification writes the qualification fields of a provider row.
func RunSaveQualification(ctx context.Context, id, bio, education, experience string, deps ProfileDeps) error {
	normalizeProfileDeps(&deps)

	if deps.UpdateProfile == nil {
		return deps.Errors.EngineNotReady
	}
	if id == "" {
		return deps.Errors.InvalidInput
	}

	patch := identity.ProfilePatch{
		Bio:        identity.String(bio),
		Education:  identity.String(education),
		Experience: identity.String(experience),
	}
	if err := deps.UpdateProfile(ctx, id, session.RoleProvider, patch); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.ProfileWriteFailure)
		deps.EmitAudit(ctx, deps.Events.QualificationSaved, false, id, mapped, nil)
		return mapped
	}

	deps.MetricInc(deps.Metrics.QualificationSaved)
	deps.EmitAudit(ctx, deps.Events.QualificationSaved, true, id, nil, nil)
	return nil
}

// RunCommitExpertise merges subject into the provider's expertise and activates the
// profile in a single write.
func RunCommitExpertise(ctx context.Context, id, subject string, score int, deps ProfileDeps) error {
	normalizeProfileDeps(&deps)

	if deps.UpdateProfile == nil {
		return deps.Errors.EngineNotReady
	}
	if id == "" || subject == "" {
		return deps.Errors.InvalidInput
	}

	patch := identity.ProfilePatch{
		AddExpertise: []string{subject},
		IsActive:     identity.Bool(true),
	}
	meta := func() map[string]string {
		return map[string]string{
			"subject": subject,
			"score":   strconv.Itoa(score),
		}
	}
	if err := deps.UpdateProfile(ctx, id, session.RoleProvider, patch); err != nil {
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.ProfileWriteFailure)
		deps.EmitAudit(ctx, deps.Events.ProviderActivated, false, id, mapped, meta)
		return mapped
	}

	deps.MetricInc(deps.Metrics.ProviderActivated)
	deps.EmitAudit(ctx, deps.Events.ProviderActivated, true, id, nil, meta)
	return nil
}

func normalizeProfileDeps(deps *ProfileDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.LogFetchError == nil {
		deps.LogFetchError = func(context.Context, string, session.Role, error) {}
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(error) error { return deps.Errors.ServiceUnavailable }
	}
}
