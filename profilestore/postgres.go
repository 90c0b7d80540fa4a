package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/session"
	"github.com/lib/pq"
)

// Postgres stores profiles in the seekers and providers tables created by [Migrate].
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens and pings databaseURL.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an open handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the handle.
func (s *Postgres) Close() error {
	return s.db.Close()
}

const selectSeeker = `
SELECT id, first_name, last_name, country, created_at, updated_at
FROM seekers WHERE id = $1`

const selectProvider = `
SELECT id, first_name, last_name, country, bio, education, experience, expertise,
       rating, total_earnings, is_active, is_online, last_active, created_at, updated_at
FROM providers WHERE id = $1`

func (s *Postgres) GetProfile(ctx context.Context, id string, role session.Role) (identity.Profile, error) {
	var (
		p   identity.Profile
		err error
	)
	switch role {
	case session.RoleSeeker:
		sp := &identity.SeekerProfile{}
		err = s.db.QueryRowContext(ctx, selectSeeker, id).Scan(
			&sp.ID, &sp.FirstName, &sp.LastName, &sp.Country, &sp.CreatedAt, &sp.UpdatedAt,
		)
		p = sp
	case session.RoleProvider:
		pp := &identity.ProviderProfile{}
		err = s.db.QueryRowContext(ctx, selectProvider, id).Scan(
			&pp.ID, &pp.FirstName, &pp.LastName, &pp.Country,
			&pp.Bio, &pp.Education, &pp.Experience, pq.Array(&pp.Expertise),
			&pp.Rating, &pp.TotalEarnings, &pp.IsActive, &pp.IsOnline, &pp.LastActive,
			&pp.CreatedAt, &pp.UpdatedAt,
		)
		if pp.Expertise == nil {
			pp.Expertise = []string{}
		}
		p = pp
	default:
		return nil, session.ErrInvalidRole
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return p, nil
}

const upsertSeeker = `
INSERT INTO seekers (id, first_name, last_name, country)
VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''))
ON CONFLICT (id) DO UPDATE SET
    first_name = COALESCE($2, seekers.first_name),
    last_name  = COALESCE($3, seekers.last_name),
    country    = COALESCE($4, seekers.country),
    updated_at = now()`

// New subjects are appended in request order, skipping ones already held.
const upsertProvider = `
INSERT INTO providers (id, first_name, last_name, country, bio, education, experience, expertise, is_active)
VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''),
        COALESCE($6, ''), COALESCE($7, ''), COALESCE($8::text[], '{}'), COALESCE($9, FALSE))
ON CONFLICT (id) DO UPDATE SET
    first_name = COALESCE($2, providers.first_name),
    last_name  = COALESCE($3, providers.last_name),
    country    = COALESCE($4, providers.country),
    bio        = COALESCE($5, providers.bio),
    education  = COALESCE($6, providers.education),
    experience = COALESCE($7, providers.experience),
    expertise  = providers.expertise || ARRAY(
        SELECT t.s FROM unnest(COALESCE($8::text[], '{}')) WITH ORDINALITY AS t(s, i)
        WHERE t.s <> ALL(providers.expertise)
        ORDER BY t.i),
    is_active  = COALESCE($9, providers.is_active),
    updated_at = now()`

func (s *Postgres) UpdateProfile(ctx context.Context, id string, role session.Role, patch identity.ProfilePatch) error {
	var err error
	switch role {
	case session.RoleSeeker:
		if patch.ProviderOnly() {
			return errors.New("provider fields cannot be set on a seeker profile")
		}
		_, err = s.db.ExecContext(ctx, upsertSeeker, id, patch.FirstName, patch.LastName, patch.Country)
	case session.RoleProvider:
		var add []string
		if len(patch.AddExpertise) > 0 {
			add = identity.MergeExpertise(nil, patch.AddExpertise)
		}
		_, err = s.db.ExecContext(ctx, upsertProvider, id,
			patch.FirstName, patch.LastName, patch.Country,
			patch.Bio, patch.Education, patch.Experience,
			pq.Array(add), patch.IsActive,
		)
	default:
		return session.ErrInvalidRole
	}
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return nil
}

var _ identity.ProfileStore = (*Postgres)(nil)
