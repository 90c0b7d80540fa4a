package profilestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/session"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLite stores profiles in a single-file database. Expertise is kept as a JSON array
// and monetary values as decimal text.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and ensures the schema.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS seekers (
			id         TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			country    TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS providers (
			id             TEXT PRIMARY KEY,
			first_name     TEXT NOT NULL DEFAULT '',
			last_name      TEXT NOT NULL DEFAULT '',
			country        TEXT NOT NULL DEFAULT '',
			bio            TEXT NOT NULL DEFAULT '',
			education      TEXT NOT NULL DEFAULT '',
			experience     TEXT NOT NULL DEFAULT '',
			expertise      TEXT NOT NULL DEFAULT '[]',
			rating         TEXT NOT NULL DEFAULT '0',
			total_earnings TEXT NOT NULL DEFAULT '0',
			is_active      INTEGER NOT NULL DEFAULT 0,
			is_online      INTEGER NOT NULL DEFAULT 0,
			last_active    INTEGER,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetProfile(ctx context.Context, id string, role session.Role) (identity.Profile, error) {
	p, err := s.load(ctx, s.db, id, role)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, identity.ErrNotFound
	}
	return p, nil
}

// UpdateProfile reads the row, applies the patch and writes it back in one
// transaction. A missing row is created from the patch.
func (s *SQLite) UpdateProfile(ctx context.Context, id string, role session.Role, patch identity.ProfilePatch) error {
	if !role.Valid() {
		return session.ErrInvalidRole
	}
	if role == session.RoleSeeker && patch.ProviderOnly() {
		return errors.New("provider fields cannot be set on a seeker profile")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	p, err := s.load(ctx, tx, id, role)
	if err != nil {
		return err
	}
	if p == nil {
		if p, err = identity.NewProfile(id, role, now); err != nil {
			return err
		}
	}
	identity.ApplyPatch(p, patch, now)

	if err := s.write(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// load returns nil, nil when the row does not exist.
func (s *SQLite) load(ctx context.Context, q queryer, id string, role session.Role) (identity.Profile, error) {
	var (
		created, updated int64
		err              error
	)
	switch role {
	case session.RoleSeeker:
		sp := &identity.SeekerProfile{}
		err = q.QueryRowContext(ctx,
			`SELECT id, first_name, last_name, country, created_at, updated_at FROM seekers WHERE id = ?`, id,
		).Scan(&sp.ID, &sp.FirstName, &sp.LastName, &sp.Country, &created, &updated)
		if err == nil {
			sp.CreatedAt, sp.UpdatedAt = fromUnixNano(created), fromUnixNano(updated)
			return sp, nil
		}
	case session.RoleProvider:
		var (
			pp                 = &identity.ProviderProfile{}
			expertise          string
			rating, earnings   string
			lastActive         sql.NullInt64
			isActive, isOnline int
		)
		err = q.QueryRowContext(ctx, `
			SELECT id, first_name, last_name, country, bio, education, experience, expertise,
			       rating, total_earnings, is_active, is_online, last_active, created_at, updated_at
			FROM providers WHERE id = ?`, id,
		).Scan(&pp.ID, &pp.FirstName, &pp.LastName, &pp.Country, &pp.Bio, &pp.Education, &pp.Experience,
			&expertise, &rating, &earnings, &isActive, &isOnline, &lastActive, &created, &updated)
		if err == nil {
			if err := json.Unmarshal([]byte(expertise), &pp.Expertise); err != nil {
				return nil, fmt.Errorf("decode expertise for %s: %w", id, err)
			}
			if pp.Expertise == nil {
				pp.Expertise = []string{}
			}
			if pp.Rating, err = decimal.NewFromString(rating); err != nil {
				return nil, fmt.Errorf("decode rating for %s: %w", id, err)
			}
			if pp.TotalEarnings, err = decimal.NewFromString(earnings); err != nil {
				return nil, fmt.Errorf("decode earnings for %s: %w", id, err)
			}
			pp.IsActive, pp.IsOnline = isActive != 0, isOnline != 0
			if lastActive.Valid {
				t := fromUnixNano(lastActive.Int64)
				pp.LastActive = &t
			}
			pp.CreatedAt, pp.UpdatedAt = fromUnixNano(created), fromUnixNano(updated)
			return pp, nil
		}
	default:
		return nil, session.ErrInvalidRole
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
}

func (s *SQLite) write(ctx context.Context, q queryer, p identity.Profile) error {
	var err error
	switch v := p.(type) {
	case *identity.SeekerProfile:
		_, err = q.ExecContext(ctx, `
			INSERT INTO seekers (id, first_name, last_name, country, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name  = excluded.last_name,
				country    = excluded.country,
				updated_at = excluded.updated_at`,
			v.ID, v.FirstName, v.LastName, v.Country, v.CreatedAt.UnixNano(), v.UpdatedAt.UnixNano())
	case *identity.ProviderProfile:
		expertise, merr := json.Marshal(v.Expertise)
		if merr != nil {
			return merr
		}
		var lastActive any
		if v.LastActive != nil {
			lastActive = v.LastActive.UnixNano()
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO providers (id, first_name, last_name, country, bio, education, experience, expertise,
			                       rating, total_earnings, is_active, is_online, last_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name  = excluded.last_name,
				country    = excluded.country,
				bio        = excluded.bio,
				education  = excluded.education,
				experience = excluded.experience,
				expertise  = excluded.expertise,
				is_active  = excluded.is_active,
				updated_at = excluded.updated_at`,
			v.ID, v.FirstName, v.LastName, v.Country, v.Bio, v.Education, v.Experience, string(expertise),
			v.Rating.String(), v.TotalEarnings.String(), boolInt(v.IsActive), boolInt(v.IsOnline), lastActive,
			v.CreatedAt.UnixNano(), v.UpdatedAt.UnixNano())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ identity.ProfileStore = (*SQLite)(nil)
