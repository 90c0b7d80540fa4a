package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goOnboard/internal"
	"github.com/MrEthical07/goOnboard/jwt"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for stored passwords. Memory is an in-process service, so the
// cost is kept low.
const (
	passwordTime    = 1
	passwordMemory  = 8 * 1024
	passwordThreads = 1
	passwordKeyLen  = 32
	passwordSaltLen = 16
)

// MemoryConfig configures [Memory]. Zero values fall back to the identity service's
// documented windows.
type MemoryConfig struct {
	// Signer issues access tokens. Required.
	Signer *jwt.Manager
	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
	// NewCode generates one-time codes. Defaults to six random digits.
	NewCode        func() (string, error)
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	// OAuthBase is the prefix of URLs returned by OAuthURL.
	OAuthBase string
}

type memUser struct {
	identity session.Identity
	salt     [passwordSaltLen]byte
	password []byte
}

type memCode struct {
	code     string
	purpose  otc.Purpose
	issuedAt time.Time
}

// Memory is an in-process identity and profile service. It enforces the same code
// windows as the hosted service and signs real access tokens.
type Memory struct {
	mu       sync.Mutex
	cfg      MemoryConfig
	users    map[string]*memUser
	codes    map[string]*memCode
	refresh  map[string]string
	profiles map[string]Profile

	// ProfileHook, when set, runs at the start of every profile read and write with the
	// identity id. A non-nil error is returned to the caller.
	ProfileHook func(ctx context.Context, id string) error
}

// NewMemory returns an empty service.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.Signer == nil {
		return nil, errors.New("memory identity service requires a signer")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewCode == nil {
		cfg.NewCode = func() (string, error) { return internal.NewOTP(otc.CodeLength) }
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = otc.DefaultTTL
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = otc.DefaultResendCooldown
	}
	if cfg.OAuthBase == "" {
		cfg.OAuthBase = "memory://oauth"
	}
	return &Memory{
		cfg:      cfg,
		users:    make(map[string]*memUser),
		codes:    make(map[string]*memCode),
		refresh:  make(map[string]string),
		profiles: make(map[string]Profile),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string, salt [passwordSaltLen]byte) []byte {
	return argon2.IDKey([]byte(password), salt[:], passwordTime, passwordMemory, passwordThreads, passwordKeyLen)
}

func (m *Memory) SignUp(ctx context.Context, email, password string, md session.Metadata) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return Pending{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Pending{}, ErrInvalidCredentials
	}
	if !md.Role.Valid() {
		return Pending{}, session.ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	if _, exists := m.users[email]; exists {
		return Pending{Email: email, SentAt: now}, nil
	}

	var salt [passwordSaltLen]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return Pending{}, fmt.Errorf("password salt: %w", err)
	}
	m.users[email] = &memUser{
		identity: session.Identity{ID: uuid.NewString(), Email: email, Metadata: md},
		salt:     salt,
		password: hashPassword(password, salt),
	}
	if _, err := m.issueLocked(email, otc.PurposeSignup, now); err != nil {
		return Pending{}, err
	}
	return Pending{Email: email, SentAt: now}, nil
}

func (m *Memory) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	email = normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		// Unknown addresses pay the same hashing cost.
		_ = hashPassword(password, [passwordSaltLen]byte{})
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare(u.password, hashPassword(password, u.salt)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if !u.identity.Verified {
		return nil, ErrEmailNotConfirmed
	}
	return m.sessionLocked(u.identity)
}

// OAuthURL returns a memory:// URL naming the provider and the callback target. Use
// [Memory.CompleteOAuth] to produce the callback the provider would redirect to.
func (m *Memory) OAuthURL(provider, redirectTo string, role session.Role) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", errors.New("oauth provider required")
	}
	target, err := callbackTarget(redirectTo, role)
	if err != nil {
		return "", err
	}
	v := url.Values{}
	v.Set("provider", provider)
	v.Set("redirect_to", target)
	return m.cfg.OAuthBase + "/authorize?" + v.Encode(), nil
}

// callbackTarget appends the role query parameter to redirectTo.
func callbackTarget(redirectTo string, role session.Role) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil || redirectTo == "" {
		return "", fmt.Errorf("invalid oauth redirect target %q", redirectTo)
	}
	if role != "" {
		q := u.Query()
		q.Set("role", string(role))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// CompleteOAuth finishes an OAuth round trip started with authorizeURL for email,
// creating a verified identity on first use. It returns the callback URL with tokens
// in the fragment. The role on the redirect target becomes the metadata role of a
// new identity.
func (m *Memory) CompleteOAuth(authorizeURL, email string) (string, error) {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", err
	}
	redirectTo := u.Query().Get("redirect_to")
	target, err := url.Parse(redirectTo)
	if err != nil || redirectTo == "" {
		return "", errors.New("authorize url missing redirect target")
	}
	role, _ := session.ParseRole(target.Query().Get("role"))

	email = normalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[email]
	if !ok {
		user = &memUser{identity: session.Identity{
			ID:       uuid.NewString(),
			Email:    email,
			Verified: true,
			Metadata: session.Metadata{Role: role},
		}}
		m.users[email] = user
	}

	sess, err := m.sessionLocked(user.identity)
	if err != nil {
		return "", err
	}
	frag := url.Values{}
	frag.Set("access_token", sess.AccessToken)
	frag.Set("refresh_token", sess.RefreshToken)
	frag.Set("expires_in", strconv.Itoa(int(m.cfg.Signer.AccessTTL()/time.Second)))
	target.Fragment = frag.Encode()
	return target.String(), nil
}

func (m *Memory) RequestOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	return m.sendCode(ctx, email, purpose)
}

func (m *Memory) ResendOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	return m.sendCode(ctx, email, purpose)
}

func (m *Memory) sendCode(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	if err := ctx.Err(); err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	email = normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	if prev, ok := m.codes[email]; ok && now.Before(prev.issuedAt.Add(m.cfg.ResendCooldown)) {
		return Issued{}, ErrCooldownActive
	}
	// Unknown addresses get the same answer without a code.
	if _, ok := m.users[email]; !ok {
		return Issued{Email: email, Purpose: purpose, IssuedAt: now}, nil
	}
	return m.issueLocked(email, purpose, now)
}

func (m *Memory) issueLocked(email string, purpose otc.Purpose, now time.Time) (Issued, error) {
	code, err := m.cfg.NewCode()
	if err != nil {
		return Issued{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.codes[email] = &memCode{code: code, purpose: purpose, issuedAt: now}
	return Issued{Email: email, Purpose: purpose, IssuedAt: now}, nil
}

// LastCode returns the code currently issued to email, as a mailbox would show it.
func (m *Memory) LastCode(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[normalizeEmail(email)]
	if !ok {
		return "", false
	}
	return c.code, true
}

func (m *Memory) VerifyOTC(ctx context.Context, email, code string, purpose otc.Purpose) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	email = normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	issued, ok := m.codes[email]
	if !ok || issued.purpose != purpose {
		return nil, ErrInvalidCode
	}
	if !m.cfg.Now().Before(issued.issuedAt.Add(m.cfg.CodeTTL)) {
		return nil, ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(issued.code), []byte(code)) != 1 {
		return nil, ErrInvalidCode
	}

	user, ok := m.users[email]
	if !ok {
		return nil, ErrInvalidCode
	}
	delete(m.codes, email)
	user.identity.Verified = true
	return m.sessionLocked(user.identity)
}

func (m *Memory) SignOut(ctx context.Context, accessToken string) error {
	claims, err := m.cfg.Signer.ParseAccess(accessToken)
	if err != nil {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, id := range m.refresh {
		if id == claims.Subject {
			delete(m.refresh, tok)
		}
	}
	return nil
}

func (m *Memory) ExchangeTokens(ctx context.Context, accessToken, refreshToken string) (*session.Session, error) {
	claims, err := m.cfg.Signer.ParseAccess(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.refresh[refreshToken]; !ok || id != claims.Subject {
		return nil, ErrInvalidToken
	}
	return &session.Session{
		Identity:     claims.Identity(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Unix(),
	}, nil
}

func (m *Memory) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.refresh[refreshToken]
	if !ok {
		return nil, ErrInvalidToken
	}
	delete(m.refresh, refreshToken)

	for _, u := range m.users {
		if u.identity.ID == id {
			return m.sessionLocked(u.identity)
		}
	}
	return nil, ErrInvalidToken
}

// Invalidate revokes every refresh token of the identity registered under email.
func (m *Memory) Invalidate(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[normalizeEmail(email)]
	if !ok {
		return
	}
	for tok, id := range m.refresh {
		if id == u.identity.ID {
			delete(m.refresh, tok)
		}
	}
}

func (m *Memory) sessionLocked(id session.Identity) (*session.Session, error) {
	access, exp, err := m.cfg.Signer.CreateAccess(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	refresh, err := internal.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.refresh[refresh] = id.ID
	return &session.Session{
		Identity:     id,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp.Unix(),
	}, nil
}

func profileKey(id string, role session.Role) string {
	return string(role) + ":" + id
}

func (m *Memory) GetProfile(ctx context.Context, id string, role session.Role) (Profile, error) {
	if m.ProfileHook != nil {
		if err := m.ProfileHook(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[profileKey(id, role)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (m *Memory) UpdateProfile(ctx context.Context, id string, role session.Role, patch ProfilePatch) error {
	if m.ProfileHook != nil {
		if err := m.ProfileHook(ctx, id); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if role == session.RoleSeeker && patch.ProviderOnly() {
		return errors.New("provider fields cannot be set on a seeker profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	key := profileKey(id, role)
	p, ok := m.profiles[key]
	if !ok {
		created, err := NewProfile(id, role, now)
		if err != nil {
			return err
		}
		p = created
	} else {
		p = cloneProfile(p)
	}
	ApplyPatch(p, patch, now)
	m.profiles[key] = p
	return nil
}

// PutProfile stores p as-is, replacing any existing row.
func (m *Memory) PutProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profileKey(p.ProfileID(), p.ProfileRole())] = cloneProfile(p)
}

func cloneProfile(p Profile) Profile {
	switch v := p.(type) {
	case *SeekerProfile:
		c := *v
		return &c
	case *ProviderProfile:
		c := *v
		c.Expertise = append([]string{}, v.Expertise...)
		if v.LastActive != nil {
			t := *v.LastActive
			c.LastActive = &t
		}
		return &c
	default:
		return p
	}
}

var (
	_ AuthService  = (*Memory)(nil)
	_ ProfileStore = (*Memory)(nil)
)
