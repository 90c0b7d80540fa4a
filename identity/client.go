package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
	"golang.org/x/time/rate"
)

const (
	defaultClientTimeout = 10 * time.Second
	maxResponseBytes     = 1 << 20
)

// ClientConfig configures [Client].
type ClientConfig struct {
	// BaseURL is the project URL, e.g. https://xyz.example.co. Auth calls go to
	// /auth/v1 and row calls to /rest/v1.
	BaseURL string
	// APIKey is the public anon key sent with every request.
	APIKey string
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// SeekerTable and ProviderTable name the profile tables.
	SeekerTable   string
	ProviderTable string
	HTTPClient    *http.Client
}

// Client talks to a hosted identity service over its auth and row REST APIs.
type Client struct {
	base    *url.URL
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	http    *http.Client
	tables  map[session.Role]string
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid identity base url %q", cfg.BaseURL)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("identity api key required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if cfg.SeekerTable == "" {
		cfg.SeekerTable = "seekers"
	}
	if cfg.ProviderTable == "" {
		cfg.ProviderTable = "providers"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		base:    base,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		limiter: limiter,
		http:    httpClient,
		tables: map[session.Role]string{
			session.RoleSeeker:   cfg.SeekerTable,
			session.RoleProvider: cfg.ProviderTable,
		},
	}, nil
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's access token to ctx so row calls run with the
// caller's row-level permissions instead of the anon key.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func accessTokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(accessTokenKey{}).(string)
	return v
}

type apiError struct {
	Status      int
	Code        string `json:"error_code"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
}

func (e *apiError) code() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Error
}

func (e *apiError) String() string {
	for _, v := range []string{e.Description, e.Msg, e.Message, e.Error} {
		if v != "" {
			return fmt.Sprintf("status %d: %s", e.Status, v)
		}
	}
	return fmt.Sprintf("status %d", e.Status)
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	bearer string
	header map[string]string
}

// do sends req and decodes a 2xx body into out. Non-2xx answers are returned as
// *apiError; transport failures wrap ErrUnavailable.
func (c *Client) do(ctx context.Context, req request, out any) (*apiError, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	u := *c.base
	u.Path = c.base.Path + req.path
	u.RawQuery = req.query.Encode()

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("apikey", c.apiKey)
	bearer := req.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr, nil
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil, nil
}

type userBody struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	EmailConfirmedAt *time.Time       `json:"email_confirmed_at"`
	UserMetadata     session.Metadata `json:"user_metadata"`
}

func (u userBody) identity() session.Identity {
	return session.Identity{
		ID:       u.ID,
		Email:    u.Email,
		Verified: u.EmailConfirmedAt != nil,
		Metadata: u.UserMetadata,
	}
}

type tokenBody struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *userBody `json:"user"`
}

func (t *tokenBody) session() (*session.Session, error) {
	if t.AccessToken == "" || t.RefreshToken == "" || t.User == nil || t.User.ID == "" {
		return nil, ErrMalformedResponse
	}
	exp := t.ExpiresAt
	if exp == 0 && t.ExpiresIn > 0 {
		exp = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second).Unix()
	}
	return &session.Session{
		Identity:     t.User.identity(),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    exp,
	}, nil
}

func (c *Client) token(ctx context.Context, grant string, body any, reject func(*apiError) error) (*session.Session, error) {
	var out tokenBody
	apiErr, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, reject(apiErr)
	}
	return out.session()
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password}, func(e *apiError) error {
		switch {
		case e.Status == http.StatusTooManyRequests:
			return ErrRateLimited
		case e.code() == "email_not_confirmed":
			return ErrEmailNotConfirmed
		default:
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, e)
		}
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken}, func(e *apiError) error {
		if e.Status == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: %s", ErrInvalidToken, e)
	})
}

func (c *Client) SignUp(ctx context.Context, email, password string, md session.Metadata) (Pending, error) {
	if !md.Role.Valid() {
		return Pending{}, session.ErrInvalidRole
	}
	apiErr, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body: map[string]any{
			"email":    email,
			"password": password,
			"data":     md,
		},
	}, nil)
	if err != nil {
		return Pending{}, err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusTooManyRequests {
			return Pending{}, ErrRateLimited
		}
		return Pending{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr)
	}
	return Pending{Email: email, SentAt: time.Now()}, nil
}

func (c *Client) OAuthURL(provider, redirectTo string, role session.Role) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", errors.New("oauth provider required")
	}
	target, err := callbackTarget(redirectTo, role)
	if err != nil {
		return "", err
	}
	u := *c.base
	u.Path = c.base.Path + "/auth/v1/authorize"
	u.RawQuery = url.Values{"provider": {provider}, "redirect_to": {target}}.Encode()
	return u.String(), nil
}

func (c *Client) RequestOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	return c.sendCode(ctx, email, purpose)
}

func (c *Client) ResendOTC(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	return c.sendCode(ctx, email, purpose)
}

func (c *Client) sendCode(ctx context.Context, email string, purpose otc.Purpose) (Issued, error) {
	req := request{method: http.MethodPost}
	switch purpose {
	case otc.PurposeSignup:
		req.path = "/auth/v1/resend"
		req.body = map[string]string{"type": "signup", "email": email}
	case otc.PurposeRecovery:
		req.path = "/auth/v1/recover"
		req.body = map[string]string{"email": email}
	default:
		return Issued{}, fmt.Errorf("unknown otc purpose %q", purpose)
	}

	apiErr, err := c.do(ctx, req, nil)
	if err != nil {
		return Issued{}, err
	}
	if apiErr != nil {
		if apiErr.Status == http.StatusTooManyRequests || apiErr.code() == "over_email_send_rate_limit" {
			return Issued{}, ErrCooldownActive
		}
		return Issued{}, fmt.Errorf("%w: %s", ErrUnavailable, apiErr)
	}
	return Issued{Email: email, Purpose: purpose, IssuedAt: time.Now()}, nil
}

func (c *Client) VerifyOTC(ctx context.Context, email, code string, purpose otc.Purpose) (*session.Session, error) {
	var out tokenBody
	apiErr, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": string(purpose), "email": email, "token": code},
	}, &out)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return nil, ErrRateLimited
		case apiErr.code() == "otp_expired":
			return nil, ErrCodeExpired
		default:
			return nil, ErrInvalidCode
		}
	}
	return out.session()
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	apiErr, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
	if err != nil {
		return err
	}
	if apiErr != nil && apiErr.Status != http.StatusUnauthorized && apiErr.Status != http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr)
	}
	return nil
}

func (c *Client) ExchangeTokens(ctx context.Context, accessToken, refreshToken string) (*session.Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrCallbackMissingTokens
	}
	var user userBody
	apiErr, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, apiErr)
	}
	if user.ID == "" {
		return nil, ErrMalformedResponse
	}
	return &session.Session{
		Identity:     user.identity(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (c *Client) table(role session.Role) (string, error) {
	t, ok := c.tables[role]
	if !ok {
		return "", session.ErrInvalidRole
	}
	return t, nil
}

func (c *Client) GetProfile(ctx context.Context, id string, role session.Role) (Profile, error) {
	table, err := c.table(role)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	apiErr, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + table,
		query:  url.Values{"id": {"eq." + id}, "select": {"*"}},
		bearer: accessTokenFrom(ctx),
	}, &raw)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, apiErr)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	p, err := NewProfile(id, role, time.Time{})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw[0], p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return p, nil
}

// UpdateProfile upserts the row. Expertise merges read the current row first, so two
// concurrent merges for the same provider may lose one subject.
func (c *Client) UpdateProfile(ctx context.Context, id string, role session.Role, patch ProfilePatch) error {
	table, err := c.table(role)
	if err != nil {
		return err
	}
	if role == session.RoleSeeker && patch.ProviderOnly() {
		return errors.New("provider fields cannot be set on a seeker profile")
	}

	row := map[string]any{"id": id}
	setIf := func(name string, v *string) {
		if v != nil {
			row[name] = *v
		}
	}
	setIf("first_name", patch.FirstName)
	setIf("last_name", patch.LastName)
	setIf("country", patch.Country)
	setIf("bio", patch.Bio)
	setIf("education", patch.Education)
	setIf("experience", patch.Experience)
	if patch.IsActive != nil {
		row["is_active"] = *patch.IsActive
	}

	if len(patch.AddExpertise) > 0 {
		var existing []string
		current, err := c.GetProfile(ctx, id, role)
		switch {
		case err == nil:
			existing = current.(*ProviderProfile).Expertise
		case !errors.Is(err, ErrNotFound):
			return err
		}
		row["expertise"] = MergeExpertise(existing, patch.AddExpertise)
	}
	row["updated_at"] = time.Now().UTC()

	apiErr, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/" + table,
		query:  url.Values{"on_conflict": {"id"}},
		body:   []map[string]any{row},
		bearer: accessTokenFrom(ctx),
		header: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}, nil)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr)
	}
	return nil
}

var (
	_ AuthService  = (*Client)(nil)
	_ ProfileStore = (*Client)(nil)
)
