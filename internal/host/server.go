package host

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/middleware"
)

const (
	defaultCookieName     = "onboard_client"
	defaultResolveTimeout = 15 * time.Second
	clientCookieMaxAge    = 30 * 24 * time.Hour
)

// Options configures a [Server].
type Options struct {
	Engine *goOnboard.Engine
	Logger *slog.Logger
	// CookieName carries the client key. Defaults to onboard_client.
	CookieName    string
	SecureCookies bool
	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
	// ResolveTimeout bounds how long a request waits for a profile resolution.
	ResolveTimeout time.Duration
}

// Server serves the onboarding API and guarded views for one engine.
type Server struct {
	engine         *goOnboard.Engine
	logger         *slog.Logger
	cookieName     string
	secureCookies  bool
	resolveTimeout time.Duration
	restores       singleflight.Group
	router         chi.Router
}

// New validates opts and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("host: engine required")
	}
	s := &Server{
		engine:         opts.Engine,
		logger:         opts.Logger,
		cookieName:     opts.CookieName,
		secureCookies:  opts.SecureCookies,
		resolveTimeout: opts.ResolveTimeout,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.cookieName == "" {
		s.cookieName = defaultCookieName
	}
	if s.resolveTimeout <= 0 {
		s.resolveTimeout = defaultResolveTimeout
	}
	s.router = s.routes(opts.Metrics, opts.MetricsPath)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(metrics http.Handler, metricsPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if metrics != nil && metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/signin", s.handleSignIn)
		r.Post("/signout", s.handleSignOut)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/session", s.handleSession)
		r.Get("/oauth/url", s.handleOAuthURL)
		r.Post("/oauth/callback", s.handleCallbackURL)

		r.Route("/otc", func(r chi.Router) {
			r.Post("/request", s.handleOTCRequest)
			r.Post("/resend", s.handleOTCResend)
			r.Post("/verify", s.handleOTCVerify)
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/stage", s.handleOnboardingStage)
			r.Post("/qualification", s.handleQualification)
			r.Post("/back", s.handleOnboardingBack)
			r.Post("/subjects", s.handleSubjects)
			r.Post("/answer", s.handleAnswer)
			r.Post("/submit", s.handleSubmitTest)
			r.Post("/finish", s.handleFinish)
			r.Post("/restart", s.handleRestart)
		})
	})

	r.Get("/auth/callback", s.handleCallback)
	r.Get("/ws/otc", s.handleOTCStream)

	paths := s.engine.Paths()
	r.With(middleware.RequireSeeker(s.engine, s.lookup, paths.SeekerHome)).Get(paths.SeekerHome, s.handleView)
	r.With(middleware.RequireProvider(s.engine, s.lookup, paths.ProviderHome)).Get(paths.ProviderHome, s.handleView)
	r.With(middleware.RequireProvider(s.engine, s.lookup, paths.Onboarding)).Get(paths.Onboarding, s.handleView)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	latency, err := s.engine.Ping(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"redis_latency": latency.String(),
	})
}

// lookup returns the bootstrapped client named by the request cookie, or nil.
func (s *Server) lookup(r *http.Request) *goOnboard.Client {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	c, err := s.engine.Client(cookie.Value)
	if err != nil {
		return nil
	}
	s.bootstrap(r, c)
	return c
}

// client returns the caller's client, allocating one and setting the cookie
// when the request has none.
func (s *Server) client(w http.ResponseWriter, r *http.Request) (*goOnboard.Client, error) {
	if c := s.lookup(r); c != nil {
		return c, nil
	}
	c, err := s.engine.Client("")
	if err != nil {
		return nil, err
	}
	s.setClientCookie(w, r, c.Key())
	s.bootstrap(r, c)
	return c, nil
}

// bootstrap restores a fresh client once, however many requests race for it,
// then waits for the resolution that follows.
func (s *Server) bootstrap(r *http.Request, c *goOnboard.Client) {
	ctx := requestContext(r)
	if !c.Bootstrapped() {
		_, _, _ = s.restores.Do(c.Key(), func() (any, error) {
			if c.Bootstrapped() {
				return nil, nil
			}
			if err := c.Restore(ctx); err != nil {
				s.logger.WarnContext(ctx, "restore failed", slog.Any("error", err))
			}
			return nil, nil
		})
	}
	s.waitResolved(ctx, c)
}

func (s *Server) waitResolved(ctx context.Context, c *goOnboard.Client) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()
	if err := c.WaitResolved(ctx); err != nil {
		s.logger.WarnContext(ctx, "resolution still pending", slog.Any("error", err))
	}
}

func requestContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return goOnboard.WithClientIP(r.Context(), host)
}

func (s *Server) setClientCookie(w http.ResponseWriter, r *http.Request, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    key,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearClientCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func goOnboardClient(r *http.Request) (*goOnboard.Client, bool) {
	return middleware.ClientFromContext(r.Context())
}
