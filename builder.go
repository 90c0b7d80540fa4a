package goOnboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	internalaudit "github.com/MrEthical07/goOnboard/internal/audit"
	"github.com/MrEthical07/goOnboard/internal/limiters"
	"github.com/MrEthical07/goOnboard/internal/rate"
	"github.com/MrEthical07/goOnboard/internal/stores"
	"github.com/MrEthical07/goOnboard/jwt"
	"github.com/MrEthical07/goOnboard/onboarding"
	"github.com/MrEthical07/goOnboard/scheduler"
	"github.com/MrEthical07/goOnboard/session"
	"github.com/redis/go-redis/v9"
)

// verifyOnlyAccessTTL satisfies jwt.Manager validation. The engine never issues
// tokens, so the value has no effect.
const verifyOnlyAccessTTL = time.Hour

// Builder defines a public type used by goOnboard APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auth      identity.AuthService
	profiles  identity.ProfileStore
	auditSink AuditSink
	logger    *slog.Logger
	sched     *scheduler.Scheduler
	bank      onboarding.QuestionBank

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store, code windows and throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthService sets the identity service. When it also implements
// [identity.ProfileStore] and no profile store is set, it serves profiles too.
func (b *Builder) WithAuthService(svc identity.AuthService) *Builder {
	b.auth = svc
	return b
}

// WithProfileStore sets where provider and seeker profile rows live.
func (b *Builder) WithProfileStore(store identity.ProfileStore) *Builder {
	b.profiles = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards records.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithScheduler shares a scheduler with the engine. A scheduler passed here is driven
// by the caller; without one the engine creates and runs its own.
func (b *Builder) WithScheduler(s *scheduler.Scheduler) *Builder {
	b.sched = s
	return b
}

// WithQuestionBank replaces the built-in subject test questions.
func (b *Builder) WithQuestionBank(bank onboarding.QuestionBank) *Builder {
	b.bank = bank
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.auth == nil {
		return nil, errors.New("identity service required")
	}

	profiles := b.profiles
	if profiles == nil {
		ps, ok := b.auth.(identity.ProfileStore)
		if !ok {
			return nil, errors.New("profile store required")
		}
		profiles = ps
	}

	// -------- JWT VERIFIER --------
	var jm *jwt.Manager
	if len(cfg.JWT.VerifyKey) > 0 {
		jc := jwt.Config{
			AccessTTL:     verifyOnlyAccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
		}
		if b.sched != nil {
			jc.Now = b.sched.Now
		}
		if jc.SigningMethod == jwt.MethodHS256 {
			jc.PrivateKey = cloneBytes(cfg.JWT.VerifyKey)
		} else {
			jc.PublicKey = cloneBytes(cfg.JWT.VerifyKey)
		}
		var err error
		if jm, err = jwt.NewManager(jc); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		config:       cloneConfig(cfg),
		auth:         b.auth,
		profiles:     profiles,
		jwtManager:   jm,
		bank:         b.bank,
		logger:       b.logger,
		sched:        b.sched,
		ctx:          ctx,
		cancel:       cancel,
		clients:      make(map[string]*Client),
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		otcStore:     stores.NewOTCStore(b.redis, cfg.OTC.RedisPrefix, cfg.OTC.Retention),
	}
	if engine.bank == nil {
		engine.bank = onboarding.DefaultBank()
	}
	if engine.logger == nil {
		engine.logger = slog.New(slog.DiscardHandler)
	}

	if cfg.SignIn.EnableThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:  cfg.SignIn.EnableIPThrottle,
			MaxSignInAttempts: cfg.SignIn.MaxAttempts,
			SignInCooldown:    cfg.SignIn.Cooldown,
		})
	}
	engine.otcLimiter = limiters.NewOTCLimiter(b.redis, limiters.OTCConfig{
		EnableIdentifierThrottle: cfg.OTC.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.OTC.EnableIPThrottle,
		RequestWindow:            cfg.OTC.RequestWindow,
		MaxRequests:              cfg.OTC.MaxRequests,
		VerifyWindow:             cfg.OTC.VerifyWindow,
		MaxVerifyAttempts:        cfg.OTC.MaxVerifyAttempts,
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		BatchSize:  cfg.Audit.BatchSize,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- SCHEDULER --------
	if engine.sched == nil {
		engine.sched = scheduler.New()
		engine.ownsScheduler = true
		engine.wg.Add(1)
		go func() {
			defer engine.wg.Done()
			_ = engine.sched.Run(ctx, cfg.OTC.Tick)
		}()
	}

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
