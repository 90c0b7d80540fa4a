package goOnboard

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goOnboard/route"
)

// Config defines a public type used by goOnboard APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Identity   IdentityConfig
	Session    SessionConfig
	OTC        OTCConfig
	SignIn     SignInConfig
	Onboarding OnboardingConfig
	Routes     route.Paths
	JWT        JWTConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig defines a public type used by goOnboard APIs.
//
// IdentityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentityConfig struct {
	// RequestTimeout bounds every identity service and profile store call.
	RequestTimeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goOnboard APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	// TTL is how long a stored credential pair survives without activity.
	TTL time.Duration
}

/*
====================================
OTC CONFIG
====================================
*/

// OTCConfig defines a public type used by goOnboard APIs.
//
// OTCConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTCConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	// Tick is the countdown resolution of live challenges.
	Tick        time.Duration
	RedisPrefix string
	// Retention keeps an expired window on record so a late verify reports expiry.
	Retention time.Duration

	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	MaxRequests              int
	RequestWindow            time.Duration
	MaxVerifyAttempts        int
	VerifyWindow             time.Duration
}

/*
====================================
SIGN-IN CONFIG
====================================
*/

// SignInConfig defines a public type used by goOnboard APIs.
//
// SignInConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SignInConfig struct {
	EnableThrottle   bool
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

/*
====================================
ONBOARDING CONFIG
====================================
*/

// OnboardingConfig defines a public type used by goOnboard APIs.
//
// OnboardingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OnboardingConfig struct {
	TestDuration     time.Duration
	QuestionsPerTest int
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig enables offline verification of identity service access tokens during
// restore. With VerifyKey empty every restore goes through the service.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	VerifyKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goOnboard APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// BatchSize caps how many queued events reach an [AuditBatchSink] in one call.
	BatchSize  int
}

// MetricsConfig defines a public type used by goOnboard APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Identity: IdentityConfig{
			RequestTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "obs",
			TTL:         30 * 24 * time.Hour,
		},
		OTC: OTCConfig{
			TTL:                      600 * time.Second,
			ResendCooldown:           60 * time.Second,
			Tick:                     time.Second,
			RedisPrefix:              "obo",
			Retention:                time.Hour,
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         false,
			MaxRequests:              10,
			RequestWindow:            time.Hour,
			MaxVerifyAttempts:        10,
			VerifyWindow:             10 * time.Minute,
		},
		SignIn: SignInConfig{
			EnableThrottle:   true,
			EnableIPThrottle: false,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
		},
		Onboarding: OnboardingConfig{
			TestDuration:     15 * time.Minute,
			QuestionsPerTest: 10,
		},
		Routes: route.DefaultPaths(),
		JWT: JWTConfig{
			SigningMethod: "hs256",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
			BatchSize:  32,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Routes.AuthEntry = append([]string(nil), cfg.Routes.AuthEntry...)
	out.JWT.VerifyKey = cloneBytes(cfg.JWT.VerifyKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Identity
	if c.Identity.RequestTimeout <= 0 {
		return errors.New("Identity RequestTimeout must be > 0")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	// OTC
	if c.OTC.TTL <= 0 {
		return errors.New("OTC TTL must be > 0")
	}
	if c.OTC.ResendCooldown <= 0 {
		return errors.New("OTC ResendCooldown must be > 0")
	}
	if c.OTC.ResendCooldown > c.OTC.TTL {
		return errors.New("OTC ResendCooldown must not exceed TTL")
	}
	if c.OTC.Tick <= 0 || c.OTC.Tick > c.OTC.ResendCooldown {
		return errors.New("OTC Tick must be > 0 and <= ResendCooldown")
	}
	if c.OTC.TTL%c.OTC.Tick != 0 || c.OTC.ResendCooldown%c.OTC.Tick != 0 {
		return errors.New("OTC TTL and ResendCooldown must be whole multiples of Tick")
	}
	if strings.TrimSpace(c.OTC.RedisPrefix) == "" {
		return errors.New("OTC RedisPrefix must not be empty")
	}
	if c.OTC.RedisPrefix == c.Session.RedisPrefix {
		return errors.New("OTC RedisPrefix must differ from Session RedisPrefix")
	}
	if c.OTC.Retention < 0 {
		return errors.New("OTC Retention must be >= 0")
	}
	if c.OTC.EnableIdentifierThrottle || c.OTC.EnableIPThrottle {
		if c.OTC.MaxRequests <= 0 || c.OTC.RequestWindow <= 0 {
			return errors.New("OTC MaxRequests and RequestWindow must be > 0 when throttling is enabled")
		}
		if c.OTC.MaxVerifyAttempts <= 0 || c.OTC.VerifyWindow <= 0 {
			return errors.New("OTC MaxVerifyAttempts and VerifyWindow must be > 0 when throttling is enabled")
		}
	}

	// Sign-in
	if c.SignIn.EnableThrottle {
		if c.SignIn.MaxAttempts <= 0 {
			return errors.New("SignIn MaxAttempts must be > 0 when throttling is enabled")
		}
		if c.SignIn.Cooldown <= 0 {
			return errors.New("SignIn Cooldown must be > 0 when throttling is enabled")
		}
	}

	// Onboarding
	if c.Onboarding.TestDuration <= 0 {
		return errors.New("Onboarding TestDuration must be > 0")
	}
	if c.Onboarding.QuestionsPerTest <= 0 {
		return errors.New("Onboarding QuestionsPerTest must be > 0")
	}

	// Routes
	if err := c.Routes.Validate(); err != nil {
		return err
	}

	// JWT
	if len(c.JWT.VerifyKey) > 0 {
		switch c.JWT.SigningMethod {
		case "hs256", "ed25519":
		default:
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.VerifyKey) < 32 {
			return errors.New("hs256 VerifyKey must be at least 32 bytes")
		}
		if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
			return errors.New("JWT Leeway must be between 0 and 2m")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.BatchSize < 0 {
		return errors.New("Audit BatchSize must be >= 0")
	}

	return nil
}
