// Package config loads the onboardctl host configuration.
//
// Values come from, in increasing precedence: built-in defaults, a .env file,
// an optional YAML file, and ONBOARD_* environment variables. Nested keys map
// to variables with dots replaced by underscores, so http.addr is read from
// ONBOARD_HTTP_ADDR.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	goOnboard "github.com/MrEthical07/goOnboard"
)

// EnvPrefix prefixes every environment variable read by [Load].
const EnvPrefix = "ONBOARD"

// Profile store drivers.
const (
	DriverIdentity = "identity"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type HTTPConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	CookieName    string        `mapstructure:"cookie_name"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

// RedisConfig selects the Redis server. An empty Addr starts an embedded
// in-process server, which only suits local runs.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IdentityConfig selects the identity service. With URL empty the host runs
// the in-memory service, signing tokens with SigningKey.
type IdentityConfig struct {
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	SigningKey        string        `mapstructure:"signing_key"`
	VerifyKey         string        `mapstructure:"verify_key"`
}

type ProfilesConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	EventTypes []string `mapstructure:"event_types"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
	BatchSize  int  `mapstructure:"batch_size"`
}

type MetricsConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Path    string     `mapstructure:"path"`
	OTel    OTelConfig `mapstructure:"otel"`
}

// OTelConfig pushes metrics to an OTLP/HTTP collector. Endpoint is the collector
// base URL; metrics are posted to its /v1/metrics path. An empty endpoint leaves
// the push exporter off.
type OTelConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Interval time.Duration `mapstructure:"interval"`
}

type OnboardingConfig struct {
	TestDuration     time.Duration `mapstructure:"test_duration"`
	QuestionsPerTest int           `mapstructure:"questions_per_test"`
}

// Config is the full host configuration.
type Config struct {
	ServiceName string           `mapstructure:"service_name"`
	Env         string           `mapstructure:"env"`
	LogLevel    string           `mapstructure:"log_level"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Identity    IdentityConfig   `mapstructure:"identity"`
	Profiles    ProfilesConfig   `mapstructure:"profiles"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Audit       AuditConfig      `mapstructure:"audit"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Onboarding  OnboardingConfig `mapstructure:"onboarding"`
}

// Load reads the configuration. path names a YAML file that must exist; when
// empty, onboard.yaml in the working directory is used if present. envFiles
// are .env files read without touching the process environment; missing ones
// are skipped.
func Load(path string, envFiles ...string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := applyDotEnv(v, envFiles); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("onboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "goonboard")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.cookie_name", "onboard_client")
	v.SetDefault("http.secure_cookies", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("identity.url", "")
	v.SetDefault("identity.api_key", "")
	v.SetDefault("identity.timeout", 10*time.Second)
	v.SetDefault("identity.requests_per_second", 20.0)
	v.SetDefault("identity.burst", 5)
	v.SetDefault("identity.signing_key", "")
	v.SetDefault("identity.verify_key", "")

	v.SetDefault("profiles.driver", DriverIdentity)
	v.SetDefault("profiles.dsn", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "goonboard.audit")
	v.SetDefault("kafka.event_types", []string{})

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.drop_if_full", true)
	v.SetDefault("audit.batch_size", 32)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.otel.endpoint", "")
	v.SetDefault("metrics.otel.interval", 30*time.Second)

	v.SetDefault("onboarding.test_duration", 15*time.Minute)
	v.SetDefault("onboarding.questions_per_test", 10)
}

// applyDotEnv lifts ONBOARD_* values of the env files over the built-in
// defaults. Real environment variables and the YAML file still win.
func applyDotEnv(v *viper.Viper, files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file %s: %w", f, err)
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return nil
	}

	values, err := godotenv.Read(existing...)
	if err != nil {
		return fmt.Errorf("read env files: %w", err)
	}
	for _, key := range v.AllKeys() {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if val, ok := values[name]; ok {
			v.SetDefault(key, val)
		}
	}
	return nil
}

// Validate rejects settings the host cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("config: http.addr is required")
	}
	if c.HTTP.CookieName == "" {
		return errors.New("config: http.cookie_name is required")
	}
	switch c.Profiles.Driver {
	case DriverIdentity:
	case DriverPostgres, DriverSQLite:
		if c.Profiles.DSN == "" {
			return fmt.Errorf("config: profiles.dsn is required for driver %s", c.Profiles.Driver)
		}
	default:
		return fmt.Errorf("config: unknown profiles.driver %q", c.Profiles.Driver)
	}
	if c.Identity.URL != "" && c.Identity.APIKey == "" {
		return errors.New("config: identity.api_key is required with identity.url")
	}
	if c.Identity.URL == "" && len(c.Identity.SigningKey) < 32 {
		return errors.New("config: identity.signing_key of at least 32 bytes is required for the in-memory identity service")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("config: metrics.path must be absolute")
	}
	if c.Metrics.OTel.Endpoint != "" {
		u, err := url.Parse(c.Metrics.OTel.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: metrics.otel.endpoint %q must be an http(s) URL", c.Metrics.OTel.Endpoint)
		}
		if c.Metrics.OTel.Interval <= 0 {
			return errors.New("config: metrics.otel.interval must be > 0")
		}
	}
	if c.Audit.BatchSize < 0 {
		return errors.New("config: audit.batch_size must be >= 0")
	}
	return nil
}

// MemoryIdentity reports whether the host runs the in-memory identity service.
func (c *Config) MemoryIdentity() bool {
	return c.Identity.URL == ""
}

// EngineConfig maps the host settings onto the engine configuration.
func (c *Config) EngineConfig() goOnboard.Config {
	cfg := goOnboard.DefaultConfig()
	cfg.Identity.RequestTimeout = c.Identity.Timeout
	if c.Identity.VerifyKey != "" {
		cfg.JWT.VerifyKey = []byte(c.Identity.VerifyKey)
	} else if c.MemoryIdentity() {
		cfg.JWT.VerifyKey = []byte(c.Identity.SigningKey)
	}
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull
	cfg.Audit.BatchSize = c.Audit.BatchSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	cfg.Onboarding.TestDuration = c.Onboarding.TestDuration
	cfg.Onboarding.QuestionsPerTest = c.Onboarding.QuestionsPerTest
	return cfg
}
