package goOnboard

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func TestLint_DefaultConfigHasNoHighWarnings(t *testing.T) {
	cfg := defaultConfig()
	ws := cfg.Lint()

	if high := ws.BySeverity(LintHigh); len(high) != 0 {
		t.Fatalf("default config should have no HIGH warnings, got %v", high.Codes())
	}
	// Audit is off and no verify key is set by default.
	for _, code := range []string{"audit_disabled", "local_verification_disabled", "ip_throttle_disabled"} {
		if !containsCode(ws.Codes(), code) {
			t.Errorf("expected %s on default config", code)
		}
	}
	if containsCode(ws.Codes(), "otc_windows_nonstandard") {
		t.Error("default otc windows must not be flagged")
	}
}

func TestLint_Findings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
		sev    LintSeverity
	}{
		{
			name:   "long identity timeout",
			mutate: func(c *Config) { c.Identity.RequestTimeout = time.Minute },
			code:   "request_timeout_long",
			sev:    LintWarn,
		},
		{
			name:   "short identity timeout",
			mutate: func(c *Config) { c.Identity.RequestTimeout = 200 * time.Millisecond },
			code:   "request_timeout_short",
			sev:    LintWarn,
		},
		{
			name:   "long session ttl",
			mutate: func(c *Config) { c.Session.TTL = 120 * 24 * time.Hour },
			code:   "session_ttl_long",
			sev:    LintInfo,
		},
		{
			name:   "nonstandard otc windows",
			mutate: func(c *Config) { c.OTC.TTL = 300 * time.Second },
			code:   "otc_windows_nonstandard",
			sev:    LintInfo,
		},
		{
			name:   "zero retention",
			mutate: func(c *Config) { c.OTC.Retention = 0 },
			code:   "otc_retention_zero",
			sev:    LintWarn,
		},
		{
			name: "all throttles off",
			mutate: func(c *Config) {
				c.OTC.EnableIdentifierThrottle = false
				c.SignIn.EnableThrottle = false
			},
			code: "rate_limits_disabled",
			sev:  LintHigh,
		},
		{
			name:   "signin throttle off",
			mutate: func(c *Config) { c.SignIn.EnableThrottle = false },
			code:   "signin_throttle_disabled",
			sev:    LintWarn,
		},
		{
			name:   "short test",
			mutate: func(c *Config) { c.Onboarding.TestDuration = 2 * time.Minute },
			code:   "test_duration_short",
			sev:    LintWarn,
		},
		{
			name:   "home is auth entry",
			mutate: func(c *Config) { c.Routes.SeekerHome = "/signin" },
			code:   "route_home_is_auth_entry",
			sev:    LintHigh,
		},
		{
			name:   "hs256 verify key",
			mutate: func(c *Config) { c.JWT.VerifyKey = []byte(testSigningKey) },
			code:   "signing_hs256",
			sev:    LintInfo,
		},
		{
			name: "large leeway",
			mutate: func(c *Config) {
				c.JWT.VerifyKey = []byte(testSigningKey)
				c.JWT.Leeway = 90 * time.Second
			},
			code: "leeway_large",
			sev:  LintWarn,
		},
		{
			name: "lossy audit",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.DropIfFull = true
			},
			code: "audit_lossy",
			sev:  LintInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			for _, w := range cfg.Lint() {
				if w.Code == tt.code {
					if w.Severity != tt.sev {
						t.Fatalf("%s: expected %s, got %s", tt.code, tt.sev, w.Severity)
					}
					if w.Message == "" {
						t.Fatalf("%s: expected a message", tt.code)
					}
					return
				}
			}
			t.Fatalf("expected %s warning", tt.code)
		})
	}
}

func TestLint_SigninOffDoesNotReportAllDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.SignIn.EnableThrottle = false

	codes := cfg.Lint().Codes()
	if containsCode(codes, "rate_limits_disabled") {
		t.Fatal("otc throttle is still on")
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("expected no error for default config, got %v", err)
	}

	cfg.Routes.ProviderHome = "/signup"
	err := cfg.Lint().AsError(LintHigh)
	if err == nil {
		t.Fatal("expected error for HIGH warning")
	}
	if !strings.Contains(err.Error(), "route_home_is_auth_entry") || !strings.Contains(err.Error(), "[HIGH]") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if errors.Unwrap(err) != nil {
		t.Fatal("lint error should not wrap a cause")
	}
}

func TestLint_DoesNotMutateConfig(t *testing.T) {
	cfg := defaultConfig()
	before := cloneConfig(cfg)
	_ = cfg.Lint()

	if cfg.OTC != before.OTC || cfg.SignIn != before.SignIn || cfg.Identity != before.Identity {
		t.Fatal("Lint mutated the config")
	}
}

func TestLintSeverityString(t *testing.T) {
	if LintInfo.String() != "INFO" || LintWarn.String() != "WARN" || LintHigh.String() != "HIGH" {
		t.Fatal("unexpected severity names")
	}
	if LintSeverity(9).String() != "UNKNOWN" {
		t.Fatal("expected UNKNOWN for out of range severity")
	}
}
