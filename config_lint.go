package goOnboard

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity uint8

const (
	// LintInfo notes a deliberate trade-off worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn flags a setting that weakens a guarantee.
	LintWarn
	// LintHigh flags a contradictory or dangerous combination.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding of [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of findings of [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil when there is
// none.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass [Config.Validate] but weaken the onboarding
// guarantees. It never mutates the config.
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	// Identity
	if c.Identity.RequestTimeout > 30*time.Second {
		add("request_timeout_long", LintWarn, "identity calls may block for %s before failing", c.Identity.RequestTimeout)
	}
	if c.Identity.RequestTimeout > 0 && c.Identity.RequestTimeout < time.Second {
		add("request_timeout_short", LintWarn, "identity calls time out after %s and may fail under normal latency", c.Identity.RequestTimeout)
	}

	// Session
	if c.Session.TTL > 90*24*time.Hour {
		add("session_ttl_long", LintInfo, "stored credential pairs live for %s without activity", c.Session.TTL)
	}

	// OTC
	if c.OTC.TTL != 600*time.Second || c.OTC.ResendCooldown != 60*time.Second {
		add("otc_windows_nonstandard", LintInfo, "code windows are %s/%s instead of 10m0s/1m0s", c.OTC.TTL, c.OTC.ResendCooldown)
	}
	if c.OTC.Retention == 0 {
		add("otc_retention_zero", LintWarn, "expired code windows are dropped at once, so a late verify reports a wrong code instead of an expired one")
	}
	if !c.OTC.EnableIdentifierThrottle && !c.OTC.EnableIPThrottle && !c.SignIn.EnableThrottle {
		add("rate_limits_disabled", LintHigh, "no sign-in or code throttle is enabled")
	} else if !c.SignIn.EnableThrottle {
		add("signin_throttle_disabled", LintWarn, "repeated wrong passwords are not throttled")
	}
	if !c.OTC.EnableIPThrottle && !c.SignIn.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "throttles are keyed by address only")
	}

	// Onboarding
	if c.Onboarding.QuestionsPerTest > 0 && c.Onboarding.TestDuration < time.Duration(c.Onboarding.QuestionsPerTest)*30*time.Second {
		add("test_duration_short", LintWarn, "%s leaves less than 30s per question", c.Onboarding.TestDuration)
	}

	// Routes
	for _, p := range []struct{ name, path string }{
		{"seeker home", c.Routes.SeekerHome},
		{"provider home", c.Routes.ProviderHome},
		{"onboarding", c.Routes.Onboarding},
	} {
		if p.path != "" && c.Routes.IsAuthEntry(p.path) {
			add("route_home_is_auth_entry", LintHigh, "%s view %s is also an auth-entry view and redirects in a loop", p.name, p.path)
		}
	}

	// JWT
	if len(c.JWT.VerifyKey) == 0 {
		add("local_verification_disabled", LintInfo, "every restore calls the identity service")
	} else {
		if c.JWT.SigningMethod == "hs256" {
			add("signing_hs256", LintInfo, "the verify key is a shared secret; ed25519 keeps signing keys off this host")
		}
		if c.JWT.Leeway > time.Minute {
			add("leeway_large", LintWarn, "clock leeway of %s extends token lifetimes", c.JWT.Leeway)
		}
	}

	// Audit
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "no audit events are emitted")
	} else if c.Audit.DropIfFull {
		add("audit_lossy", LintInfo, "audit events are dropped when the buffer is full")
	}

	return r
}
