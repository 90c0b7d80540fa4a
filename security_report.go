package goOnboard

import (
	"github.com/MrEthical07/goOnboard/internal/security"
)

// SecurityReport summarizes the protective settings the engine runs with.
type SecurityReport = security.Report

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return e.config.securityReport()
}

func (c Config) securityReport() SecurityReport {
	return security.BuildReport(security.ReportInput{
		VerifyKeyLength:       len(c.JWT.VerifyKey),
		SigningAlgorithm:      c.JWT.SigningMethod,
		RequestTimeout:        c.Identity.RequestTimeout,
		SessionTTL:            c.Session.TTL,
		OTCTTL:                c.OTC.TTL,
		OTCResendCooldown:     c.OTC.ResendCooldown,
		OTCRetention:          c.OTC.Retention,
		SignInThrottle:        c.SignIn.EnableThrottle,
		SignInIPThrottle:      c.SignIn.EnableIPThrottle,
		SignInMaxAttempts:     c.SignIn.MaxAttempts,
		SignInCooldown:        c.SignIn.Cooldown,
		OTCIdentifierThrottle: c.OTC.EnableIdentifierThrottle,
		OTCIPThrottle:         c.OTC.EnableIPThrottle,
		OTCMaxRequests:        c.OTC.MaxRequests,
		OTCMaxVerifyAttempts:  c.OTC.MaxVerifyAttempts,
		AuditEnabled:          c.Audit.Enabled,
		AuditDropIfFull:       c.Audit.DropIfFull,
		MetricsEnabled:        c.Metrics.Enabled,
	})
}

// ReportConfig builds the security report of cfg without starting an engine.
func ReportConfig(cfg Config) SecurityReport {
	return cfg.securityReport()
}
