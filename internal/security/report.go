package security

import "time"

// Report summarizes the protective settings of a running engine.
type Report struct {
	LocalVerification    bool
	SigningAlgorithm     string
	RequestTimeout       time.Duration
	SessionTTL           time.Duration
	OTCTTL               time.Duration
	OTCResendCooldown    time.Duration
	OTCRetention         time.Duration
	SignInThrottleActive bool
	OTCThrottleActive    bool
	IPThrottleActive     bool
	AuditActive          bool
	AuditLossy           bool
	MetricsActive        bool
}

type ReportInput struct {
	VerifyKeyLength       int
	SigningAlgorithm      string
	RequestTimeout        time.Duration
	SessionTTL            time.Duration
	OTCTTL                time.Duration
	OTCResendCooldown     time.Duration
	OTCRetention          time.Duration
	SignInThrottle        bool
	SignInIPThrottle      bool
	SignInMaxAttempts     int
	SignInCooldown        time.Duration
	OTCIdentifierThrottle bool
	OTCIPThrottle         bool
	OTCMaxRequests        int
	OTCMaxVerifyAttempts  int
	AuditEnabled          bool
	AuditDropIfFull       bool
	MetricsEnabled        bool
}

func BuildReport(input ReportInput) Report {
	signIn := input.SignInThrottle &&
		input.SignInMaxAttempts > 0 &&
		input.SignInCooldown > 0

	otc := (input.OTCIdentifierThrottle || input.OTCIPThrottle) &&
		input.OTCMaxRequests > 0 &&
		input.OTCMaxVerifyAttempts > 0

	ip := (signIn && input.SignInIPThrottle) || (otc && input.OTCIPThrottle)

	algorithm := ""
	if input.VerifyKeyLength > 0 {
		algorithm = input.SigningAlgorithm
	}

	return Report{
		LocalVerification:    input.VerifyKeyLength > 0,
		SigningAlgorithm:     algorithm,
		RequestTimeout:       input.RequestTimeout,
		SessionTTL:           input.SessionTTL,
		OTCTTL:               input.OTCTTL,
		OTCResendCooldown:    input.OTCResendCooldown,
		OTCRetention:         input.OTCRetention,
		SignInThrottleActive: signIn,
		OTCThrottleActive:    otc,
		IPThrottleActive:     ip,
		AuditActive:          input.AuditEnabled,
		AuditLossy:           input.AuditEnabled && input.AuditDropIfFull,
		MetricsActive:        input.MetricsEnabled,
	}
}
