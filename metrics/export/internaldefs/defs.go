package internaldefs

import (
	"strings"

	goOnboard "github.com/MrEthical07/goOnboard"
)

// Source is what the exporters read on every collection. [goOnboard.Engine]
// implements it.
type Source interface {
	MetricsSnapshot() goOnboard.MetricsSnapshot
	AuditStats() goOnboard.AuditStats
	Gauges() goOnboard.Gauges
}

// CounterDef defines a public type used by goOnboard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goOnboard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goOnboard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goOnboard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goOnboard.MetricSignInSuccess, Name: "goonboard_signin_success_total", Help: "Successful sign-ins."},
	{ID: goOnboard.MetricSignInFailure, Name: "goonboard_signin_failure_total", Help: "Failed sign-ins."},
	{ID: goOnboard.MetricSignInRateLimited, Name: "goonboard_signin_rate_limited_total", Help: "Sign-ins denied by the throttle."},
	{ID: goOnboard.MetricSignUp, Name: "goonboard_signup_total", Help: "Accepted sign-ups awaiting code verification."},
	{ID: goOnboard.MetricSignOut, Name: "goonboard_signout_total", Help: "Sign-outs."},
	{ID: goOnboard.MetricOAuthCallback, Name: "goonboard_oauth_callback_total", Help: "Accepted OAuth or email-link callbacks."},
	{ID: goOnboard.MetricRestoreSuccess, Name: "goonboard_restore_success_total", Help: "Restores that produced a session."},
	{ID: goOnboard.MetricRestoreEmpty, Name: "goonboard_restore_empty_total", Help: "Restores that found no stored session."},
	{ID: goOnboard.MetricRestoreFailure, Name: "goonboard_restore_failure_total", Help: "Restores that failed."},
	{ID: goOnboard.MetricTokenRefreshed, Name: "goonboard_token_refreshed_total", Help: "Credential pairs refreshed through the identity service."},
	{ID: goOnboard.MetricOTCRequest, Name: "goonboard_otc_request_total", Help: "Issued one-time codes."},
	{ID: goOnboard.MetricOTCResend, Name: "goonboard_otc_resend_total", Help: "Resent one-time codes."},
	{ID: goOnboard.MetricOTCCooldown, Name: "goonboard_otc_cooldown_total", Help: "Code requests rejected by the resend cooldown."},
	{ID: goOnboard.MetricOTCVerify, Name: "goonboard_otc_verify_success_total", Help: "Verified one-time codes."},
	{ID: goOnboard.MetricOTCVerifyFailure, Name: "goonboard_otc_verify_failure_total", Help: "Rejected one-time code verifications."},
	{ID: goOnboard.MetricOTCExpired, Name: "goonboard_otc_expired_total", Help: "Verifications of expired codes."},
	{ID: goOnboard.MetricOTCRateLimited, Name: "goonboard_otc_rate_limited_total", Help: "Code requests or verifications denied by the throttle."},
	{ID: goOnboard.MetricProfileResolved, Name: "goonboard_profile_resolved_total", Help: "Resolutions that found a profile."},
	{ID: goOnboard.MetricProfileMissing, Name: "goonboard_profile_missing_total", Help: "Resolutions without a profile row."},
	{ID: goOnboard.MetricProfileFetchFailure, Name: "goonboard_profile_fetch_failure_total", Help: "Profile fetches that failed."},
	{ID: goOnboard.MetricResolutionDiscarded, Name: "goonboard_resolution_discarded_total", Help: "Resolutions discarded because a newer session event superseded them."},
	{ID: goOnboard.MetricNavigationIssued, Name: "goonboard_navigation_issued_total", Help: "Pending navigations produced by resolutions."},
	{ID: goOnboard.MetricQualificationSaved, Name: "goonboard_qualification_saved_total", Help: "Accepted qualification drafts."},
	{ID: goOnboard.MetricTestPassed, Name: "goonboard_test_passed_total", Help: "Subject tests scored at or above the pass threshold."},
	{ID: goOnboard.MetricTestFailed, Name: "goonboard_test_failed_total", Help: "Subject tests scored below the pass threshold."},
	{ID: goOnboard.MetricProviderActivated, Name: "goonboard_provider_activated_total", Help: "Providers activated with a new subject."},
	{ID: goOnboard.MetricProfileWriteFailure, Name: "goonboard_profile_write_failure_total", Help: "Profile writes that failed."},
	{ID: goOnboard.MetricRateLimitHit, Name: "goonboard_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goOnboard.MetricIdentityLatency, Name: "goonboard_identity_latency_seconds", Help: "Identity service call latency."},
}

// GaugeDef names one field of [goOnboard.Gauges].
type GaugeDef struct {
	Name  string
	Help  string
	Value func(goOnboard.Gauges) int
}

// GaugeDefs lists every exported engine gauge.
var GaugeDefs = []GaugeDef{
	{Name: "goonboard_clients", Help: "Live clients.", Value: func(g goOnboard.Gauges) int { return g.Clients }},
	{Name: "goonboard_clients_authenticated", Help: "Live clients holding a session.", Value: func(g goOnboard.Gauges) int { return g.Authenticated }},
	{Name: "goonboard_resolutions_in_flight", Help: "Clients with a profile resolution in flight.", Value: func(g goOnboard.Gauges) int { return g.Resolving }},
	{Name: "goonboard_navigations_pending", Help: "Resolved redirects not yet taken.", Value: func(g goOnboard.Gauges) int { return g.PendingNavigations }},
	{Name: "goonboard_challenges_live", Help: "Code challenges held by clients.", Value: func(g goOnboard.Gauges) int { return g.Challenges }},
	{Name: "goonboard_wizards_live", Help: "Onboarding wizards held by clients.", Value: func(g goOnboard.Gauges) int { return g.Wizards }},
	{Name: "goonboard_scheduler_timers", Help: "Timers registered on the engine scheduler.", Value: func(g goOnboard.Gauges) int { return g.Timers }},
}

// AuditDef names one field of [goOnboard.AuditStats].
type AuditDef struct {
	Name  string
	Help  string
	Value func(goOnboard.AuditStats) uint64
}

// AuditDefs lists the audit dispatcher counters.
var AuditDefs = []AuditDef{
	{Name: "goonboard_audit_delivered_total", Help: "Audit events handed to the sink.", Value: func(s goOnboard.AuditStats) uint64 { return s.Delivered }},
	{Name: "goonboard_audit_dropped_total", Help: "Dropped audit events due to dispatcher backpressure.", Value: func(s goOnboard.AuditStats) uint64 { return s.Dropped }},
	{Name: "goonboard_audit_failed_total", Help: "Audit events lost to a failing sink.", Value: func(s goOnboard.AuditStats) uint64 { return s.Failed }},
}

// OTelName turns an exposition name into the dotted form OpenTelemetry uses:
// goonboard_otc_request_total becomes goonboard.otc.request.
func OTelName(name string) string {
	name = strings.TrimSuffix(name, "_total")
	name = strings.TrimSuffix(name, "_seconds")
	return strings.ReplaceAll(name, "_", ".")
}

// HistogramBounds are the bucket labels, ending with +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The +Inf bucket
// is implied by the sample count.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
