// Package goOnboard provides the identity and onboarding engine of a two-sided
// marketplace: session lifecycle against a hosted identity service, role-aware profile
// resolution and navigation, one-time code challenges, and the provider onboarding
// wizard.
//
// An [Engine] is built once through [Builder.Build] and is safe to call from multiple
// goroutines. Each caller, for example one browser holding a client key cookie, is a
// [Client] obtained from [Engine.Client]. A Client owns one session provider; every
// established session is resolved to a role and profile in the background, and the
// resulting navigation is consumed once through [Client.TakeNavigation].
//
// # Architecture boundaries
//
// goOnboard is the public surface. It exposes [Engine], [Builder], [Config], [Client]
// and value types ([Resolution], [OTCWindow], MetricsSnapshot). The pure state machines
// live in their own packages: session (provider and store), route (guard and redirect
// rules), otc (challenge countdowns), onboarding (wizard and scoring) and scheduler
// (timers). Flow orchestration, code windows, throttles and audit dispatch live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Hold credentials anywhere but the session store and the live session provider.
//   - Import any sub-package that re-imports goOnboard (no import cycles).
//
// # Timing contract
//
// Every identity service call is bounded by Config.Identity.RequestTimeout. Countdowns
// and test deadlines run on one scheduler, so a manual scheduler makes them
// deterministic in tests.
package goOnboard
