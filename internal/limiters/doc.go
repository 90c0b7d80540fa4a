// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [OTCLimiter]: per-address + per-IP budgets for code issuance and verification.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goOnboard or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting: flow functions decide consequences.
package limiters
