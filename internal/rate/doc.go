// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for sign-in and one-time code workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - obsi:a:  failed sign-in per hashed address
//   - obsi:ip: failed sign-in per IP
//
// # What this package must NOT do
//
//   - Implement code-flow policies (those live in internal/limiters).
//   - Be imported outside the goOnboard module.
package rate
