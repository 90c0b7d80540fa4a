// Package internal contains helper utilities that are intentionally private to
// goOnboard, such as secure random generation for codes, client keys, and tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: viper-backed host configuration
//   - flows: pure-function flow orchestrators for sign-in, restore, codes and profiles
//   - host: chi backend-for-frontend that performs navigation effects
//   - limiters: code request and verify limiters
//   - logging: slog construction for the host
//   - rate: core Redis-backed fixed-window primitives
//   - security: security posture report
//   - stores: Redis OTC window store
//
// # What this package must NOT do
//
//   - Export types that appear in the public goOnboard API.
//   - Be imported by any package outside the goOnboard module.
package internal
