// Package stores provides Redis-backed, short-lived records for the one-time code
// flow.
//
// # Design
//
// [OTCStore] persists a versioned, binary-encoded window per address and purpose.
// Issuance runs as a Lua script so the cooldown check and the replacement are one
// atomic step across every engine instance sharing the Redis. Keys outlive the code's
// expiry by a retention period so that a late verify is reported as expired rather than
// unknown.
//
// # Architecture boundaries
//
// This package owns persistence of code windows only. It does NOT generate or verify
// codes (the identity service does), enforce request rates, or decide audit outcomes;
// those belong to the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import goOnboard or any sibling internal package.
//   - Store plaintext codes or plaintext addresses.
package stores
