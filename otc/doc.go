// Package otc implements the one-time-code challenge used during sign-up and account
// recovery.
//
// A [Challenge] is a tick-driven state machine with two countdowns that share one
// [scheduler.Scheduler]: the expiry window (600 s) and the resend cooldown (60 s).
// Both are measured against the same scheduler instant on every one-second tick and
// reported in a single snapshot, so they reach zero exactly at their offsets from
// issuance and never drift relative to each other. A challenge can be anchored to a
// code sent earlier through [Config.IssuedAt].
//
// # States
//
//	Issued --expiry reaches 0-------------> Expired
//	Issued --Verify(match)----------------> Verified
//	Issued --Verify(mismatch)-------------> Issued
//	Issued --Resend after cooldown--------> Resent -> Issued (fresh windows)
//	Issued --Resend during cooldown-------> rejected, no change
//
// # Architecture boundaries
//
// The challenge validates code shape and cooldown locally. Code issuance and
// comparison belong to the identity service, reached through [Deps].
//
// # What this package must NOT do
//
//   - Generate or store codes.
//   - Reveal whether an address exists.
//   - Leave timers registered after [Challenge.Close].
package otc
