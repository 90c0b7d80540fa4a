// Package security derives the security posture report of an onboarding engine from
// its configuration.
//
// # What this package must NOT do
//
//   - Perform I/O or read live engine state. Reports are pure functions of their input.
package security
