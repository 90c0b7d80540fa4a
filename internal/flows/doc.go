// Package flows contains pure-function orchestrators for the Engine's server-side
// operations.
//
// Each flow function (RunSignIn, RunRestore, RunRequestOTC, RunVerifyOTC,
// RunResolveProfile, RunCommitExpertise, etc.) accepts a typed dependency struct and
// returns results without side-effects beyond those dependencies. Dependencies are
// function values so tests can stub each call site independently.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, OTC window store, rate
// limiters, identity service, audit dispatcher, and metrics. They do NOT own any of
// these resources: ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goOnboard (to avoid import cycles).
//   - Perform I/O directly: all I/O is mediated through dependency functions.
package flows
