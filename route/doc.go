// Package route holds the pure navigation decisions of goOnboard: whether a caller may
// reach a view, and where a freshly resolved session should be sent.
//
// # Decisions
//
//   - [Admit] maps (bootstrap, session, role, required role) to Pending, Allow, or a
//     redirect.
//   - [DecideRedirect] maps a profile resolution to at most one post-auth navigation.
//
// # Architecture boundaries
//
// Both functions are deterministic and side-effect free. Performing the navigation is
// the host's job: the Engine stores the decision and the host consumes it once.
//
// # What this package must NOT do
//
//   - Perform I/O or read clocks.
//   - Import goOnboard, identity, or any transport package.
//   - Remember previous decisions.
package route
