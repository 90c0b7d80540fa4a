// Package session owns the live identity session of a goOnboard client: the session
// model, the ordered change-event [Provider], and Redis persistence of the credential
// pair.
//
// # Event delivery
//
// [Provider] delivers every change event to every listener exactly once, in publish
// order. A publish from inside a listener is queued behind the event being delivered.
// Deferred listeners run after all synchronous listeners have observed the event.
//
// # Binary encoding
//
// Sessions are stored in Redis in a compact binary format (schema versions v1 and v2) with
// forward migration on read. The encoder is append-only: new versions add fields but
// never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations), the [Provider] and the [Session]
// model. It does NOT talk to the identity service, fetch profiles, or decide
// navigation; those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goOnboard, identity, or route (no upward imports).
//   - Construct sessions on behalf of callers; sessions come from the identity service.
//   - Log or expose credential values.
package session
