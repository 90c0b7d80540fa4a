// Package identity is the narrow contract between goOnboard and the remote identity
// and profile service, with two implementations: [Client], a REST client for hosted
// auth and row APIs, and [Memory], an in-process service for tests and local runs.
//
// # Architecture boundaries
//
// Implementations translate transport failures into the sentinel errors of this
// package. They do NOT hold per-caller session state: credentials are passed in by the
// caller and persisted by the Engine.
//
// # What this package must NOT do
//
//   - Import goOnboard or route (no upward imports).
//   - Decide navigation or guard admission.
//   - Reveal whether an address is registered through OTC or sign-up responses.
package identity
