// Package middleware exposes HTTP adapters for the route guard of goOnboard clients.
//
// # Guards
//
//   - [Guard]: admits a request to one [route.View].
//   - [RequireSeeker], [RequireProvider]: role-bound views.
//   - [RequireSession]: any signed-in caller.
//
// Each guard looks up the request's client, asks [goOnboard.Client.Admit] for a
// decision and translates it into an HTTP response.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Client calls. Admission rules live in
// the route package.
//
// # What this package must NOT do
//
//   - Restore or resolve sessions (the host does that before the guard runs).
//   - Access Redis or the identity service.
//   - Decide beyond the Pending, Allow and Redirect outcomes of Admit.
package middleware
