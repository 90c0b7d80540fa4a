// Package host is the backend-for-frontend that onboardctl serves.
//
// It maps browser requests onto engine clients through a client key cookie,
// exposes the engine operations as JSON endpoints, streams live code
// countdowns over a websocket, and performs the pending navigation produced by
// profile resolution. Guarded views go through the middleware package.
//
// # What this package must NOT do
//
//   - Hold session state of its own. The engine and its Redis store own it.
//   - Render content. View handlers return the admitted view as JSON.
package host
