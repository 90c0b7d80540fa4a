// Package profilestore implements identity.ProfileStore over SQL databases for
// deployments that own their profile rows: [Postgres] (lib/pq, schema managed by
// embedded golang-migrate migrations) and [SQLite] (modernc.org/sqlite, schema created
// on open).
//
// # Architecture boundaries
//
// Stores persist rows and apply patches in a single write. They do NOT validate
// qualification drafts or decide whether a provider passed onboarding.
package profilestore
