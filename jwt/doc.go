// Package jwt signs and verifies identity-service access tokens. The claim layout
// follows the hosted identity service: the subject is the identity id and sign-up
// metadata travels in user_metadata.
//
// # Architecture boundaries
//
// This package knows token formats and keys only. It does NOT decide whether a session
// may reach a view or whether a profile exists.
package jwt
