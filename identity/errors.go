package identity

import (
	"errors"

	"github.com/MrEthical07/goOnboard/otc"
)

var (
	// ErrInvalidCredentials is returned for an unknown address or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed is returned when signing in before the sign-up code was verified.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidCode is returned when a one-time code does not match.
	ErrInvalidCode = otc.ErrCodeMismatch
	// ErrCodeExpired is returned when a one-time code is past its window.
	ErrCodeExpired = otc.ErrCodeExpired
	// ErrCooldownActive is returned when a code is requested again too early.
	ErrCooldownActive = otc.ErrCooldown
	// ErrRateLimited is returned when the service throttles the caller.
	ErrRateLimited = errors.New("identity service rate limited")
	// ErrInvalidToken is returned when access or refresh tokens are rejected.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound is returned when no profile row exists for the identity and role.
	ErrNotFound = errors.New("profile not found")
	// ErrUnavailable is returned for network and service failures.
	ErrUnavailable = errors.New("identity service unavailable")
	// ErrMalformedResponse is returned when the service answers with an unexpected body.
	ErrMalformedResponse = errors.New("identity service returned a malformed response")
	// ErrCallbackRejected is returned when a callback URL carries an error instead of tokens.
	ErrCallbackRejected = errors.New("identity callback reported an error")
	// ErrCallbackMissingTokens is returned when a callback URL carries no access token.
	ErrCallbackMissingTokens = errors.New("identity callback missing tokens")
)
