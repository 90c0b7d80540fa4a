package goOnboard

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the Engine.
type ErrorKind uint8

const (
	// KindInternal is used for failures that fit no other kind.
	KindInternal ErrorKind = iota
	// KindInvalidInput is a local validation failure. No network call was made.
	KindInvalidInput
	// KindAuthRejected covers bad credentials and rejected or expired codes.
	KindAuthRejected
	// KindCooldown means the operation was requested too early.
	KindCooldown
	// KindNotFound means a profile row is missing.
	KindNotFound
	// KindServiceUnavailable covers network and external service failures.
	KindServiceUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAuthRejected:
		return "auth_rejected"
	case KindCooldown:
		return "cooldown"
	case KindNotFound:
		return "not_found"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

var (
	// ErrInvalidInput is an exported constant or variable used by the onboarding engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAuthRejected is an exported constant or variable used by the onboarding engine.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrCodeExpired is returned for a one-time code past its window. It also matches
	// ErrAuthRejected.
	ErrCodeExpired = &kindError{kind: KindAuthRejected, msg: "one-time code expired"}
	// ErrCooldown is an exported constant or variable used by the onboarding engine.
	ErrCooldown = errors.New("cooldown active")
	// ErrRateLimited is returned when a throttle denies the request. It also matches
	// ErrCooldown.
	ErrRateLimited = &kindError{kind: KindCooldown, msg: "too many attempts"}
	// ErrNotFound is an exported constant or variable used by the onboarding engine.
	ErrNotFound = errors.New("not found")
	// ErrNoChallenge is returned by a resend with no code on record. It also matches
	// ErrNotFound.
	ErrNoChallenge = &kindError{kind: KindNotFound, msg: "no one-time code on record"}
	// ErrServiceUnavailable is an exported constant or variable used by the onboarding engine.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the onboarding engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrNoSession is returned by operations that need a signed-in caller.
	ErrNoSession = errors.New("no active session")
	// ErrWrongRole is returned when a session's role does not allow the operation.
	ErrWrongRole = errors.New("operation not allowed for this role")
	// ErrClientClosed is returned by operations on a released client.
	ErrClientClosed = errors.New("client closed")
)

// kindError is a sentinel that also matches the base sentinel of its kind.
type kindError struct {
	kind ErrorKind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool {
	return target == kindSentinel(e.kind)
}

func kindSentinel(k ErrorKind) error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindAuthRejected:
		return ErrAuthRejected
	case KindCooldown:
		return ErrCooldown
	case KindNotFound:
		return ErrNotFound
	case KindServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return nil
	}
}

// Error is the typed failure returned by Engine and Client operations.
//
// Message is safe to show to the caller. Err carries the underlying cause for logs and
// errors.Is; it never changes the Message.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrAuthRejected)
// holds for every AuthRejected failure regardless of its cause.
func (e *Error) Is(target error) bool {
	s := kindSentinel(e.Kind)
	return s != nil && target == s
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	for _, k := range []ErrorKind{KindInvalidInput, KindAuthRejected, KindCooldown, KindNotFound, KindServiceUnavailable} {
		if errors.Is(err, kindSentinel(k)) {
			return k
		}
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return defaultMessage(KindOf(err), err)
}

func defaultMessage(kind ErrorKind, cause error) string {
	switch {
	case errors.Is(cause, ErrCodeExpired):
		return "This code has expired. Request a new one."
	case errors.Is(cause, ErrRateLimited):
		return "Too many attempts. Please wait before trying again."
	case errors.Is(cause, ErrNoChallenge):
		return "No code has been requested for this address."
	case errors.Is(cause, ErrNoSession):
		return "You need to sign in first."
	case errors.Is(cause, ErrWrongRole):
		return "This action is not available for your account type."
	}
	switch kind {
	case KindInvalidInput:
		return "Please check the highlighted fields."
	case KindAuthRejected:
		return "The details you entered are not correct."
	case KindCooldown:
		return "Please wait before requesting another code."
	case KindNotFound:
		return "Nothing was found."
	case KindServiceUnavailable:
		return "The service is unavailable right now. Please try again shortly."
	default:
		return "Something went wrong."
	}
}

// newError wraps cause as an *Error of kind. A cause that is already an *Error is
// returned with op replaced only when it had none.
func newError(op string, kind ErrorKind, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		if existing.Op == "" {
			existing.Op = op
		}
		return existing
	}
	return &Error{Kind: kind, Op: op, Message: defaultMessage(kind, cause), Err: cause}
}

// wrapError classifies cause by its sentinel chain and wraps it.
func wrapError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return newError(op, KindOf(cause), cause)
}

// invalidInput builds an InvalidInput error with a field-specific message.
func invalidInput(op, message string, cause error) error {
	if cause == nil {
		cause = ErrInvalidInput
	}
	return &Error{Kind: KindInvalidInput, Op: op, Message: message, Err: cause}
}
