package goOnboard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal/limiters"
	"github.com/MrEthical07/goOnboard/internal/rate"
	"github.com/MrEthical07/goOnboard/internal/stores"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

const (
	purposeCodeSignup   uint8 = 1
	purposeCodeRecovery uint8 = 2
)

func purposeCode(p otc.Purpose) uint8 {
	if p == otc.PurposeRecovery {
		return purposeCodeRecovery
	}
	return purposeCodeSignup
}

// mapServiceError classifies identity service and profile store failures. The cause
// stays in the chain for logs.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, otc.ErrCodeExpired):
		return fmt.Errorf("%w: %w", ErrCodeExpired, err)
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrEmailNotConfirmed),
		errors.Is(err, otc.ErrCodeMismatch),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrCallbackRejected),
		errors.Is(err, identity.ErrCallbackMissingTokens):
		return fmt.Errorf("%w: %w", ErrAuthRejected, err)
	case errors.Is(err, otc.ErrCooldown):
		return fmt.Errorf("%w: %w", ErrCooldown, err)
	case errors.Is(err, identity.ErrRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.Is(err, identity.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, otc.ErrInvalidFormat):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		// Unavailable, malformed responses and context deadlines.
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
}

// mapStoreError classifies Redis session and code-window failures.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, stores.ErrOTCNotFound),
		errors.Is(err, stores.ErrOTCCorrupt):
		return fmt.Errorf("%w: %w", ErrNoChallenge, err)
	case errors.Is(err, stores.ErrOTCExpired):
		return fmt.Errorf("%w: %w", ErrCodeExpired, err)
	case errors.Is(err, stores.ErrOTCCooldown):
		return fmt.Errorf("%w: %w", ErrCooldown, err)
	case errors.Is(err, identity.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
}

func mapLimiterError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, rate.ErrRateLimited),
		errors.Is(err, limiters.ErrOTCRateLimited):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
}
