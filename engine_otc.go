package goOnboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goOnboard/internal"
	internalflows "github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/session"
)

// RequestOTC asks the identity service to send a one-time code to address and opens
// its window. A window still inside its resend cooldown is returned alongside an
// error matching [ErrCooldown].
func (e *Engine) RequestOTC(ctx context.Context, address string, purpose otc.Purpose) (OTCWindow, error) {
	const op = "otc_request"
	if e == nil {
		return OTCWindow{}, ErrEngineNotReady
	}
	if err := validPurpose(purpose); err != nil {
		return OTCWindow{}, invalidInput(op, "Unknown code purpose.", err)
	}

	address = internal.NormalizeAddress(address)
	w, err := internalflows.RunRequestOTC(ctx, address, purpose, e.flows.OTC)
	return publicWindow(address, purpose, w), wrapError(op, err)
}

// ResendOTC reissues the code of an existing window once its resend cooldown has
// elapsed. An expired window may be reissued. Without a window on record it fails
// with [ErrNoChallenge].
func (e *Engine) ResendOTC(ctx context.Context, address string, purpose otc.Purpose) (OTCWindow, error) {
	const op = "otc_resend"
	if e == nil {
		return OTCWindow{}, ErrEngineNotReady
	}
	if err := validPurpose(purpose); err != nil {
		return OTCWindow{}, invalidInput(op, "Unknown code purpose.", err)
	}

	address = internal.NormalizeAddress(address)
	w, err := internalflows.RunResendOTC(ctx, address, purpose, e.flows.OTC)
	return publicWindow(address, purpose, w), wrapError(op, err)
}

func validPurpose(p otc.Purpose) error {
	_, err := otc.ParsePurpose(string(p))
	return err
}

// VerifyOTC checks code for address. A match establishes the session it carries and
// publishes SignedIn.
//
// A code that is not six digits fails with [ErrInvalidInput] before any call. A wrong
// code and an address with no code on record both fail with [ErrAuthRejected]; a code
// past its window fails with [ErrCodeExpired].
func (c *Client) VerifyOTC(ctx context.Context, address, code string, purpose otc.Purpose) (*session.Session, error) {
	const op = "otc_verify"
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if err := validPurpose(purpose); err != nil {
		return nil, invalidInput(op, "Unknown code purpose.", err)
	}
	if !otc.ValidCode(code) {
		return nil, invalidInput(op, "Enter the 6-digit code from your email.", otc.ErrInvalidFormat)
	}

	address = internal.NormalizeAddress(address)
	sess, err := c.verify(ctx, address, code, purpose)
	if err != nil {
		return nil, wrapError(op, err)
	}

	c.mu.Lock()
	ch := c.challenge
	if ch != nil && ch.Address() == address && ch.Purpose() == purpose {
		c.challenge = nil
	} else {
		ch = nil
	}
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	return sess, nil
}

func (c *Client) verify(ctx context.Context, address, code string, purpose otc.Purpose) (*session.Session, error) {
	ctx = c.scope(ctx)
	sess, err := internalflows.RunVerifyOTC(ctx, address, code, purpose, c.engine.flows.OTC)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, sess), nil
}

// StartChallenge requests a code for address and tracks it with a live countdown on
// the engine scheduler. onChange receives a snapshot after every transition and tick.
// A previous challenge of the client is closed first.
//
// The challenge starts from the server-side window returned by [Engine.RequestOTC],
// including one still in its cooldown, and verifies and resends through it.
func (c *Client) StartChallenge(ctx context.Context, address string, purpose otc.Purpose, onChange func(otc.Snapshot)) (*otc.Challenge, error) {
	const op = "otc_challenge"
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	e := c.engine

	address = internal.NormalizeAddress(address)
	// A window still in its cooldown already holds a sent code; the countdown picks it
	// up where it stands.
	window, err := e.RequestOTC(c.scope(ctx), address, purpose)
	if err != nil && (!errors.Is(err, ErrCooldown) || errors.Is(err, ErrRateLimited)) {
		return nil, err
	}

	// Timer names are per client, so the previous challenge must release them first.
	c.mu.Lock()
	prev := c.challenge
	c.challenge = nil
	c.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	ch, err := otc.Start(e.sched, address, purpose, otc.Config{
		TTL:            e.config.OTC.TTL,
		ResendCooldown: e.config.OTC.ResendCooldown,
		Tick:           e.config.OTC.Tick,
		TimerPrefix:    c.timerPrefix(),
		IssuedAt:       window.IssuedAt,
	}, otc.Deps{
		Verify: func(ctx context.Context, address, code string, purpose otc.Purpose) error {
			_, err := c.verify(ctx, address, code, purpose)
			return challengeError(err)
		},
		Resend: func(ctx context.Context, address string, purpose otc.Purpose) error {
			_, err := internalflows.RunResendOTC(c.scope(ctx), address, purpose, e.flows.OTC)
			return challengeError(err)
		},
		OnChange: onChange,
	})
	if err != nil {
		return nil, newError(op, KindInternal, err)
	}

	c.mu.Lock()
	c.challenge = ch
	c.mu.Unlock()
	return ch, nil
}

// Challenge returns the live challenge started by [Client.StartChallenge], if any.
func (c *Client) Challenge() (*otc.Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challenge, c.challenge != nil
}

func (c *Client) timerPrefix() string {
	return "client." + clientKeyDigest(c.key) + "."
}

// challengeError adds the otc sentinels a live challenge reacts to. The engine
// classification stays in the chain.
func challengeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCodeExpired) && !errors.Is(err, otc.ErrCodeExpired):
		return fmt.Errorf("%w: %w", otc.ErrCodeExpired, err)
	case errors.Is(err, ErrCooldown) && !errors.Is(err, otc.ErrCooldown):
		return fmt.Errorf("%w: %w", otc.ErrCooldown, err)
	case errors.Is(err, ErrAuthRejected) && !errors.Is(err, otc.ErrCodeMismatch):
		return fmt.Errorf("%w: %w", otc.ErrCodeMismatch, err)
	default:
		return err
	}
}
