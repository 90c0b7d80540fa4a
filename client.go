package goOnboard

import (
	"context"
	"sync"

	"github.com/MrEthical07/goOnboard/onboarding"
	"github.com/MrEthical07/goOnboard/otc"
	"github.com/MrEthical07/goOnboard/route"
	"github.com/MrEthical07/goOnboard/session"
)

// Client is one caller of the engine, for example one browser holding a client key
// cookie. It owns the caller's session provider, the profile resolution that follows
// each established session, and at most one live code challenge and onboarding wizard.
//
// Client methods are safe for concurrent use.
type Client struct {
	engine   *Engine
	key      string
	provider *session.Provider
	unsub    func()

	mu sync.Mutex
	// gen is bumped by every session event that starts or ends a resolution.
	gen        uint64
	cancel     context.CancelFunc
	inflight   int
	idle       chan struct{}
	resolution Resolution
	resolved   bool
	navigation string
	location   string
	override   session.Role
	challenge  *otc.Challenge
	wizard     *onboarding.Wizard
	lastScore  int
	closed     bool
}

func newClient(e *Engine, key string) *Client {
	idle := make(chan struct{})
	close(idle)

	c := &Client{
		engine:   e,
		key:      key,
		provider: session.NewProvider(),
		idle:     idle,
	}
	c.unsub = c.provider.Defer(c.onSessionEvent)
	return c
}

// Key returns the client key the caller presents on every request.
func (c *Client) Key() string {
	return c.key
}

// Subscribe registers fn for every later session event of this client.
func (c *Client) Subscribe(fn session.Listener) func() {
	return c.provider.Subscribe(fn)
}

// Session returns a copy of the current session.
func (c *Client) Session() (*session.Session, bool) {
	return c.provider.Current()
}

// Bootstrapped reports whether Restore has resolved, with or without a session, or a
// sign-in on this client has established one.
func (c *Client) Bootstrapped() bool {
	return c.provider.Bootstrapped()
}

// Resolution returns the latest applied resolution. ok is false while no session is
// established or its resolution is still in flight.
func (c *Client) Resolution() (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolution, c.resolved
}

// SetLocation records the view the caller is on. Redirect decisions made by later
// resolutions are relative to it.
func (c *Client) SetLocation(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = path
}

// TakeNavigation returns the pending navigation and clears it, so each decision is
// performed at most once.
func (c *Client) TakeNavigation() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.navigation
	c.navigation = ""
	return target, target != ""
}

// WaitResolved blocks until no resolution is in flight or ctx is done.
func (c *Client) WaitResolved(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Admit decides whether the caller may reach view.
func (c *Client) Admit(view route.View) route.Decision {
	sess, ok := c.provider.Current()
	state := route.State{
		Bootstrapped: c.provider.Bootstrapped(),
		HasSession:   ok,
	}
	if ok {
		state.Role = c.effectiveRole(sess)
	}
	return route.Admit(state, view, c.engine.config.Routes)
}

// effectiveRole prefers the role of the current resolution, which honors the
// navigation override, over the identity metadata.
func (c *Client) effectiveRole(sess *session.Session) session.Role {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved && c.resolution.Role.Valid() {
		return c.resolution.Role
	}
	if c.override.Valid() {
		return c.override
	}
	return sess.Role()
}

// scope attaches the client key and current role to ctx for audit records.
func (c *Client) scope(ctx context.Context) context.Context {
	ctx = withClientKey(ctx, c.key)
	if sess, ok := c.provider.Current(); ok {
		ctx = withAuditRole(ctx, c.effectiveRole(sess))
	}
	return ctx
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// setOverride replaces the navigation role override. An invalid role clears it.
func (c *Client) setOverride(role session.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !role.Valid() {
		role = ""
	}
	c.override = role
}

func (c *Client) onSessionEvent(ev session.Event) {
	switch {
	case ev.Establishes():
		c.resolve(ev.Session.Identity, true)
	case ev.Kind == session.EventTokenRefreshed:
		// Same identity, same resolution.
	default:
		c.clearResolution()
	}
}

// resolve starts a resolution for id under a new generation, superseding any resolution
// in flight. When async is false it runs on the calling goroutine.
func (c *Client) resolve(id session.Identity, async bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.engine.ctx)
	c.cancel = cancel
	c.resolved = false
	c.navigation = ""
	override := c.override
	if c.inflight == 0 {
		c.idle = make(chan struct{})
	}
	c.inflight++
	c.mu.Unlock()

	run := func() {
		defer cancel()
		ctx := withAuditRole(withClientKey(ctx, c.key), id.Metadata.Role)
		res := c.engine.resolveProfile(ctx, id, override)
		c.apply(gen, res)
	}
	if async {
		go run()
		return
	}
	run()
}

func (c *Client) apply(gen uint64, res Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
	}

	if c.closed || gen != c.gen {
		c.engine.metricInc(MetricResolutionDiscarded)
		return
	}
	res.Generation = gen
	c.resolution = res
	c.resolved = true
	c.cancel = nil

	if target, ok := route.DecideRedirect(res.routeResolved(), c.location, c.engine.config.Routes); ok {
		c.navigation = target
		c.engine.metricInc(MetricNavigationIssued)
	}
}

func (c *Client) clearResolution() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.resolution = Resolution{}
	c.resolved = false
	c.navigation = ""
	c.override = ""
}

// invalidate drops the session after an external revocation.
func (c *Client) invalidate() {
	if _, ok := c.provider.Current(); !ok {
		return
	}
	c.closeWizard()
	c.provider.Publish(session.Event{Kind: session.EventInvalidated})
}

func (c *Client) closeWizard() {
	c.mu.Lock()
	w := c.wizard
	c.wizard = nil
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	ch, w := c.challenge, c.wizard
	c.challenge, c.wizard = nil, nil
	c.mu.Unlock()

	c.unsub()
	if ch != nil {
		ch.Close()
	}
	if w != nil {
		w.Close()
	}
}
