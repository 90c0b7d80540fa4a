package goOnboard

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/internal"
	internalaudit "github.com/MrEthical07/goOnboard/internal/audit"
	internalflows "github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/internal/limiters"
	"github.com/MrEthical07/goOnboard/internal/rate"
	"github.com/MrEthical07/goOnboard/internal/stores"
	"github.com/MrEthical07/goOnboard/jwt"
	"github.com/MrEthical07/goOnboard/onboarding"
	"github.com/MrEthical07/goOnboard/route"
	"github.com/MrEthical07/goOnboard/scheduler"
	"github.com/MrEthical07/goOnboard/session"
)

// Engine defines a public type used by goOnboard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	sessionStore *session.Store
	otcStore     *stores.OTCStore
	rateLimiter  *rate.Limiter
	otcLimiter   *limiters.OTCLimiter
	auth         identity.AuthService
	profiles     identity.ProfileStore
	jwtManager   *jwt.Manager
	bank         onboarding.QuestionBank
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	flows        internalflows.Deps

	sched         *scheduler.Scheduler
	ownsScheduler bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// Close releases every client, stops the engine-owned scheduler and drains the audit
// dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	clients := make([]*Client, 0, len(e.clients))
	for _, c := range e.clients {
		clients = append(clients, c)
	}
	e.clients = map[string]*Client{}
	e.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	e.cancel()
	if e.ownsScheduler {
		e.sched.Close()
	}
	e.wg.Wait()

	if e.audit != nil {
		e.audit.Close()
	}
}

// Client returns the live client for key, creating it on first use. An empty key
// allocates a fresh one, readable through [Client.Key]. A new client has not
// bootstrapped; call [Client.Restore] to load its stored session.
func (e *Engine) Client(key string) (*Client, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if key == "" {
		k, err := internal.NewClientKey()
		if err != nil {
			return nil, newError("client", KindInternal, err)
		}
		key = k
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineNotReady
	}
	if c, ok := e.clients[key]; ok {
		return c, nil
	}
	c := newClient(e, key)
	e.clients[key] = c
	return c, nil
}

// Release closes the client for key and forgets it. The stored session is kept, so a
// later Client call with the same key can restore it.
func (e *Engine) Release(key string) {
	if e == nil {
		return
	}

	e.mu.Lock()
	c, ok := e.clients[key]
	delete(e.clients, key)
	e.mu.Unlock()

	if ok {
		c.close()
	}
}

func (e *Engine) liveClient(key string) (*Client, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.clients[key]
	return c, ok
}

// InvalidateIdentity revokes every stored session of identityID. Live clients holding
// one of them observe an Invalidated event.
func (e *Engine) InvalidateIdentity(ctx context.Context, identityID string) error {
	const op = "invalidate_identity"
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if identityID == "" {
		return invalidInput(op, "An identity is required.", nil)
	}

	keys, err := e.sessionStore.DeleteAllForIdentity(ctx, identityID)
	if err != nil {
		mapped := mapStoreError(err)
		e.emitAudit(ctx, auditEventSessionInvalidated, false, identityID, mapped, nil)
		return wrapError(op, mapped)
	}

	for _, key := range keys {
		if c, ok := e.liveClient(key); ok {
			c.invalidate()
		}
	}
	e.emitAudit(ctx, auditEventSessionInvalidated, true, identityID, nil, func() map[string]string {
		return map[string]string{
			"sessions": strconv.Itoa(len(keys)),
		}
	})
	return nil
}

// Paths returns the configured navigation targets.
func (e *Engine) Paths() route.Paths {
	if e == nil {
		return route.DefaultPaths()
	}
	return e.config.Routes
}

// Scheduler returns the scheduler driving code countdowns and test deadlines.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	if e == nil {
		return nil
	}
	return e.sched
}

// Ping checks the Redis backend and reports its round trip.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	d, err := e.sessionStore.Ping(ctx)
	if err != nil {
		return 0, wrapError("ping", mapStoreError(err))
	}
	return d, nil
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditStats reports what the audit dispatcher delivered, dropped and lost to a
// failing sink. It is zero when audit is disabled.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Gauges is a point-in-time count of the engine's live state.
type Gauges struct {
	// Clients is the number of live clients.
	Clients int
	// Authenticated counts clients holding a session.
	Authenticated int
	// Resolving counts clients with a profile resolution in flight.
	Resolving int
	// PendingNavigations counts resolutions whose redirect has not been taken yet.
	PendingNavigations int
	// Challenges and Wizards count live code challenges and onboarding wizards.
	Challenges int
	Wizards    int
	// Timers is the number of timers registered on the engine scheduler.
	Timers int
}

// Gauges counts live clients and what they hold. It takes every client lock in turn,
// so call it at scrape frequency rather than per request.
func (e *Engine) Gauges() Gauges {
	if e == nil {
		return Gauges{}
	}

	e.mu.Lock()
	clients := make([]*Client, 0, len(e.clients))
	for _, c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	g := Gauges{Clients: len(clients), Timers: e.sched.Len()}
	for _, c := range clients {
		if _, ok := c.provider.Current(); ok {
			g.Authenticated++
		}
		c.mu.Lock()
		if c.inflight > 0 {
			g.Resolving++
		}
		if c.navigation != "" {
			g.PendingNavigations++
		}
		if c.challenge != nil {
			g.Challenges++
		}
		if c.wizard != nil {
			g.Wizards++
		}
		c.mu.Unlock()
	}
	return g
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.sched == nil {
		return time.Now()
	}
	return e.sched.Now()
}

// callContext bounds one identity service call.
func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Identity.RequestTimeout)
}

// observeIdentity records the latency of an identity service call. Latency is wall
// clock time, independent of the scheduler.
func (e *Engine) observeIdentity(start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricIdentityLatency, time.Since(start))
	}
}

func (e *Engine) logFetchError(ctx context.Context, id string, role session.Role, err error) {
	// A superseded resolution cancels its own fetch.
	if ctx.Err() != nil {
		return
	}
	e.logger.WarnContext(ctx, "profile fetch failed",
		slog.String("identity_id", id),
		slog.String("role", string(role)),
		slog.Any("error", err),
	)
}
