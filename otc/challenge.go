package otc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goOnboard/scheduler"
)

const (
	// CodeLength is the number of digits in a one-time code.
	CodeLength = 6
	// DefaultTTL is the lifetime of an issued code.
	DefaultTTL = 600 * time.Second
	// DefaultResendCooldown is the minimum gap between issuance and the next resend.
	DefaultResendCooldown = 60 * time.Second
	// DefaultTick is the countdown resolution.
	DefaultTick = time.Second

	timerExpiry = "otc.expiry"
	timerResend = "otc.resend"
)

var (
	// ErrInvalidFormat is returned for codes that are not exactly six ASCII digits.
	ErrInvalidFormat = errors.New("otc code must be 6 digits")
	// ErrCodeMismatch is returned when the identity service rejects the code.
	ErrCodeMismatch = errors.New("otc code mismatch")
	// ErrCodeExpired is returned when the code window has closed.
	ErrCodeExpired = errors.New("otc code expired")
	// ErrCooldown is returned when a resend is requested before the cooldown elapsed.
	ErrCooldown = errors.New("otc resend cooldown active")
	// ErrNotActive is returned for operations on a verified or closed challenge.
	ErrNotActive = errors.New("otc challenge not active")
)

// State is the lifecycle state of a challenge.
type State uint8

const (
	StateIssued State = iota
	StateVerified
	StateExpired
	StateResent
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateVerified:
		return "verified"
	case StateExpired:
		return "expired"
	case StateResent:
		return "resent"
	default:
		return "unknown"
	}
}

// Purpose distinguishes sign-up confirmation codes from account recovery codes.
type Purpose string

const (
	PurposeSignup   Purpose = "signup"
	PurposeRecovery Purpose = "recovery"
)

// ParsePurpose validates a purpose string.
func ParsePurpose(v string) (Purpose, error) {
	switch Purpose(v) {
	case PurposeSignup, PurposeRecovery:
		return Purpose(v), nil
	default:
		return "", fmt.Errorf("unknown otc purpose %q", v)
	}
}

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Config sets the challenge windows. Zero values fall back to the defaults.
type Config struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	Tick           time.Duration
	// TimerPrefix namespaces timer names when several challenges share one scheduler.
	TimerPrefix string
	// IssuedAt anchors the first windows to a code that was already sent. Zero means
	// the scheduler's current time.
	IssuedAt time.Time
}

func (c Config) normalized() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = DefaultResendCooldown
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	return c
}

// Deps reaches the identity service. Verify returns nil on a match, an error wrapping
// ErrCodeMismatch or ErrCodeExpired on rejection, and any other error for transport
// failures.
type Deps struct {
	Verify   func(ctx context.Context, address, code string, purpose Purpose) error
	Resend   func(ctx context.Context, address string, purpose Purpose) error
	OnChange func(Snapshot)
}

// Snapshot is a point-in-time view of a challenge.
type Snapshot struct {
	Address   string
	Purpose   Purpose
	State     State
	IssuedAt  time.Time
	ExpiresAt time.Time
	ResendAt  time.Time
	// ExpiresIn and ResendIn are measured at the last tick, rounded up to whole ticks.
	ExpiresIn time.Duration
	ResendIn  time.Duration
	Resends   int
}

// Challenge is the live countdown state for one address.
type Challenge struct {
	mu sync.Mutex

	sched   *scheduler.Scheduler
	cfg     Config
	deps    Deps
	address string
	purpose Purpose

	state     State
	issuedAt  time.Time
	expiresAt time.Time
	resendAt  time.Time
	// observed is the scheduler time both countdowns were last measured at.
	observed time.Time
	resends  int
	closed   bool
}

// Start arms both countdowns for a code the caller has already asked the identity
// service to send. The windows start at cfg.IssuedAt, or at the scheduler's current
// time when it is zero. A code whose window already closed starts Expired.
func Start(sched *scheduler.Scheduler, address string, purpose Purpose, cfg Config, deps Deps) (*Challenge, error) {
	if sched == nil {
		return nil, errors.New("otc scheduler required")
	}
	if address == "" {
		return nil, errors.New("otc address required")
	}
	if deps.Verify == nil || deps.Resend == nil {
		return nil, errors.New("otc verify and resend dependencies required")
	}

	c := &Challenge{
		sched:   sched,
		cfg:     cfg.normalized(),
		deps:    deps,
		address: address,
		purpose: purpose,
	}

	now := sched.Now()
	issuedAt := c.cfg.IssuedAt
	if issuedAt.IsZero() || issuedAt.After(now) {
		issuedAt = now
	}

	c.mu.Lock()
	err := c.issueLocked(issuedAt, now)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.notify(snap)
	return c, nil
}

func (c *Challenge) issueLocked(issuedAt, now time.Time) error {
	c.state = StateIssued
	c.issuedAt = issuedAt
	c.expiresAt = issuedAt.Add(c.cfg.TTL)
	c.resendAt = issuedAt.Add(c.cfg.ResendCooldown)
	c.observed = now
	c.cancelTimersLocked()

	if !now.Before(c.expiresAt) {
		c.state = StateExpired
		return nil
	}
	if err := c.sched.Every(c.timerName(timerExpiry), c.cfg.Tick, c.onExpiryTick); err != nil {
		return err
	}
	if !now.Before(c.resendAt) {
		return nil
	}
	if err := c.sched.Every(c.timerName(timerResend), c.cfg.Tick, c.onResendTick); err != nil {
		c.sched.Cancel(c.timerName(timerExpiry))
		return err
	}
	return nil
}

// countdown is the time left until at, rounded up to whole ticks.
func (c *Challenge) countdown(at time.Time) time.Duration {
	d := at.Sub(c.observed)
	if d <= 0 {
		return 0
	}
	tick := c.cfg.Tick
	if r := d % tick; r != 0 {
		d += tick - r
	}
	return d
}

func (c *Challenge) timerName(base string) string {
	if c.cfg.TimerPrefix == "" {
		return base + ":" + c.address
	}
	return c.cfg.TimerPrefix + base + ":" + c.address
}

// onExpiryTick measures both countdowns and emits the only snapshot for this tick.
func (c *Challenge) onExpiryTick(now time.Time) {
	c.mu.Lock()
	if c.closed || c.state != StateIssued {
		c.mu.Unlock()
		return
	}

	c.observed = now
	if !now.Before(c.expiresAt) {
		c.state = StateExpired
		c.cancelTimersLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// onResendTick retires the cooldown timer once resend is available. Both timers share
// one interval and the expiry timer fires first, so the snapshot is already out.
func (c *Challenge) onResendTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || now.Before(c.resendAt) {
		return
	}
	c.sched.Cancel(c.timerName(timerResend))
}

func (c *Challenge) cancelTimersLocked() {
	c.sched.Cancel(c.timerName(timerExpiry))
	c.sched.Cancel(c.timerName(timerResend))
}

// Verify checks code against the identity service. Malformed codes are rejected with
// ErrInvalidFormat before any call. A mismatch leaves the challenge Issued; an expiry
// reported by the service moves it to Expired.
//
// The service's answer wins over the local countdown: a match accepted while the
// expiry tick fired during the call still ends Verified.
func (c *Challenge) Verify(ctx context.Context, code string) error {
	if !ValidCode(code) {
		return ErrInvalidFormat
	}

	c.mu.Lock()
	if c.closed || c.state == StateVerified {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.state == StateExpired {
		c.mu.Unlock()
		return ErrCodeExpired
	}
	issuedAt := c.issuedAt
	c.mu.Unlock()

	err := c.deps.Verify(ctx, c.address, code, c.purpose)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrNotActive
	}
	// A resend while the call was in flight replaced the code being checked.
	if !c.issuedAt.Equal(issuedAt) && err != nil {
		c.mu.Unlock()
		return err
	}

	switch {
	case err == nil:
		c.state = StateVerified
		c.cancelTimersLocked()
	case errors.Is(err, ErrCodeExpired):
		c.state = StateExpired
		c.cancelTimersLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return err
}

// Resend asks the identity service for a fresh code. While the cooldown is running it
// fails with ErrCooldown and no call is made. On success the challenge passes through
// Resent and re-enters Issued with fresh expiry and cooldown windows; OnChange sees
// both snapshots.
func (c *Challenge) Resend(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.state == StateVerified {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.state == StateIssued && c.sched.Now().Before(c.resendAt) {
		c.mu.Unlock()
		return ErrCooldown
	}
	c.mu.Unlock()

	if err := c.deps.Resend(ctx, c.address, c.purpose); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.resends++
	now := c.sched.Now()
	err := c.issueLocked(now, now)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	resent := snap
	resent.State = StateResent

	c.notify(resent)
	c.notify(snap)
	return nil
}

// Snapshot returns the current state and the countdowns as of the last tick.
func (c *Challenge) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current lifecycle state.
func (c *Challenge) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Address returns the challenged address.
func (c *Challenge) Address() string {
	return c.address
}

// Purpose returns the challenge purpose.
func (c *Challenge) Purpose() Purpose {
	return c.purpose
}

func (c *Challenge) snapshotLocked() Snapshot {
	snap := Snapshot{
		Address:   c.address,
		Purpose:   c.purpose,
		State:     c.state,
		IssuedAt:  c.issuedAt,
		ExpiresAt: c.expiresAt,
		ResendAt:  c.resendAt,
		Resends:   c.resends,
	}
	if c.state == StateIssued {
		snap.ExpiresIn = c.countdown(c.expiresAt)
		snap.ResendIn = c.countdown(c.resendAt)
	}
	return snap
}

func (c *Challenge) notify(s Snapshot) {
	if c.deps.OnChange != nil {
		c.deps.OnChange(s)
	}
}

// Close cancels both countdowns. Further operations return ErrNotActive.
func (c *Challenge) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelTimersLocked()
}
