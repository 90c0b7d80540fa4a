package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrClosed is returned when a timer is registered on a closed scheduler.
	ErrClosed = errors.New("scheduler closed")
	// ErrInvalidInterval is returned for non-positive intervals and delays.
	ErrInvalidInterval = errors.New("scheduler interval must be positive")
	// ErrEmptyName is returned when a timer is registered without a name.
	ErrEmptyName = errors.New("scheduler timer name required")
)

// Func is invoked with the scheduler time at which the timer fired.
type Func func(now time.Time)

type timer struct {
	name     string
	interval time.Duration
	next     time.Time
	repeat   bool
	seq      uint64
	fn       Func
}

// Scheduler runs named timers on a single shared time base.
type Scheduler struct {
	mu      sync.Mutex
	advance sync.Mutex
	now     time.Time
	timers  map[string]*timer
	seq     uint64
	closed  bool
}

// Manual returns a scheduler whose clock starts at start and moves only when
// Advance or AdvanceTo is called.
func Manual(start time.Time) *Scheduler {
	return &Scheduler{
		now:    start,
		timers: make(map[string]*timer),
	}
}

// New returns a scheduler starting at the current wall-clock time. Call Run to drive it.
func New() *Scheduler {
	return Manual(time.Now())
}

// Now returns the scheduler clock.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Every registers fn to fire every interval, starting one interval from now.
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) error {
	return s.register(name, interval, true, fn)
}

// After registers fn to fire once, delay from now.
func (s *Scheduler) After(name string, delay time.Duration, fn Func) error {
	return s.register(name, delay, false, fn)
}

func (s *Scheduler) register(name string, d time.Duration, repeat bool, fn Func) error {
	if name == "" {
		return ErrEmptyName
	}
	if d <= 0 {
		return ErrInvalidInterval
	}
	if fn == nil {
		return errors.New("scheduler callback required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.seq++
	s.timers[name] = &timer{
		name:     name,
		interval: d,
		next:     s.now.Add(d),
		repeat:   repeat,
		seq:      s.seq,
		fn:       fn,
	}
	return nil
}

// Cancel removes the named timer. It reports whether a timer was removed.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[name]; !ok {
		return false
	}
	delete(s.timers, name)
	return true
}

// CancelPrefix removes every timer whose name starts with prefix and returns the count.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for name := range s.timers {
		if strings.HasPrefix(name, prefix) {
			delete(s.timers, name)
			removed++
		}
	}
	return removed
}

// Active reports whether the named timer is registered.
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Len returns the number of registered timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels every timer and rejects further registrations.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for name := range s.timers {
		delete(s.timers, name)
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (s *Scheduler) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	s.AdvanceTo(s.Now().Add(d))
}

// AdvanceTo moves the clock to target, firing every timer due at or before target.
// Timers due at the same instant fire in registration order. A repeating timer that
// is due several times fires once per elapsed interval.
func (s *Scheduler) AdvanceTo(target time.Time) {
	s.advance.Lock()
	defer s.advance.Unlock()

	for {
		s.mu.Lock()
		due := s.nextDueLocked(target)
		if due == nil {
			if target.After(s.now) {
				s.now = target
			}
			s.mu.Unlock()
			return
		}

		firedAt := due.next
		if firedAt.After(s.now) {
			s.now = firedAt
		}
		fn := due.fn
		if due.repeat {
			due.next = due.next.Add(due.interval)
		} else {
			delete(s.timers, due.name)
		}
		s.mu.Unlock()

		fn(firedAt)
	}
}

func (s *Scheduler) nextDueLocked(target time.Time) *timer {
	var due *timer
	for _, t := range s.timers {
		if t.next.After(target) {
			continue
		}
		if due == nil ||
			t.next.Before(due.next) ||
			(t.next.Equal(due.next) && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

// Run drives the scheduler from the wall clock until ctx is done, checking for due
// timers every resolution.
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) error {
	if resolution <= 0 {
		return ErrInvalidInterval
	}

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.AdvanceTo(now)
		}
	}
}
