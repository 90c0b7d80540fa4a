package session

import (
	"context"
	"sync"
)

// EventKind names a session transition.
type EventKind uint8

const (
	EventSignedIn EventKind = iota + 1
	EventSignedOut
	EventTokenRefreshed
	// EventInvalidated is an external revocation observed by the client.
	EventInvalidated
	// EventRestored is published once per [Provider.Restore], with or without a session.
	EventRestored
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	case EventInvalidated:
		return "invalidated"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Establishes reports whether an event carries a newly established session.
func (e Event) Establishes() bool {
	return (e.Kind == EventSignedIn || e.Kind == EventRestored) && e.Session != nil
}

// Event is one session transition. Session is nil for sign-out, invalidation, and a
// restore that found nothing. Seq increases by one per delivered event.
type Event struct {
	Kind    EventKind
	Session *Session
	Seq     uint64
}

// Listener receives events. Listeners run on the delivering goroutine and must not
// block on other events of the same Provider.
type Listener func(Event)

// Source answers the restore query.
type Source interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (*Session, error)

func (f SourceFunc) CurrentSession(ctx context.Context) (*Session, error) { return f(ctx) }

type listenerEntry struct {
	id       uint64
	fn       Listener
	deferred bool
}

// Provider tracks the current session of one client and broadcasts its transitions.
//
// Events are delivered one at a time. A Publish that arrives while another event is
// being delivered, from a listener or from another goroutine, is queued and delivered
// by the goroutine already delivering, after the current event has reached every
// listener.
type Provider struct {
	mu           sync.Mutex
	current      *Session
	bootstrapped bool
	listeners    []listenerEntry
	nextID       uint64
	queue        []Event
	delivering   bool
	seq          uint64
}

// NewProvider returns a Provider with no session that has not bootstrapped.
func NewProvider() *Provider {
	return &Provider{}
}

// Subscribe registers fn for every later event and returns its unsubscribe function.
func (p *Provider) Subscribe(fn Listener) func() {
	return p.add(fn, false)
}

// Defer registers fn to observe each event after every synchronous listener has
// observed it.
func (p *Provider) Defer(fn Listener) func() {
	return p.add(fn, true)
}

func (p *Provider) add(fn Listener, deferred bool) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listenerEntry{id: id, fn: fn, deferred: deferred})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, l := range p.listeners {
				if l.id == id {
					p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Current returns a copy of the last known session.
func (p *Provider) Current() (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, false
	}
	return p.current.Clone(), true
}

// Bootstrapped reports whether a restore has resolved, successfully or not, or a
// sign-in has established a session.
func (p *Provider) Bootstrapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bootstrapped
}

// Restore queries src once and publishes EventRestored with the result. A failing
// source settles to no session; the error is returned for logging only.
func (p *Provider) Restore(ctx context.Context, src Source) error {
	var (
		sess *Session
		err  error
	)
	if src != nil {
		sess, err = src.CurrentSession(ctx)
		if err != nil {
			sess = nil
		}
	}
	p.Publish(Event{Kind: EventRestored, Session: sess})
	return err
}

// Publish records ev and delivers it to every listener. Seq is assigned on delivery.
func (p *Provider) Publish(ev Event) {
	ev.Session = ev.Session.Clone()

	p.mu.Lock()
	p.queue = append(p.queue, ev)
	if p.delivering {
		p.mu.Unlock()
		return
	}
	p.delivering = true

	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]

		p.seq++
		next.Seq = p.seq
		p.applyLocked(next)
		listeners := append([]listenerEntry(nil), p.listeners...)
		p.mu.Unlock()

		deliver(listeners, next, false)
		deliver(listeners, next, true)

		p.mu.Lock()
	}

	p.delivering = false
	p.mu.Unlock()
}

func (p *Provider) applyLocked(ev Event) {
	switch ev.Kind {
	case EventSignedIn:
		p.current = ev.Session
		// A session established in this client is known without asking the store.
		if ev.Session != nil {
			p.bootstrapped = true
		}
	case EventTokenRefreshed:
		if ev.Session != nil {
			p.current = ev.Session
		}
	case EventRestored:
		p.current = ev.Session
		p.bootstrapped = true
	case EventSignedOut, EventInvalidated:
		p.current = nil
	}
}

func deliver(listeners []listenerEntry, ev Event, deferred bool) {
	for _, l := range listeners {
		if l.deferred != deferred {
			continue
		}
		l.fn(copyEvent(ev))
	}
}

func copyEvent(ev Event) Event {
	ev.Session = ev.Session.Clone()
	return ev
}
