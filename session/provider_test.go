package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestProviderDeliversInOrderExactlyOnce(t *testing.T) {
	p := NewProvider()
	var got []EventKind
	p.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	sess := testSession()
	p.Publish(Event{Kind: EventSignedIn, Session: sess})
	p.Publish(Event{Kind: EventTokenRefreshed, Session: sess})
	p.Publish(Event{Kind: EventSignedOut})

	want := []EventKind{EventSignedIn, EventTokenRefreshed, EventSignedOut}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if _, ok := p.Current(); ok {
		t.Fatal("expected no session after sign-out")
	}
}

func TestProviderReentrantPublishQueued(t *testing.T) {
	p := NewProvider()
	var trace []string

	p.Subscribe(func(ev Event) {
		trace = append(trace, "a:"+ev.Kind.String())
		if ev.Kind == EventSignedIn {
			p.Publish(Event{Kind: EventInvalidated})
		}
	})
	p.Subscribe(func(ev Event) { trace = append(trace, "b:"+ev.Kind.String()) })

	p.Publish(Event{Kind: EventSignedIn, Session: testSession()})

	want := []string{"a:signed_in", "b:signed_in", "a:invalidated", "b:invalidated"}
	if len(trace) != len(want) {
		t.Fatalf("expected %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, trace)
		}
	}
}

func TestProviderDeferredListenersRunAfterSync(t *testing.T) {
	p := NewProvider()
	var trace []string

	p.Defer(func(ev Event) { trace = append(trace, "deferred") })
	p.Subscribe(func(ev Event) { trace = append(trace, "sync-1") })
	p.Subscribe(func(ev Event) { trace = append(trace, "sync-2") })

	p.Publish(Event{Kind: EventSignedIn, Session: testSession()})

	want := []string{"sync-1", "sync-2", "deferred"}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, trace)
		}
	}
}

func TestProviderSeqAndCurrentDuringDelivery(t *testing.T) {
	p := NewProvider()
	var seqs []uint64
	p.Subscribe(func(ev Event) {
		seqs = append(seqs, ev.Seq)
		cur, ok := p.Current()
		if ev.Session != nil && (!ok || cur.Identity.ID != ev.Session.Identity.ID) {
			t.Errorf("listener observed stale current session")
		}
	})

	p.Publish(Event{Kind: EventSignedIn, Session: testSession()})
	p.Publish(Event{Kind: EventSignedOut})
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Fatalf("unexpected seqs: %v", seqs)
	}
}

func TestProviderUnsubscribe(t *testing.T) {
	p := NewProvider()
	calls := 0
	unsub := p.Subscribe(func(Event) { calls++ })

	p.Publish(Event{Kind: EventSignedOut})
	unsub()
	unsub()
	p.Publish(Event{Kind: EventSignedOut})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestProviderRestoreFailureSettlesToNoSession(t *testing.T) {
	p := NewProvider()
	var events []Event
	p.Subscribe(func(ev Event) { events = append(events, ev) })

	if p.Bootstrapped() {
		t.Fatal("provider must not start bootstrapped")
	}

	srcErr := errors.New("network down")
	err := p.Restore(context.Background(), SourceFunc(func(context.Context) (*Session, error) {
		return testSession(), srcErr
	}))
	if !errors.Is(err, srcErr) {
		t.Fatalf("expected source error returned, got %v", err)
	}
	if !p.Bootstrapped() {
		t.Fatal("expected bootstrapped after failed restore")
	}
	if _, ok := p.Current(); ok {
		t.Fatal("expected no session after failed restore")
	}
	if len(events) != 1 || events[0].Kind != EventRestored || events[0].Session != nil {
		t.Fatalf("expected single empty restored event, got %+v", events)
	}
}

func TestProviderRestoreSuccess(t *testing.T) {
	p := NewProvider()
	var bootstrappedDuringEvent bool
	p.Subscribe(func(ev Event) { bootstrappedDuringEvent = p.Bootstrapped() && ev.Establishes() })

	err := p.Restore(context.Background(), SourceFunc(func(context.Context) (*Session, error) {
		return testSession(), nil
	}))
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !bootstrappedDuringEvent {
		t.Fatal("listeners must observe bootstrapped state with the restored session")
	}
	cur, ok := p.Current()
	if !ok || cur.Role() != RoleProvider {
		t.Fatalf("expected restored provider session, got %+v", cur)
	}
}

func TestProviderSignInBootstraps(t *testing.T) {
	p := NewProvider()

	p.Publish(Event{Kind: EventSignedIn})
	if p.Bootstrapped() {
		t.Fatal("a sign-in without a session must not bootstrap")
	}

	p.Publish(Event{Kind: EventSignedIn, Session: testSession()})
	if !p.Bootstrapped() {
		t.Fatal("expected bootstrapped once a sign-in establishes a session")
	}

	p.Publish(Event{Kind: EventSignedOut})
	if !p.Bootstrapped() {
		t.Fatal("sign-out must not undo the bootstrap")
	}
}

func TestProviderCurrentIsCopy(t *testing.T) {
	p := NewProvider()
	p.Publish(Event{Kind: EventSignedIn, Session: testSession()})

	cur, _ := p.Current()
	cur.AccessToken = "mutated"
	again, _ := p.Current()
	if again.AccessToken == "mutated" {
		t.Fatal("Current must return a copy")
	}
}

func TestProviderConcurrentPublishDeliversAll(t *testing.T) {
	p := NewProvider()
	var mu sync.Mutex
	count := 0
	p.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Publish(Event{Kind: EventTokenRefreshed})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 50 {
		t.Fatalf("expected 50 deliveries, got %d", count)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Provider "); err != nil || r != RoleProvider {
		t.Fatalf("expected provider, got %q %v", r, err)
	}
	if _, err := ParseRole("admin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}
