package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"otc.request", "otc.verify", "provider.activated"} {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()

	for _, want := range []string{"otc.request", "otc.verify", "provider.activated"} {
		select {
		case e := <-sink.Events():
			if e.EventType != want {
				t.Fatalf("expected %s, got %s", want, e.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 4)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the sink, one sits in the buffer; the rest overflow.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "signin"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "otc.verify", ClientKey: "ck", Success: true})
	sink.Emit(context.Background(), Event{EventType: "signout"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.EventType != "otc.verify" || e.ClientKey != "ck" || !e.Success {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: "x"})
	if (<-a.Events()).EventType != "x" || (<-b.Events()).EventType != "x" {
		t.Fatal("expected both sinks to receive the event")
	}
}

type batchRecorder struct {
	release chan struct{}
	mu      sync.Mutex
	sizes   []int
	types   []string
}

func (s *batchRecorder) Emit(ctx context.Context, e Event) {
	s.EmitBatch(ctx, []Event{e})
}

func (s *batchRecorder) EmitBatch(_ context.Context, events []Event) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, len(events))
	for _, e := range events {
		s.types = append(s.types, e.EventType)
	}
}

func TestDispatcherBatchesQueuedEvents(t *testing.T) {
	sink := &batchRecorder{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, BatchSize: 4}, sink)

	// The first event is held by the sink while the next nine queue up behind it.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "otc.request." + strconv.Itoa(i)})
	}
	close(sink.release)
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.types) != 10 {
		t.Fatalf("expected 10 delivered events, got %d", len(sink.types))
	}
	for i, typ := range sink.types {
		if want := "otc.request." + strconv.Itoa(i); typ != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, typ)
		}
	}
	for _, n := range sink.sizes {
		if n > 4 {
			t.Fatalf("batch of %d exceeds the limit", n)
		}
	}
	if len(sink.sizes) >= 10 {
		t.Fatalf("expected queued events to share batches, got %v", sink.sizes)
	}
	if st := d.Stats(); st.Delivered != 10 || st.Batches != uint64(len(sink.sizes)) {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

type panickingSink struct {
	calls int
}

func (s *panickingSink) Emit(context.Context, Event) {
	s.calls++
	if s.calls == 1 {
		panic("broker gone")
	}
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	sink := &panickingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "signin"})
	d.Emit(context.Background(), Event{EventType: "signout"})
	d.Close()

	st := d.Stats()
	if st.Failed != 1 || st.Delivered != 1 {
		t.Fatalf("expected one failed and one delivered event, got %+v", st)
	}
	if sink.calls != 2 {
		t.Fatalf("expected delivery to continue after the panic, got %d calls", sink.calls)
	}
}
