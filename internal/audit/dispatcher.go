package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering. With DropIfFull unset, Emit blocks until the
// buffer has room or ctx is done. BatchSize caps how many queued events reach a
// [BatchSink] in one call; zero or one delivers events singly.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	BatchSize  int
}

// BatchSink is a [Sink] that can take several events in one call, for example one
// broker round trip. The dispatcher prefers EmitBatch when the sink has it. The
// events slice is reused once EmitBatch returns.
type BatchSink interface {
	Sink
	EmitBatch(ctx context.Context, events []Event)
}

// Stats counts what the dispatcher did with emitted events.
type Stats struct {
	// Delivered events reached the sink.
	Delivered uint64
	// Dropped events were discarded because the buffer was full.
	Dropped uint64
	// Failed events were handed to a sink that panicked.
	Failed uint64
	// Batches is the number of sink calls made.
	Batches uint64
}

// Dispatcher forwards audit events to a sink from a single goroutine, in emit order.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	batch BatchSink

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	batches   atomic.Uint64

	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. A disabled config yields a nil
// dispatcher, whose methods are no-ops.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}
	if bs, ok := sink.(BatchSink); ok && cfg.BatchSize > 1 {
		d.batch = bs
	}

	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	pending := make([]Event, 0, d.cfg.BatchSize)
	for {
		select {
		case ev := <-d.queue:
			pending = d.collect(append(pending[:0], ev))
			d.deliver(pending)
		case <-d.done:
			for {
				pending = d.collect(pending[:0])
				if len(pending) == 0 {
					return
				}
				d.deliver(pending)
			}
		}
	}
}

// collect tops pending up from the queue without blocking.
func (d *Dispatcher) collect(pending []Event) []Event {
	for len(pending) < d.cfg.BatchSize {
		select {
		case ev := <-d.queue:
			pending = append(pending, ev)
		default:
			return pending
		}
	}
	return pending
}

func (d *Dispatcher) deliver(events []Event) {
	if d.batch != nil && len(events) > 1 {
		d.call(len(events), func() { d.batch.EmitBatch(context.Background(), events) })
		return
	}
	for _, ev := range events {
		d.call(1, func() { d.sink.Emit(context.Background(), ev) })
	}
}

// call runs one sink call. A panicking sink loses the events of that call only.
func (d *Dispatcher) call(n int, fn func()) {
	d.batches.Add(1)
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(uint64(n))
			return
		}
		d.delivered.Add(uint64(n))
	}()
	fn()
}

// Emit queues event for delivery. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting events and delivers everything already queued.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped counts events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Stats returns the delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
		Batches:   d.batches.Load(),
	}
}
