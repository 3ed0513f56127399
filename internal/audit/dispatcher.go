package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking
	// the emitting operation.
	DropIfFull bool
}

// Dispatcher asynchronously forwards audit events to a sink on one goroutine,
// so the sink observes events in emission order.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan Event
	quit    chan struct{}
	stopped chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil *Dispatcher
// accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan Event, cfg.BufferSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		case <-d.quit:
			// flush what was accepted before Close
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	d.sink.Emit(ctx, ev)
	d.delivered.Add(1)
}

// Emit queues event. With DropIfFull a full buffer drops the event; otherwise
// Emit waits for room, ctx cancellation, or Close.
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
		case <-d.quit:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.quit:
	}
}

// Close stops accepting events, flushes the buffer and waits for the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closing.Store(true)
		close(d.quit)
		<-d.stopped
	})
}

// Dropped reports events lost to a full buffer or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
