package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config sizes the dispatcher queue. With DropIfFull set, login and refresh
// calls never wait on a slow sink; events that do not fit are counted.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher moves events off the request path onto one worker goroutine
// that feeds the sink in emit order. A nil *Dispatcher is a valid, disabled
// dispatcher.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	dropIfFull bool

	worker   sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
	dropped  atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

// deliver runs until Close, then flushes whatever is still queued.
func (d *Dispatcher) deliver() {
	defer d.worker.Done()

	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.stop:
			for len(d.queue) > 0 {
				d.sink.Emit(ctx, <-d.queue)
			}
			return
		}
	}
}

// Emit queues ev, stamping it when the caller left Timestamp unset. Without
// DropIfFull it waits for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and returns once the queue is flushed.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped counts events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
