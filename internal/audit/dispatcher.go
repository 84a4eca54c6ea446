package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
//
// Critical lists event types that are never dropped, even with DropIfFull:
// the emitting request waits for buffer space instead. Impersonation and
// forced sign-outs belong here; high-volume kinds such as signin_failure or
// otp_failure do not.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	Critical   []string
}

// Dispatcher relays engine events (signin_*, session_*, otp_*, passkey_*,
// permission_*) from request goroutines to a single sink worker.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	dropped atomic.Uint64
	mu      sync.Mutex
	byType  map[string]uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when auditing is disabled; a nil *Dispatcher is a
// valid no-op receiver.
func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("module", "audit", "layer", "dispatcher"),
		queue:  make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
		byType: map[string]uint64{},
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver hands ev to the sink. A panicking sink loses that one event and
// the worker keeps running.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked",
				"operation", "deliver",
				"event_type", ev.EventType,
				"panic", r,
			)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

func (d *Dispatcher) critical(eventType string) bool {
	return slices.Contains(d.cfg.Critical, eventType)
}

// Emit queues ev. With DropIfFull a full buffer drops non-critical events;
// otherwise Emit waits until there is room, ctx ends or the dispatcher
// closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull && !d.critical(ev.EventType) {
		select {
		case d.queue <- ev:
		case <-d.done:
		default:
			d.drop(ctx, ev.EventType)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		if d.critical(ev.EventType) {
			d.logger.WarnContext(ctx, "critical audit event abandoned",
				"operation", "emit",
				"event_type", ev.EventType,
				"user_id", ev.UserID,
				"error", ctx.Err(),
			)
		}
	case <-d.done:
	}
}

func (d *Dispatcher) drop(ctx context.Context, eventType string) {
	d.mu.Lock()
	d.byType[eventType]++
	d.mu.Unlock()

	// Report the first drop and then every 1024th.
	if n := d.dropped.Add(1); n == 1 || n%1024 == 0 {
		d.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"operation", "emit",
			"outcome", "dropped",
			"event_type", eventType,
			"dropped_total", n,
		)
	}
}

// Close drains buffered events into the sink and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped is the total number of events lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType breaks Dropped down per event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := map[string]uint64{}
	if d == nil {
		return out
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range d.byType {
		out[k] = v
	}
	return out
}
