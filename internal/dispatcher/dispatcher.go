// Package dispatcher routes ingest events (a command and a path) to the
// handler registered for the command, optionally through a bounded queue
// drained by a background goroutine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Queued is the result of dispatching to a buffered handler.
const Queued = "queued"

var (
	ErrClosed         = errors.New("dispatcher closed")
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
)

// Event is a unit of ingest work: a command and the path it applies to.
type Event struct {
	Command   string
	Path      string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered queues up to size events and handles them in the background.
func Buffered(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// Blocking makes a full buffered queue wait for room instead of rejecting
// the event with ErrQueueFull.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged logs each event at debug level and each failure at error level.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

// Counts are the per-command totals of buffered events.
type Counts struct {
	Processed int64
	Failed    int64
	Dropped   int64
}

type counters struct {
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  *instruments

	mu      sync.RWMutex
	closed  bool
	queues  map[string]chan Event
	counts  map[string]*counters
	workers sync.WaitGroup
}

// New creates a Dispatcher reporting to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		queues:   make(map[string]chan Event),
		counts:   make(map[string]*counters),
	}

	metrics, err := newInstruments(d.depth)
	if err != nil {
		return nil, err
	}
	d.metrics = metrics
	return d, nil
}

// Register adds the handler for command. Handlers must be registered before
// events are dispatched.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.timed(command, h, o.logged)
	if o.bufferSize > 0 {
		handler = d.enqueue(command, o.bufferSize, o.blocking, handler)
	}
	d.handlers[command] = handler
}

// Dispatch routes e to its handler, stamping the current time when e has
// none.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler reports whether a handler is registered for command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Stats returns the totals of every buffered command.
func (d *Dispatcher) Stats() map[string]Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Counts, len(d.counts))
	for cmd, c := range d.counts {
		out[cmd] = Counts{
			Processed: c.processed.Load(),
			Failed:    c.failed.Load(),
			Dropped:   c.dropped.Load(),
		}
	}
	return out
}

// Close stops accepting events and waits for every buffered handler to
// drain its queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) depth() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]int, len(d.queues))
	for cmd, q := range d.queues {
		out[cmd] = len(q)
	}
	return out
}

func (d *Dispatcher) enqueue(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	queue := make(chan Event, size)
	c := &counters{}

	d.mu.Lock()
	d.queues[command] = queue
	d.counts[command] = c
	d.mu.Unlock()

	attrs := metric.WithAttributes(commandAttr(command))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range queue {
			if _, err := h(e); err != nil {
				c.failed.Add(1)
				d.metrics.failed.Add(context.Background(), 1, attrs)
			}
			c.processed.Add(1)
			d.metrics.processed.Add(context.Background(), 1, attrs)
		}
	}()

	// Senders hold the read lock so Close cannot close the queue under them.
	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		if blocking {
			queue <- e
			return Queued, nil
		}
		select {
		case queue <- e:
			return Queued, nil
		default:
			c.dropped.Add(1)
			d.metrics.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

// timed records the handling duration of every event and, when logged is
// set, logs it.
func (d *Dispatcher) timed(command string, h HandlerFunc, logged bool) HandlerFunc {
	attrs := metric.WithAttributes(commandAttr(command))

	return func(e Event) (any, error) {
		start := time.Now()
		if logged {
			d.logger.Debug("handling event", "command", command, "path", e.Path)
		}

		result, err := h(e)

		elapsed := time.Since(start)
		d.metrics.duration.Record(context.Background(), elapsed.Seconds(), attrs)
		switch {
		case err != nil:
			d.logger.Error("event failed", "command", command, "path", e.Path, "duration", elapsed, "error", err)
		case logged:
			d.logger.Debug("event complete", "command", command, "path", e.Path, "duration", elapsed, "result", result)
		}
		return result, err
	}
}
