package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aescanero/tradehost/pkg/domain"
	"github.com/aescanero/tradehost/pkg/ports"
	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("notification queue closed")

// DefaultQueueSize is used when the dispatcher is built with a non-positive size
const DefaultQueueSize = 256

// HandlerFunc applies one inbound notification
type HandlerFunc func(ctx context.Context, msg domain.Message)

// Dispatcher applies inbound bus notifications on a single worker goroutine,
// in the order they were enqueued. The queue is unbounded: Enqueue never
// blocks and never drops a notification while the dispatcher is open.
// The size given at construction is the backlog above which a warning is
// logged once per overflow.
type Dispatcher struct {
	handler HandlerFunc
	metrics ports.MetricsCollector
	logger  *zap.Logger
	size    int

	mu      sync.Mutex
	pending []domain.Message
	backlog bool
	closed  bool
	started bool
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher that warns once its backlog reaches size
func NewDispatcher(size int, handler HandlerFunc, metrics ports.MetricsCollector, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		handler: handler,
		metrics: metrics,
		logger:  logger,
		size:    size,
		pending: make([]domain.Message, 0, size),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	go d.run()
	d.logger.Debug("notification dispatcher started", zap.Int("backlog_threshold", d.size))
}

// Enqueue queues a notification for the worker
func (d *Dispatcher) Enqueue(msg domain.Message) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.metrics.RecordNotificationDropped()
		return ErrQueueClosed
	}

	d.pending = append(d.pending, msg)
	depth := len(d.pending)
	warn := depth >= d.size && !d.backlog
	if warn {
		d.backlog = true
	}
	d.mu.Unlock()

	d.metrics.SetQueueDepth(depth)
	if warn {
		d.logger.Warn("notification backlog above threshold",
			zap.Int("depth", depth),
			zap.Int("threshold", d.size))
	}

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Depth returns the number of queued notifications
func (d *Dispatcher) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Closed reports whether Shutdown has been called
func (d *Dispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Shutdown stops accepting notifications and waits for the queued ones to
// be applied. If ctx expires first the worker is cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		return nil
	}

	select {
	case d.wake <- struct{}{}:
	default:
	}

	select {
	case <-d.done:
		d.logger.Debug("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// next pops the oldest notification. ok is false when the queue is empty;
// closed is true once the dispatcher was shut down.
func (d *Dispatcher) next() (msg domain.Message, ok bool, closed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		d.backlog = false
		return nil, false, d.closed
	}
	msg = d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	if len(d.pending) < d.size {
		d.backlog = false
	}
	return msg, true, d.closed
}

// run is the worker loop
func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		msg, ok, closed := d.next()
		if ok {
			if d.ctx.Err() != nil {
				return
			}
			d.metrics.SetQueueDepth(d.Depth())
			d.apply(msg)
			continue
		}
		if closed {
			return
		}

		select {
		case <-d.ctx.Done():
			return
		case <-d.wake:
		}
	}
}

// apply runs the handler, isolating the worker from handler panics
func (d *Dispatcher) apply(msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification handler panicked",
				zap.String("type", msg.MessageType()),
				zap.Any("panic", r))
		}
	}()

	d.metrics.RecordNotification(msg.MessageType())
	d.handler(d.ctx, msg)
}
