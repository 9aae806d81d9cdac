package transport

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hmgle/harcapture/pkg/logger"
)

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 4
	DefaultTimeout   = 10 * time.Second
)

// DispatcherOptions configures a Dispatcher. Zero values select the defaults.
type DispatcherOptions struct {
	QueueSize int
	Workers   int
	// Timeout bounds a single delivery including its retries
	Timeout time.Duration
	Logger  logger.Logger
	Metrics *Metrics
}

// Dispatcher is a Sender that queues messages and delivers them to a sink
// from a fixed pool of workers. When the queue is full the message is
// dropped and counted.
type Dispatcher struct {
	sink    Sink
	queue   chan Message
	timeout time.Duration
	logger  logger.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers delivering to sink
func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Message, opts.QueueSize),
		timeout: opts.Timeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		group:   &errgroup.Group{},
	}
	for i := 0; i < opts.Workers; i++ {
		d.group.Go(d.work)
	}
	return d
}

// Send queues the archive for delivery without blocking
func (d *Dispatcher) Send(har, pathHint, customerID string) {
	d.Enqueue(NewMessage(har, pathHint, customerID))
}

// Enqueue queues msg and reports whether it was accepted
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Dropped.Inc()
		return false
	}

	select {
	case d.queue <- msg:
		d.metrics.Enqueued.Inc()
		d.metrics.Queued.Inc()
		return true
	default:
		d.metrics.Dropped.Inc()
		d.logger.Warn("Delivery queue full, dropping message %s for %s", msg.ID, msg.PathHint)
		return false
	}
}

func (d *Dispatcher) work() error {
	for msg := range d.queue {
		d.metrics.Queued.Dec()
		d.deliver(msg)
	}
	return nil
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, msg); err != nil {
		d.metrics.Failed.Inc()
		d.logger.Error("Failed to deliver message %s for %s: %v", msg.ID, msg.PathHint, err)
		return
	}
	d.metrics.Delivered.Inc()
	d.logger.Debug("Delivered message %s for %s", msg.ID, msg.PathHint)
}

// Close stops accepting messages, waits for queued messages to be delivered
// and closes the sink. When ctx expires first, deliveries in flight are
// cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
	return d.sink.Close()
}
