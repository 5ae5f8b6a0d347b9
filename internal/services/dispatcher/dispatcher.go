// Package dispatcher runs pipeline jobs off the request path on a bounded worker pool.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free
	ErrQueueFull = errors.New("dispatcher queue is full")

	// ErrClosed is returned by Submit after Shutdown
	ErrClosed = errors.New("dispatcher is shutting down")
)

// Defaults for non-positive sizes
const (
	DefaultConcurrency = 4
	DefaultQueueSize   = 64
)

// ResultHandler receives every finished run
type ResultHandler func(result models.RunResult)

// Dispatcher implements interfaces.RunDispatcher with a fixed set of workers
// draining an in-memory queue. Queued runs are lost when the process exits.
type Dispatcher struct {
	processor   interfaces.TicketProcessor
	jobs        chan int
	concurrency int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closed      bool
	active      atomic.Int64
	onResult    ResultHandler
	logger      arbor.ILogger
}

var _ interfaces.RunDispatcher = (*Dispatcher)(nil)

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithResultHandler registers fn to be called after each run
func WithResultHandler(fn ResultHandler) Option {
	return func(d *Dispatcher) {
		d.onResult = fn
	}
}

// NewDispatcher creates a dispatcher. Call Start before submitting.
func NewDispatcher(processor interfaces.TicketProcessor, concurrency, queueSize int, logger arbor.ILogger, opts ...Option) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		processor:   processor,
		jobs:        make(chan int, queueSize),
		concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers
func (d *Dispatcher) Start() {
	d.logger.Info().
		Int("concurrency", d.concurrency).
		Int("queue_size", cap(d.jobs)).
		Msg("Starting run dispatcher")

	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Submit queues a run for ticketID without blocking
func (d *Dispatcher) Submit(ticketID int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- ticketID:
		d.logger.Debug().
			Int("ticket_id", ticketID).
			Int("pending", len(d.jobs)).
			Msg("Run queued")
		return nil
	default:
		d.logger.Warn().
			Int("ticket_id", ticketID).
			Int("queue_size", cap(d.jobs)).
			Msg("Run rejected, queue is full")
		return ErrQueueFull
	}
}

// Pending returns the number of queued runs not yet picked up
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Active returns the number of runs in progress
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Shutdown stops accepting runs and waits for queued and in-flight runs to finish.
// When ctx ends first, running pipelines are cancelled and ctx's error is returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info().Msg("Run dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn().
			Int("pending", len(d.jobs)).
			Int("active", d.Active()).
			Msg("Run dispatcher shutdown timed out, cancelling runs")
		return fmt.Errorf("failed to drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug().
		Int("worker_id", id).
		Msg("Worker started")

	for ticketID := range d.jobs {
		d.run(id, ticketID)
	}

	d.logger.Debug().
		Int("worker_id", id).
		Msg("Worker stopping - job queue closed")
}

// run executes one pipeline run. A panic is logged and the worker moves on.
func (d *Dispatcher) run(workerID, ticketID int) {
	d.active.Add(1)
	defer d.active.Add(-1)
	defer common.Recover(d.logger, fmt.Sprintf("dispatcher-worker-%d", workerID))

	result := d.processor.ProcessTicket(d.ctx, ticketID)

	event := d.logger.Info()
	if result.Err != nil {
		event = d.logger.Error().Err(result.Err).Str("failed_at", string(result.FailedAt))
	}
	event.
		Int("worker_id", workerID).
		Int("ticket_id", ticketID).
		Str("run_id", result.RunID).
		Str("state", string(result.State)).
		Dur("duration", result.Duration).
		Msg("Run finished")

	if d.onResult != nil {
		d.onResult(result)
	}
}
