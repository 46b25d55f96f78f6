package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// OverflowPolicy governs what happens when the dispatch queue is full.
type OverflowPolicy string

const (
	// OverflowBlock makes the caller wait for queue space, bounded by its
	// context.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDrop rejects the new record with ErrQueueFull.
	OverflowDrop OverflowPolicy = "drop"
	// OverflowEvict discards the oldest queued record to make room.
	OverflowEvict OverflowPolicy = "evict"
)

// ParseOverflowPolicy validates a configured policy name.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case OverflowBlock, OverflowDrop, OverflowEvict:
		return OverflowPolicy(s), nil
	}
	return "", fmt.Errorf("unknown audit overflow policy %q", s)
}

var (
	// ErrQueueFull signals that a record was rejected under backpressure.
	// Surfaced to the caller explicitly, never swallowed.
	ErrQueueFull = errors.New("audit queue full")

	// ErrDispatcherClosed signals a submission after shutdown began.
	ErrDispatcherClosed = errors.New("audit dispatcher closed")
)

// DispatcherConfig configures the worker pool and queue bounds.
type DispatcherConfig struct {
	Workers       int
	QueueCapacity int
	Overflow      OverflowPolicy
}

// Dispatcher decouples audit-producing call sites from the reporter
// gateway. It owns a bounded queue consumed by a fixed worker pool,
// created once at service startup and shut down once at teardown.
//
// No cross-record ordering is guaranteed: a single caller's records enter
// the queue in call order, but completion order depends on worker
// scheduling.
type Dispatcher struct {
	cfg      DispatcherConfig
	filter   *Filter
	reporter Reporter
	logger   *slog.Logger
	metrics  *Metrics

	tasks chan Record
	wg    sync.WaitGroup

	// mu serializes submissions against the queue close in Shutdown so a
	// late Report never sends on a closed channel.
	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once

	submitted atomic.Uint64
	completed atomic.Uint64
	dropped   atomic.Uint64
	filtered  atomic.Uint64
}

// NewDispatcher creates a dispatcher. Call Start before submitting and
// Shutdown exactly once at teardown. Metrics may be nil.
func NewDispatcher(cfg DispatcherConfig, filter *Filter, reporter Reporter, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1024
	}
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowBlock
	}

	return &Dispatcher{
		cfg:      cfg,
		filter:   filter,
		reporter: reporter,
		logger:   logger,
		metrics:  metrics,
		tasks:    make(chan Record, cfg.QueueCapacity),
	}
}

// Start launches the worker pool. Safe to call once; later calls are
// no-ops.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		d.logger.Info("audit dispatcher started",
			slog.Int("workers", d.cfg.Workers),
			slog.Int("queue_capacity", d.cfg.QueueCapacity),
			slog.String("overflow_policy", string(d.cfg.Overflow)),
		)
	})
}

// Report builds the record for src, applies the type filter and submits the
// delivery task. Filtered records return nil without touching the queue.
// Under backpressure the configured overflow policy decides the outcome; a
// rejection is returned as ErrQueueFull, never silently dropped.
func (d *Dispatcher) Report(ctx context.Context, src Source) error {
	rec := NewRecord(src)

	if !d.filter.Accepts(rec) {
		d.filtered.Add(1)
		d.metrics.incFiltered()
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	switch d.cfg.Overflow {
	case OverflowDrop:
		select {
		case d.tasks <- rec:
		default:
			d.dropped.Add(1)
			d.metrics.incDropped()
			return ErrQueueFull
		}

	case OverflowEvict:
		for {
			select {
			case d.tasks <- rec:
			default:
				// Queue full: discard the oldest queued record and retry.
				select {
				case <-d.tasks:
					d.dropped.Add(1)
					d.metrics.incDropped()
				default:
				}
				continue
			}
			break
		}

	default: // OverflowBlock
		select {
		case d.tasks <- rec:
		case <-ctx.Done():
			d.dropped.Add(1)
			d.metrics.incDropped()
			return ctx.Err()
		}
	}

	d.submitted.Add(1)
	d.metrics.incSubmitted()
	return nil
}

// Shutdown stops intake and drains queued tasks, bounded by ctx. After ctx
// expires remaining workers are abandoned and their tasks discarded; no new
// task starts once the queue is empty.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.tasks)
		d.mu.Unlock()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			d.logger.Info("audit dispatcher drained",
				slog.Uint64("completed", d.completed.Load()),
				slog.Uint64("dropped", d.dropped.Load()),
			)
		case <-ctx.Done():
			d.logger.Warn("audit dispatcher shutdown timed out", slog.Any("error", ctx.Err()))
			err = ctx.Err()
		}
	})
	return err
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for rec := range d.tasks {
		// Delivery is not cancelled mid-flight; the reporter owns its own
		// timeouts.
		if err := d.reporter.Report(context.Background(), rec); err != nil {
			d.logger.Error("audit report failed",
				slog.String("event_type", rec.Type),
				slog.Any("error", err),
			)
		}
		d.completed.Add(1)
		d.metrics.incCompleted()
	}
}

// Submitted returns the number of records accepted into the queue.
func (d *Dispatcher) Submitted() uint64 { return d.submitted.Load() }

// Completed returns the number of delivery tasks finished by workers.
func (d *Dispatcher) Completed() uint64 { return d.completed.Load() }

// Dropped returns the number of records rejected or evicted.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Filtered returns the number of records excluded by the type filter.
func (d *Dispatcher) Filtered() uint64 { return d.filtered.Load() }
