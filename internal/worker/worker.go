package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/queue"
)

// Queue is the consumer side of the durable queue.
type Queue interface {
	Dequeue(ctx context.Context) (*queue.Delivery, error)
	Ack(ctx context.Context, d queue.Delivery) error
	Retry(ctx context.Context, d queue.Delivery) (time.Duration, error)
	Retirer
}

// Retirer removes parked exhausted items from the queue.
type Retirer interface {
	Retire(ctx context.Context, key string) error
}

const maxIdleDelay = 30 * time.Second

type Worker struct {
	ID           int
	queue        Queue
	processor    *Processor
	pollInterval time.Duration
	logger       *slog.Logger

	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func NewWorker(id int, q Queue, p *Processor, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ID:           id,
		queue:        q,
		processor:    p,
		pollInterval: pollInterval,
		logger:       logger.With(slog.Int("worker", id)),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start pulls and processes items until Stop is called or ctx ends. While
// the queue is empty the poll delay doubles up to maxIdleDelay.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(w.done)

		currentDelay := w.pollInterval
		for {
			select {
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			default:
			}

			handled, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("dequeue failed", slog.String("error", err.Error()))
			}

			if handled {
				currentDelay = w.pollInterval
				continue
			}
			if err == nil {
				currentDelay = min(currentDelay*2, maxIdleDelay)
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce dequeues at most one item and drives it to an ack or retry. It
// reports whether an item was handled.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	d, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, nil
	}

	outcome := w.processor.Process(ctx, *d)
	w.logger.Debug("attempt processed",
		slog.String("custom_id", d.Key),
		slog.Int("attempt", d.Attempt),
		slog.String("outcome", outcome.String()),
	)

	if outcome == OutcomeRetryScheduled {
		w.retry(ctx, *d)
	} else {
		w.ack(ctx, *d)
	}
	return true, nil
}

func (w *Worker) retry(ctx context.Context, d queue.Delivery) {
	delay, err := w.queue.Retry(ctx, d)
	switch {
	case err == nil:
		w.logger.Info("retry scheduled",
			slog.String("custom_id", d.Key),
			slog.Int("attempt", d.Attempt),
			slog.Duration("delay", delay),
		)
	case errors.Is(err, queue.ErrExhausted):
		// on failure the item stays parked and the next Recover retries it
		if err := w.processor.RetireExhausted(ctx, w.queue, d.Key, ErrAttemptsExhausted); err != nil {
			w.logger.Error("record exhaustion", slog.String("custom_id", d.Key), slog.String("error", err.Error()))
		}
	case errors.Is(err, queue.ErrLeaseLost):
		w.logger.Warn("lease lost before retry", slog.String("custom_id", d.Key))
	default:
		// the lease stays held; the reaper requeues the item once it expires
		w.logger.Error("schedule retry", slog.String("custom_id", d.Key), slog.String("error", err.Error()))
	}
}

func (w *Worker) ack(ctx context.Context, d queue.Delivery) {
	err := w.queue.Ack(ctx, d)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrLeaseLost):
		w.logger.Warn("lease lost before ack", slog.String("custom_id", d.Key))
	default:
		w.logger.Error("ack", slog.String("custom_id", d.Key), slog.String("error", err.Error()))
	}
}

// Stop asks the worker to exit after its current item and waits for it.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	if w.started.Load() {
		<-w.done
	}
}

// Done is closed once the worker loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }
