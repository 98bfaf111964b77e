package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/worker"
	"golang.org/x/sync/errgroup"
)

// Queue is what the pool needs from the durable queue: the consumer side
// for its workers plus lease recovery for the janitor.
type Queue interface {
	worker.Queue
	Reap(ctx context.Context) (queue.ReapResult, error)
}

type Config struct {
	Workers         int
	PollInterval    time.Duration
	JanitorInterval time.Duration
}

type WorkerPool struct {
	workers   []*worker.Worker
	queue     Queue
	processor *worker.Processor
	interval  time.Duration
	logger    *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(cfg Config, q Queue, p *worker.Processor, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		queue:     q,
		processor: p,
		interval:  cfg.JanitorInterval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 1; i <= cfg.Workers; i++ {
		wp.workers = append(wp.workers, worker.NewWorker(i, q, p, cfg.PollInterval, logger))
	}
	return wp
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return len(p.workers) }

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()

	p.logger.Info("worker pool started", slog.Int("workers", len(p.workers)))
}

func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Recover(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("recover expired leases", slog.String("error", err.Error()))
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Recover runs one janitor pass: expired leases go back to the queue, and
// jobs whose final attempt was abandoned are marked Failed. Exhausted items
// left parked by an earlier failed write are picked up again.
func (p *WorkerPool) Recover(ctx context.Context) error {
	res, err := p.queue.Reap(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range res.Exhausted {
		if err := p.processor.RetireExhausted(ctx, p.queue, key, worker.ErrLeaseExpired); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop lets every worker finish its current item. If ctx ends first the
// in-flight attempts are canceled; their leases expire and are recovered
// on the next start.
func (p *WorkerPool) Stop(ctx context.Context) error {
	var g errgroup.Group
	for _, w := range p.workers {
		g.Go(func() error {
			w.Stop()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	p.cancel()
	<-done
	p.wg.Wait()

	p.logger.Info("worker pool stopped")
	return err
}
