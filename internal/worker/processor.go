package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
)

// Outcome is what an attempt means for the queue item that carried it.
type Outcome int

const (
	// OutcomeCompleted: the job succeeded; ack the item.
	OutcomeCompleted Outcome = iota + 1
	// OutcomeRetryScheduled: the attempt failed and the queue should
	// redeliver after backoff.
	OutcomeRetryScheduled
	// OutcomeTerminallyFailed: the last attempt failed and the job is
	// now Failed; ack the item.
	OutcomeTerminallyFailed
	// OutcomeDropped: the item has no job record; ack without retrying.
	OutcomeDropped
	// OutcomeSkipped: the job was already terminal; ack, nothing written.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetryScheduled:
		return "retry_scheduled"
	case OutcomeTerminallyFailed:
		return "terminally_failed"
	case OutcomeDropped:
		return "dropped"
	case OutcomeSkipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

var (
	// ErrLeaseExpired is recorded when a final attempt never reported back.
	ErrLeaseExpired = errors.New("lease expired on final attempt")
	// ErrAttemptsExhausted is recorded when the queue retired an item whose
	// last failure could not be written by the attempt itself.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

// Processor runs one delivery through the job state machine and keeps the
// job row, the transaction log and the live feed consistent.
type Processor struct {
	repo     job.JobRepoInterface
	executor Executor
	pub      live.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

type ProcessorOption func(*Processor)

func WithPublisher(p live.Publisher) ProcessorOption {
	return func(pr *Processor) { pr.pub = p }
}

func WithLogger(l *slog.Logger) ProcessorOption {
	return func(pr *Processor) { pr.logger = l }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(pr *Processor) { pr.now = now }
}

func NewProcessor(repo job.JobRepoInterface, executor Executor, opts ...ProcessorOption) *Processor {
	p := &Processor{
		repo:     repo,
		executor: executor,
		pub:      live.Nop,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles attempt d.Attempt of the job keyed by d.Key.
//
// When bookkeeping itself fails the attempt is reported as
// OutcomeRetryScheduled even on the final attempt: the queue then retires
// the item and the caller records the failure through MarkExhausted.
func (p *Processor) Process(ctx context.Context, d queue.Delivery) Outcome {
	log := p.logger.With(
		slog.String("custom_id", d.Key),
		slog.Int("attempt", d.Attempt),
		slog.Int("max_attempts", d.MaxAttempts),
	)

	j, err := p.repo.FindByCustomID(ctx, d.Key)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			log.Error("queue item has no job record, dropping")
			return OutcomeDropped
		}
		log.Error("look up job", slog.String("error", err.Error()))
		return OutcomeRetryScheduled
	}

	if config.IsTerminal(config.JobStatus(j.Status)) {
		log.Info("job already terminal, skipping redelivery", slog.String("status", j.Status))
		return OutcomeSkipped
	}

	startedAt := p.now()
	j.Status = string(config.JobStatusInProgress)
	j.Retries = d.Attempt - 1
	j.LastAttempt = &startedAt

	if err := p.repo.Update(ctx, j); err != nil {
		if errors.Is(err, job.ErrTerminal) {
			log.Info("job became terminal before start, skipping")
			return OutcomeSkipped
		}
		log.Error("persist attempt start", slog.String("error", err.Error()))
		return p.fail(ctx, log, d, j, err)
	}
	j.UpdatedAt = startedAt
	p.pub.Publish(ctx, *j)

	if err := p.executor.Execute(ctx, j); err != nil {
		log.Warn("attempt failed", slog.String("error", err.Error()))
		return p.fail(ctx, log, d, j, err)
	}

	return p.complete(ctx, log, d, j)
}

func (p *Processor) complete(ctx context.Context, log *slog.Logger, d queue.Delivery, j *models.Job) Outcome {
	finishedAt := p.now()
	changed := false

	err := p.repo.WithTx(ctx, func(repo job.JobRepoInterface) error {
		ok, err := repo.MarkTerminal(ctx, j.ID, config.JobStatusCompleted)
		if err != nil {
			return err
		}
		if changed = ok; !ok {
			return nil
		}

		_, err = repo.FindCompletedTransaction(ctx, j.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, job.ErrNotFound) {
			return err
		}
		return repo.AppendTransaction(ctx, &models.Transaction{
			JobID:     j.ID,
			CustomID:  j.CustomID,
			Status:    string(config.JobStatusCompleted),
			Timestamp: finishedAt,
		})
	})
	if err != nil {
		log.Error("persist completion", slog.String("error", err.Error()))
		return p.fail(ctx, log, d, j, err)
	}
	if !changed {
		log.Info("job already terminal, completion not recorded")
		return OutcomeSkipped
	}

	j.Status = string(config.JobStatusCompleted)
	j.UpdatedAt = finishedAt
	p.pub.Publish(ctx, *j)

	log.Info("job completed")
	return OutcomeCompleted
}

// fail records a failed attempt. Every failed attempt appends exactly one
// Failed transaction in the same database transaction as the job write.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, d queue.Delivery, j *models.Job, cause error) Outcome {
	failedAt := p.now()
	final := d.Final()
	msg := cause.Error()
	changed := true

	err := p.repo.WithTx(ctx, func(repo job.JobRepoInterface) error {
		if final {
			ok, err := repo.MarkTerminal(ctx, j.ID, config.JobStatusFailed)
			if err != nil {
				return err
			}
			if changed = ok; !ok {
				return nil
			}
		} else if err := repo.Update(ctx, j); err != nil {
			if errors.Is(err, job.ErrTerminal) {
				changed = false
				return nil
			}
			return err
		}

		return repo.AppendTransaction(ctx, &models.Transaction{
			JobID:        j.ID,
			CustomID:     j.CustomID,
			Status:       string(config.JobStatusFailed),
			ErrorMessage: &msg,
			Timestamp:    failedAt,
		})
	})
	if err != nil {
		log.Error("persist attempt failure", slog.String("error", err.Error()))
		return OutcomeRetryScheduled
	}
	if !changed {
		log.Info("job already terminal, failure not recorded")
		return OutcomeSkipped
	}

	j.UpdatedAt = failedAt
	if final {
		j.Status = string(config.JobStatusFailed)
		p.pub.Publish(ctx, *j)
		log.Warn("job failed permanently", slog.String("error", msg))
		return OutcomeTerminallyFailed
	}

	p.pub.Publish(ctx, *j)
	return OutcomeRetryScheduled
}

// RetireExhausted records the failure of a parked exhausted item and only
// then retires it. A job record that no longer exists counts as recorded.
func (p *Processor) RetireExhausted(ctx context.Context, q Retirer, customID string, cause error) error {
	if err := p.MarkExhausted(ctx, customID, cause); err != nil && !errors.Is(err, job.ErrNotFound) {
		return err
	}
	return q.Retire(ctx, customID)
}

// MarkExhausted moves the job keyed by customID to Failed after the queue
// parked its item without a recorded final outcome. It is a no-op for a
// job that is already terminal.
func (p *Processor) MarkExhausted(ctx context.Context, customID string, cause error) error {
	j, err := p.repo.FindByCustomID(ctx, customID)
	if err != nil {
		return fmt.Errorf("mark %s exhausted: %w", customID, err)
	}

	failedAt := p.now()
	msg := cause.Error()
	changed := false

	err = p.repo.WithTx(ctx, func(repo job.JobRepoInterface) error {
		ok, err := repo.MarkTerminal(ctx, j.ID, config.JobStatusFailed)
		if err != nil {
			return err
		}
		if changed = ok; !ok {
			return nil
		}
		return repo.AppendTransaction(ctx, &models.Transaction{
			JobID:        j.ID,
			CustomID:     j.CustomID,
			Status:       string(config.JobStatusFailed),
			ErrorMessage: &msg,
			Timestamp:    failedAt,
		})
	})
	if err != nil {
		return fmt.Errorf("mark %s exhausted: %w", customID, err)
	}
	if !changed {
		return nil
	}

	j.Status = string(config.JobStatusFailed)
	j.UpdatedAt = failedAt
	p.pub.Publish(ctx, *j)

	p.logger.Warn("job failed permanently",
		slog.String("custom_id", customID),
		slog.String("error", msg),
	)
	return nil
}
