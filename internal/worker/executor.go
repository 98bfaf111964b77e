package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/models"
)

// Executor runs the unit of work for one attempt. A nil error is success;
// any error is an attempt failure and its message is recorded verbatim.
type Executor interface {
	Execute(ctx context.Context, job *models.Job) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job *models.Job) error

func (f ExecutorFunc) Execute(ctx context.Context, job *models.Job) error { return f(ctx, job) }

// ErrSimulatedFailure is the outcome of a failed simulated attempt. Its text
// is stored verbatim as the transaction error message.
var ErrSimulatedFailure = errors.New("Simulated job failure for retry test")

// SimulatedExecutor stands in for real work: it sleeps for Latency and
// then fails with probability FailureRate.
type SimulatedExecutor struct {
	Latency     time.Duration
	FailureRate float64
	Logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedExecutor seeds the outcome source from the current time.
func NewSimulatedExecutor(latency time.Duration, failureRate float64, logger *slog.Logger) *SimulatedExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	seed := uint64(time.Now().UnixNano())
	return &SimulatedExecutor{
		Latency:     latency,
		FailureRate: failureRate,
		Logger:      logger,
		rng:         rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

func (e *SimulatedExecutor) Execute(ctx context.Context, job *models.Job) error {
	select {
	case <-time.After(e.Latency):
	case <-ctx.Done():
		return fmt.Errorf("simulated work interrupted: %w", ctx.Err())
	}

	e.mu.Lock()
	roll := e.rng.Float64()
	e.mu.Unlock()

	if roll < e.FailureRate {
		e.Logger.Info("simulated attempt failed", slog.String("custom_id", job.CustomID))
		return ErrSimulatedFailure
	}

	e.Logger.Info("simulated attempt succeeded", slog.String("custom_id", job.CustomID))
	return nil
}
