package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live/livetest"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/queue/backoff"
	"github.com/joshu-sajeev/jobtracker/internal/storage/postgres"
	"github.com/joshu-sajeev/jobtracker/internal/storage/storetest"
	"github.com/joshu-sajeev/jobtracker/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failFirst fails the first n attempts with errAttempt and succeeds after.
type failFirst struct {
	n     int32
	calls atomic.Int32
}

var errAttempt = errors.New("Simulated job failure for retry test")

func (f *failFirst) Execute(context.Context, *models.Job) error {
	if f.calls.Add(1) <= f.n {
		return errAttempt
	}
	return nil
}

type harness struct {
	repo  *postgres.JobRepository
	queue *queue.Queue
	clock *fakeClock
	rec   *livetest.Recorder
	mr    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo, _ := storetest.NewRepo(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	q := queue.New(client, "jobQueue",
		queue.WithClock(clock.Now),
		queue.WithLeaseTimeout(time.Minute),
		queue.WithMaxAttempts(3),
		queue.WithBackoff(backoff.NewExponential(5*time.Second)),
	)

	return &harness{repo: repo, queue: q, clock: clock, rec: livetest.NewRecorder(), mr: mr}
}

func (h *harness) processor(repo job.JobRepoInterface, exec worker.Executor) *worker.Processor {
	if repo == nil {
		repo = h.repo
	}
	return worker.NewProcessor(repo, exec,
		worker.WithPublisher(h.rec),
		worker.WithClock(h.clock.Now),
	)
}

// submit stores a Pending job and enqueues it the way the API does.
func (h *harness) submit(t *testing.T, customID string, opts ...queue.EnqueueOption) *models.Job {
	t.Helper()
	ctx := context.Background()

	j := &models.Job{CustomID: customID, Status: string(config.JobStatusPending)}
	require.NoError(t, h.repo.Create(ctx, j))
	require.NoError(t, h.queue.Enqueue(ctx, customID, opts...))
	return j
}

func (h *harness) job(t *testing.T, customID string) *models.Job {
	t.Helper()
	j, err := h.repo.FindByCustomID(context.Background(), customID)
	require.NoError(t, err)
	return j
}

func (h *harness) transactions(t *testing.T, jobID uint) []models.Transaction {
	t.Helper()
	txs, err := h.repo.ListTransactions(context.Background(), jobID)
	require.NoError(t, err)
	return txs
}
