package job

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joshu-sajeev/jobtracker/common"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/joshu-sajeev/jobtracker/internal/live"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type JobService struct {
	repo   JobRepoInterface
	queue  JobQueue
	pub    live.Publisher
	newID  IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

type ServiceOption func(*JobService)

func WithPublisher(p live.Publisher) ServiceOption {
	return func(s *JobService) { s.pub = p }
}

func WithIDGenerator(g IDGenerator) ServiceOption {
	return func(s *JobService) { s.newID = g }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *JobService) { s.now = now }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *JobService) { s.logger = l }
}

func NewJobService(repo JobRepoInterface, q JobQueue, opts ...ServiceOption) *JobService {
	s := &JobService{
		repo:   repo,
		queue:  q,
		pub:    live.Nop,
		newID:  NewCustomID,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ JobServiceInterface = (*JobService)(nil)

// SubmitJob creates a Pending job and enqueues it under its custom ID.
// The row is committed before the enqueue so a worker never receives a
// key it cannot look up; if the enqueue fails the row is removed again.
func (s *JobService) SubmitJob(ctx context.Context) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	j := &models.Job{
		CustomID: s.newID(s.now()),
		Status:   string(config.JobStatusPending),
		Retries:  0,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, submitError(err)
	}

	if err := s.queue.Enqueue(ctx, j.CustomID); err != nil {
		s.logger.Error("enqueue job",
			slog.String("custom_id", j.CustomID),
			slog.String("error", err.Error()),
		)
		// detach so a canceled request still cleans up
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), j.ID); delErr != nil {
			s.logger.Error("remove unqueued job",
				slog.String("custom_id", j.CustomID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, submitError(err)
	}

	s.logger.Info("job submitted", slog.String("custom_id", j.CustomID), slog.Uint64("id", uint64(j.ID)))
	s.pub.Publish(ctx, *j)

	resp := dto.NewJobResponse(*j)
	return &resp, nil
}

func submitError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	case errors.Is(err, ErrConflict), errors.Is(err, queue.ErrDuplicate):
		return common.Errf(http.StatusInternalServerError, "job id collision, retry submission")
	default:
		return common.Errf(http.StatusInternalServerError, "failed to add job to queue")
	}
}

// GetJob retrieves a job by its ID.
func (s *JobService) GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "failed to get job")
	}

	resp := dto.NewJobResponse(*j)
	return &resp, nil
}

// ListJobs returns one page of jobs, newest first. A zero page or limit
// falls back to the defaults.
func (s *JobService) ListJobs(ctx context.Context, page, limit int) (*dto.JobListResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}

	jobs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, lookupError(err, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = dto.NewJobResponse(j)
	}

	return &dto.JobListResponseDTO{
		Success: true,
		Jobs:    dtos,
		Pagination: dto.PaginationDTO{
			CurrentPage: page,
			TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
			TotalJobs:   total,
		},
	}, nil
}

// ListTransactions returns the attempt history of a job, newest first.
// An unknown job is a 404, never an empty list.
func (s *JobService) ListTransactions(ctx context.Context, jobID uint) ([]dto.TransactionResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if _, err := s.repo.FindByID(ctx, jobID); err != nil {
		return nil, lookupError(err, "failed to fetch transactions")
	}

	txs, err := s.repo.ListTransactions(ctx, jobID)
	if err != nil {
		return nil, lookupError(err, "failed to fetch transactions")
	}

	dtos := make([]dto.TransactionResponseDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = dto.NewTransactionResponse(tx)
	}
	return dtos, nil
}

// QueueStats reports how many items are ready, delayed and leased.
func (s *JobService) QueueStats(ctx context.Context) (*queue.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, lookupError(err, "failed to read queue stats")
	}
	return &stats, nil
}

func lookupError(err error, internal string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	case errors.Is(err, ErrNotFound):
		return common.Errf(http.StatusNotFound, "job not found")
	default:
		return common.Errf(http.StatusInternalServerError, "%s", internal)
	}
}
