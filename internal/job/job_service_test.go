package job_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joshu-sajeev/jobtracker/common"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/live/livetest"
	"github.com/joshu-sajeev/jobtracker/internal/mocks"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/storage/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func fixedID(time.Time) string { return "JOB-4821-20250314092653589" }

func newService(repo job.JobRepoInterface, q job.JobQueue, rec *livetest.Recorder) *job.JobService {
	return job.NewJobService(repo, q,
		job.WithIDGenerator(fixedID),
		job.WithClock(func() time.Time { return fixedNow }),
		job.WithPublisher(rec),
	)
}

func assertAPIError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var apiErr common.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, msg, apiErr.Message)
}

func TestJobService_SubmitJob(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(*mocks.JobRepoMock, *mocks.JobQueueMock)
		cancelCtx   bool
		expectErr   bool
		errStatus   int
		errMessage  string
		expectEvent bool
	}{
		{
			name: "successful submit",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.MatchedBy(func(j *models.Job) bool {
					return j.CustomID == "JOB-4821-20250314092653589" &&
						j.Status == string(config.JobStatusPending) &&
						j.Retries == 0
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Job).ID = 7
				}).Return(nil)
				q.On("Enqueue", mock.Anything, "JOB-4821-20250314092653589").Return(nil)
			},
			expectEvent: true,
		},
		{
			name: "custom id collision in database",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.Anything).Return(job.ErrConflict)
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "job id collision, retry submission",
		},
		{
			name: "custom id already queued",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Job).ID = 3
				}).Return(nil)
				q.On("Enqueue", mock.Anything, mock.Anything).Return(queue.ErrDuplicate)
				r.On("Delete", mock.Anything, uint(3)).Return(nil)
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "job id collision, retry submission",
		},
		{
			name: "enqueue failure removes the row",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Job).ID = 9
				}).Return(nil)
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
				r.On("Delete", mock.Anything, uint(9)).Return(nil)
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "failed to add job to queue",
		},
		{
			name: "cleanup failure still reports the enqueue error",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Job).ID = 9
				}).Return(nil)
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
				r.On("Delete", mock.Anything, uint(9)).Return(errors.New("db gone"))
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "failed to add job to queue",
		},
		{
			name: "database failure",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {
				r.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "failed to add job to queue",
		},
		{
			name:       "context canceled",
			setupMocks: func(r *mocks.JobRepoMock, q *mocks.JobQueueMock) {},
			cancelCtx:  true,
			expectErr:  true,
			errStatus:  http.StatusRequestTimeout,
			errMessage: "request canceled or timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			q := new(mocks.JobQueueMock)
			tt.setupMocks(repo, q)

			rec := livetest.NewRecorder()
			svc := newService(repo, q, rec)

			ctx := context.Background()
			if tt.cancelCtx {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			resp, err := svc.SubmitJob(ctx)

			if tt.expectErr {
				assertAPIError(t, err, tt.errStatus, tt.errMessage)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint(7), resp.ID)
				assert.Equal(t, "JOB-4821-20250314092653589", resp.CustomID)
				assert.Equal(t, "Pending", resp.Status)
				assert.Nil(t, resp.LastAttempt)
			}

			if tt.expectEvent {
				assert.Equal(t, []string{"Pending"}, rec.Statuses())
			} else {
				assert.Zero(t, rec.Len())
			}

			repo.AssertExpectations(t)
			q.AssertExpectations(t)
		})
	}
}

func TestJobService_GetJob(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(*mocks.JobRepoMock)
		expectErr  bool
		errStatus  int
		errMessage string
	}{
		{
			name: "found",
			setupMock: func(r *mocks.JobRepoMock) {
				r.On("FindByID", mock.Anything, uint(1)).Return(&models.Job{ID: 1, CustomID: "JOB-1", Status: "In Progress", Retries: 1}, nil)
			},
		},
		{
			name: "not found",
			setupMock: func(r *mocks.JobRepoMock) {
				r.On("FindByID", mock.Anything, uint(1)).Return(nil, job.ErrNotFound)
			},
			expectErr:  true,
			errStatus:  http.StatusNotFound,
			errMessage: "job not found",
		},
		{
			name: "database error",
			setupMock: func(r *mocks.JobRepoMock) {
				r.On("FindByID", mock.Anything, uint(1)).Return(nil, errors.New("db down"))
			},
			expectErr:  true,
			errStatus:  http.StatusInternalServerError,
			errMessage: "failed to get job",
		},
		{
			name: "deadline exceeded",
			setupMock: func(r *mocks.JobRepoMock) {
				r.On("FindByID", mock.Anything, uint(1)).Return(nil, context.DeadlineExceeded)
			},
			expectErr:  true,
			errStatus:  http.StatusRequestTimeout,
			errMessage: "request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setupMock(repo)
			svc := job.NewJobService(repo, new(mocks.JobQueueMock))

			resp, err := svc.GetJob(context.Background(), 1)

			if tt.expectErr {
				assertAPIError(t, err, tt.errStatus, tt.errMessage)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "JOB-1", resp.CustomID)
				assert.Equal(t, 1, resp.Retries)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	tests := []struct {
		name          string
		page, limit   int
		wantPage      int
		wantLimit     int
		total         int64
		wantTotalPage int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: 10, total: 25, wantTotalPage: 3},
		{name: "explicit", page: 2, limit: 10, wantPage: 2, wantLimit: 10, total: 25, wantTotalPage: 3},
		{name: "exact multiple", page: 1, limit: 5, wantPage: 1, wantLimit: 5, total: 25, wantTotalPage: 5},
		{name: "empty table", page: 1, limit: 10, wantPage: 1, wantLimit: 10, total: 0, wantTotalPage: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			repo.On("List", mock.Anything, tt.wantPage, tt.wantLimit).
				Return([]models.Job{{ID: 2, CustomID: "JOB-2"}, {ID: 1, CustomID: "JOB-1"}}, tt.total, nil)

			svc := job.NewJobService(repo, new(mocks.JobQueueMock))
			resp, err := svc.ListJobs(context.Background(), tt.page, tt.limit)

			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantPage, resp.Pagination.CurrentPage)
			assert.Equal(t, tt.wantTotalPage, resp.Pagination.TotalPages)
			assert.Equal(t, tt.total, resp.Pagination.TotalJobs)
			require.Len(t, resp.Jobs, 2)
			assert.Equal(t, "JOB-2", resp.Jobs[0].CustomID)
			repo.AssertExpectations(t)
		})
	}

	t.Run("database error", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("List", mock.Anything, 1, 10).Return(nil, int64(0), errors.New("db down"))

		svc := job.NewJobService(repo, new(mocks.JobQueueMock))
		_, err := svc.ListJobs(context.Background(), 1, 10)

		assertAPIError(t, err, http.StatusInternalServerError, "failed to list jobs")
	})
}

func TestJobService_ListTransactions(t *testing.T) {
	msg := "Simulated job failure for retry test"

	t.Run("unknown job is not found", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("FindByID", mock.Anything, uint(42)).Return(nil, job.ErrNotFound)

		svc := job.NewJobService(repo, new(mocks.JobQueueMock))
		txs, err := svc.ListTransactions(context.Background(), 42)

		assertAPIError(t, err, http.StatusNotFound, "job not found")
		assert.Nil(t, txs)
		repo.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything)
	})

	t.Run("history", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("FindByID", mock.Anything, uint(1)).Return(&models.Job{ID: 1}, nil)
		repo.On("ListTransactions", mock.Anything, uint(1)).Return([]models.Transaction{
			{ID: 2, JobID: 1, CustomID: "JOB-1", Status: "Completed"},
			{ID: 1, JobID: 1, CustomID: "JOB-1", Status: "Failed", ErrorMessage: &msg},
		}, nil)

		svc := job.NewJobService(repo, new(mocks.JobQueueMock))
		txs, err := svc.ListTransactions(context.Background(), 1)

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "Completed", txs[0].Status)
		assert.Nil(t, txs[0].ErrorMessage)
		require.NotNil(t, txs[1].ErrorMessage)
		assert.Equal(t, msg, *txs[1].ErrorMessage)
	})

	t.Run("no attempts yet", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("FindByID", mock.Anything, uint(1)).Return(&models.Job{ID: 1}, nil)
		repo.On("ListTransactions", mock.Anything, uint(1)).Return([]models.Transaction{}, nil)

		svc := job.NewJobService(repo, new(mocks.JobQueueMock))
		txs, err := svc.ListTransactions(context.Background(), 1)

		require.NoError(t, err)
		assert.NotNil(t, txs)
		assert.Empty(t, txs)
	})
}

func TestJobService_QueueStats(t *testing.T) {
	q := new(mocks.JobQueueMock)
	q.On("Stats", mock.Anything).Return(queue.Stats{Ready: 4, Delayed: 2, Active: 1}, nil)

	svc := job.NewJobService(new(mocks.JobRepoMock), q)
	stats, err := svc.QueueStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Ready: 4, Delayed: 2, Active: 1}, *stats)

	failing := new(mocks.JobQueueMock)
	failing.On("Stats", mock.Anything).Return(queue.Stats{}, errors.New("redis down"))

	_, err = job.NewJobService(new(mocks.JobRepoMock), failing).QueueStats(context.Background())
	assertAPIError(t, err, http.StatusInternalServerError, "failed to read queue stats")
}

// Submission against the real repository and queue: the row is visible
// before the key is dequeueable, and a failed enqueue leaves no row behind.
func TestJobService_SubmitJob_EndToEnd(t *testing.T) {
	repo, _ := storetest.NewRepo(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.New(client, "submit-test")
	rec := livetest.NewRecorder()
	svc := job.NewJobService(repo, q, job.WithPublisher(rec))
	ctx := context.Background()

	resp, err := svc.SubmitJob(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^JOB-\d{4}-\d{17}$`, resp.CustomID)

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, resp.CustomID, d.Key)

	stored, err := repo.FindByCustomID(ctx, d.Key)
	require.NoError(t, err)
	assert.Equal(t, string(config.JobStatusPending), stored.Status)

	mr.Close()
	_, err = svc.SubmitJob(ctx)
	assertAPIError(t, err, http.StatusInternalServerError, "failed to add job to queue")

	list, err := svc.ListJobs(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Pagination.TotalJobs)
	assert.Equal(t, 1, rec.Len())
}
