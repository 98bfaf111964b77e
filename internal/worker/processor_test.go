package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/mocks"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/joshu-sajeev/jobtracker/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func delivery(key string, attempt, max int) queue.Delivery {
	return queue.Delivery{Key: key, Attempt: attempt, MaxAttempts: max, Token: "t"}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "completed", worker.OutcomeCompleted.String())
	assert.Equal(t, "retry_scheduled", worker.OutcomeRetryScheduled.String())
	assert.Equal(t, "terminally_failed", worker.OutcomeTerminallyFailed.String())
	assert.Equal(t, "dropped", worker.OutcomeDropped.String())
	assert.Equal(t, "skipped", worker.OutcomeSkipped.String())
	assert.Equal(t, "outcome(42)", worker.Outcome(42).String())
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name         string
		seedStatus   config.JobStatus
		seed         bool
		exec         worker.Executor
		attempt      int
		want         worker.Outcome
		wantStatus   config.JobStatus
		wantRetries  int
		wantTxs      []string
		wantStatuses []string
	}{
		{
			name:         "first attempt succeeds",
			seed:         true,
			seedStatus:   config.JobStatusPending,
			exec:         &failFirst{},
			attempt:      1,
			want:         worker.OutcomeCompleted,
			wantStatus:   config.JobStatusCompleted,
			wantRetries:  0,
			wantTxs:      []string{"Completed"},
			wantStatuses: []string{"In Progress", "Completed"},
		},
		{
			name:         "non-final attempt fails",
			seed:         true,
			seedStatus:   config.JobStatusPending,
			exec:         &failFirst{n: 1},
			attempt:      1,
			want:         worker.OutcomeRetryScheduled,
			wantStatus:   config.JobStatusInProgress,
			wantRetries:  0,
			wantTxs:      []string{"Failed"},
			wantStatuses: []string{"In Progress", "In Progress"},
		},
		{
			name:         "final attempt fails",
			seed:         true,
			seedStatus:   config.JobStatusInProgress,
			exec:         &failFirst{n: 1},
			attempt:      3,
			want:         worker.OutcomeTerminallyFailed,
			wantStatus:   config.JobStatusFailed,
			wantRetries:  2,
			wantTxs:      []string{"Failed"},
			wantStatuses: []string{"In Progress", "Failed"},
		},
		{
			name:       "job already completed",
			seed:       true,
			seedStatus: config.JobStatusCompleted,
			exec:       &failFirst{},
			attempt:    2,
			want:       worker.OutcomeSkipped,
			wantStatus: config.JobStatusCompleted,
		},
		{
			name:       "job already failed",
			seed:       true,
			seedStatus: config.JobStatusFailed,
			exec:       &failFirst{},
			attempt:    1,
			want:       worker.OutcomeSkipped,
			wantStatus: config.JobStatusFailed,
		},
		{
			name:    "no job record",
			exec:    &failFirst{},
			attempt: 1,
			want:    worker.OutcomeDropped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			var seeded *models.Job
			if tt.seed {
				seeded = &models.Job{CustomID: "JOB-1", Status: string(tt.seedStatus)}
				require.NoError(t, h.repo.Create(ctx, seeded))
			}

			got := h.processor(nil, tt.exec).Process(ctx, delivery("JOB-1", tt.attempt, 3))
			assert.Equal(t, tt.want, got)

			if tt.wantStatuses == nil {
				assert.Zero(t, h.rec.Len())
			} else {
				assert.Equal(t, tt.wantStatuses, h.rec.Statuses())
			}
			if seeded == nil {
				return
			}

			stored := h.job(t, "JOB-1")
			assert.Equal(t, string(tt.wantStatus), stored.Status)
			assert.Equal(t, tt.wantRetries, stored.Retries)

			var statuses []string
			for _, tx := range h.transactions(t, seeded.ID) {
				statuses = append(statuses, tx.Status)
			}
			assert.Equal(t, tt.wantTxs, statuses)
		})
	}
}

func TestProcessor_FailureMessageRecordedVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j := &models.Job{CustomID: "JOB-1", Status: string(config.JobStatusPending)}
	require.NoError(t, h.repo.Create(ctx, j))

	exec := worker.ExecutorFunc(func(context.Context, *models.Job) error {
		return errors.New("upstream said: 503 Service Unavailable")
	})
	h.processor(nil, exec).Process(ctx, delivery("JOB-1", 1, 3))

	txs := h.transactions(t, j.ID)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].ErrorMessage)
	assert.Equal(t, "upstream said: 503 Service Unavailable", *txs[0].ErrorMessage)
	assert.Equal(t, h.clock.Now(), txs[0].Timestamp.UTC())
}

func TestProcessor_StartRecordsAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.Create(ctx, &models.Job{CustomID: "JOB-1", Status: string(config.JobStatusPending)}))

	var seen models.Job
	exec := worker.ExecutorFunc(func(_ context.Context, j *models.Job) error {
		seen = *h.job(t, j.CustomID)
		return nil
	})
	h.processor(nil, exec).Process(ctx, delivery("JOB-1", 2, 3))

	assert.Equal(t, string(config.JobStatusInProgress), seen.Status)
	assert.Equal(t, 1, seen.Retries)
	require.NotNil(t, seen.LastAttempt)
	assert.Equal(t, h.clock.Now(), seen.LastAttempt.UTC())
}

func TestProcessor_MarkExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j := &models.Job{CustomID: "JOB-1", Status: string(config.JobStatusInProgress)}
	require.NoError(t, h.repo.Create(ctx, j))

	p := h.processor(nil, &failFirst{})
	require.NoError(t, p.MarkExhausted(ctx, "JOB-1", worker.ErrLeaseExpired))
	require.NoError(t, p.MarkExhausted(ctx, "JOB-1", worker.ErrLeaseExpired))

	assert.Equal(t, string(config.JobStatusFailed), h.job(t, "JOB-1").Status)

	txs := h.transactions(t, j.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, "lease expired on final attempt", *txs[0].ErrorMessage)
	assert.Equal(t, []string{"Failed"}, h.rec.Statuses())

	err := p.MarkExhausted(ctx, "JOB-404", worker.ErrLeaseExpired)
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestProcessor_MarkExhausted_CompletedJobUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.Create(ctx, &models.Job{CustomID: "JOB-1", Status: string(config.JobStatusCompleted)}))

	require.NoError(t, h.processor(nil, &failFirst{}).MarkExhausted(ctx, "JOB-1", worker.ErrAttemptsExhausted))

	assert.Equal(t, string(config.JobStatusCompleted), h.job(t, "JOB-1").Status)
	assert.Zero(t, h.rec.Len())
}

func TestProcessor_BookkeepingFailures(t *testing.T) {
	running := func() *models.Job {
		return &models.Job{ID: 1, CustomID: "JOB-1", Status: string(config.JobStatusPending)}
	}

	tests := []struct {
		name    string
		setup   func(*mocks.JobRepoMock)
		exec    worker.Executor
		attempt int
		want    worker.Outcome
	}{
		{
			name: "lookup fails",
			setup: func(m *mocks.JobRepoMock) {
				m.On("FindByCustomID", mock.Anything, "JOB-1").Return(nil, errors.New("db down"))
			},
			exec:    &failFirst{},
			attempt: 1,
			want:    worker.OutcomeRetryScheduled,
		},
		{
			name: "failure write fails on final attempt",
			setup: func(m *mocks.JobRepoMock) {
				m.On("FindByCustomID", mock.Anything, "JOB-1").Return(running(), nil)
				m.On("Update", mock.Anything, mock.Anything).Return(nil)
				m.On("WithTx", mock.Anything)
				m.On("MarkTerminal", mock.Anything, uint(1), config.JobStatusFailed).Return(false, errors.New("db down"))
			},
			exec:    &failFirst{n: 1},
			attempt: 3,
			want:    worker.OutcomeRetryScheduled,
		},
		{
			name: "completion write fails",
			setup: func(m *mocks.JobRepoMock) {
				m.On("FindByCustomID", mock.Anything, "JOB-1").Return(running(), nil)
				m.On("Update", mock.Anything, mock.Anything).Return(nil)
				m.On("WithTx", mock.Anything)
				m.On("MarkTerminal", mock.Anything, uint(1), config.JobStatusCompleted).Return(true, nil)
				m.On("FindCompletedTransaction", mock.Anything, uint(1)).Return(nil, job.ErrNotFound)
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
					return tx.Status == string(config.JobStatusCompleted)
				})).Return(errors.New("disk full"))
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
					return tx.Status == string(config.JobStatusFailed) && tx.ErrorMessage != nil && *tx.ErrorMessage == "disk full"
				})).Return(nil)
			},
			exec:    &failFirst{},
			attempt: 1,
			want:    worker.OutcomeRetryScheduled,
		},
		{
			name: "job turned terminal before start",
			setup: func(m *mocks.JobRepoMock) {
				m.On("FindByCustomID", mock.Anything, "JOB-1").Return(running(), nil)
				m.On("Update", mock.Anything, mock.Anything).Return(job.ErrTerminal)
			},
			exec:    &failFirst{},
			attempt: 1,
			want:    worker.OutcomeSkipped,
		},
		{
			name: "completion already recorded",
			setup: func(m *mocks.JobRepoMock) {
				m.On("FindByCustomID", mock.Anything, "JOB-1").Return(running(), nil)
				m.On("Update", mock.Anything, mock.Anything).Return(nil)
				m.On("WithTx", mock.Anything)
				m.On("MarkTerminal", mock.Anything, uint(1), config.JobStatusCompleted).Return(false, nil)
			},
			exec:    &failFirst{},
			attempt: 1,
			want:    worker.OutcomeSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setup(repo)

			p := worker.NewProcessor(repo, tt.exec)
			assert.Equal(t, tt.want, p.Process(context.Background(), delivery("JOB-1", tt.attempt, 3)))
			repo.AssertExpectations(t)
		})
	}
}
