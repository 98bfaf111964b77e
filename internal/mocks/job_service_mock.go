package mocks

import (
	"context"

	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

var _ job.JobServiceInterface = (*JobServiceMock)(nil)

func (m *JobServiceMock) SubmitJob(ctx context.Context) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, page, limit int) (*dto.JobListResponseDTO, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobListResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListTransactions(ctx context.Context, jobID uint) ([]dto.TransactionResponseDTO, error) {
	args := m.Called(ctx, jobID)

	txs, _ := args.Get(0).([]dto.TransactionResponseDTO)
	return txs, args.Error(1)
}

func (m *JobServiceMock) QueueStats(ctx context.Context) (*queue.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Stats), args.Error(1)
}
