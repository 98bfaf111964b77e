package mocks

import (
	"context"

	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
	"github.com/stretchr/testify/mock"
)

type JobQueueMock struct {
	mock.Mock
}

var _ job.JobQueue = (*JobQueueMock)(nil)

func (m *JobQueueMock) Enqueue(ctx context.Context, key string, opts ...queue.EnqueueOption) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *JobQueueMock) Stats(ctx context.Context) (queue.Stats, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).(queue.Stats)
	return stats, args.Error(1)
}
