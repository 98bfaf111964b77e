package mocks

import (
	"context"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

var _ job.JobRepoInterface = (*JobRepoMock)(nil)

func (m *JobRepoMock) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepoMock) FindByID(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobRepoMock) FindByCustomID(ctx context.Context, customID string) (*models.Job, error) {
	args := m.Called(ctx, customID)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobRepoMock) Update(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepoMock) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepoMock) MarkTerminal(ctx context.Context, id uint, status config.JobStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, page, pageSize int) ([]models.Job, int64, error) {
	args := m.Called(ctx, page, pageSize)

	jobs, _ := args.Get(0).([]models.Job)
	total, _ := args.Get(1).(int64)
	return jobs, total, args.Error(2)
}

func (m *JobRepoMock) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *JobRepoMock) FindCompletedTransaction(ctx context.Context, jobID uint) (*models.Transaction, error) {
	args := m.Called(ctx, jobID)

	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *JobRepoMock) ListTransactions(ctx context.Context, jobID uint) ([]models.Transaction, error) {
	args := m.Called(ctx, jobID)

	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

// WithTx runs fn against the mock itself, so expectations set on the
// mock apply inside the transaction too.
func (m *JobRepoMock) WithTx(ctx context.Context, fn func(repo job.JobRepoInterface) error) error {
	m.Called(ctx)
	return fn(m)
}

func (m *JobRepoMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
