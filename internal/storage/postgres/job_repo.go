package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// Create inserts a new job record. A duplicate custom ID is reported as
// job.ErrConflict; the gorm connection must be opened with TranslateError
// so the driver error is mapped to gorm.ErrDuplicatedKey.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create job %s: %w", j.CustomID, job.ErrConflict)
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// FindByID retrieves a single job record by its surrogate ID.
func (r *JobRepository) FindByID(ctx context.Context, id uint) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %d: %w", id, job.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// FindByCustomID retrieves a job by the key it was enqueued under.
func (r *JobRepository) FindByCustomID(ctx context.Context, customID string) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "custom_id = ?", customID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", customID, job.ErrNotFound)
		}
		return nil, fmt.Errorf("get job by custom id: %w", err)
	}
	return &j, nil
}

// Update persists status, retries and last attempt of a non-terminal job.
// The write is guarded on the stored status so a job that already reached
// Completed or Failed is never moved back; in that case job.ErrTerminal is
// returned.
func (r *JobRepository) Update(ctx context.Context, j *models.Job) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", j.ID, terminalStatuses()).
		Updates(map[string]any{
			"status":       j.Status,
			"retries":      j.Retries,
			"last_attempt": j.LastAttempt,
		})
	if res.Error != nil {
		return fmt.Errorf("update job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update job %d: %w", j.ID, job.ErrTerminal)
	}
	return nil
}

// Delete removes a job that never reached the queue. It refuses to delete
// a job that already has transactions.
func (r *JobRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND NOT EXISTS (SELECT 1 FROM transactions WHERE transactions.job_id = jobs.id)", id).
		Delete(&models.Job{})
	if res.Error != nil {
		return fmt.Errorf("delete job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete job %d: %w", id, job.ErrNotFound)
	}
	return nil
}

// MarkTerminal moves a job to Completed or Failed if it is not terminal
// yet. It reports whether this call performed the transition; a second
// terminal write is a no-op and returns false.
func (r *JobRepository) MarkTerminal(ctx context.Context, id uint, status config.JobStatus) (bool, error) {
	if !config.IsTerminal(status) {
		return false, fmt.Errorf("mark terminal: %q is not a terminal status", status)
	}

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses()).
		Update("status", string(status))
	if res.Error != nil {
		return false, fmt.Errorf("mark terminal: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List returns one page of jobs, newest first, and the total job count.
// Pages are 1-based.
func (r *JobRepository) List(ctx context.Context, page, pageSize int) ([]models.Job, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Job{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

// WithTx runs fn inside a database transaction.
func (r *JobRepository) WithTx(ctx context.Context, fn func(repo job.JobRepoInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&JobRepository{db: tx})
	})
}

// Ping checks that the database is reachable.
func (r *JobRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func terminalStatuses() []string {
	out := make([]string, len(config.TerminalStatuses))
	for i, s := range config.TerminalStatuses {
		out[i] = string(s)
	}
	return out
}
