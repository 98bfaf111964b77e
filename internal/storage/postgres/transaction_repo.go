package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppendTransaction inserts an attempt outcome. Transactions are never
// updated or deleted afterwards.
func (r *JobRepository) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// FindCompletedTransaction returns the Completed transaction of a job,
// or job.ErrNotFound if completion has not been recorded.
func (r *JobRepository) FindCompletedTransaction(ctx context.Context, jobID uint) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, string(config.JobStatusCompleted)).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("completed transaction for job %d: %w", jobID, job.ErrNotFound)
		}
		return nil, fmt.Errorf("find completed transaction: %w", err)
	}
	return &t, nil
}

// ListTransactions returns every transaction of a job, newest first.
func (r *JobRepository) ListTransactions(ctx context.Context, jobID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order("id DESC").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
