package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/joshu-sajeev/jobtracker/internal/models"
	"github.com/joshu-sajeev/jobtracker/internal/queue"
)

// JobRepoInterface defines the contract for the job store and the
// transaction log.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, id uint) (*models.Job, error)
	FindByCustomID(ctx context.Context, customID string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	Delete(ctx context.Context, id uint) error
	MarkTerminal(ctx context.Context, id uint, status config.JobStatus) (bool, error)
	List(ctx context.Context, page, pageSize int) ([]models.Job, int64, error)

	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	FindCompletedTransaction(ctx context.Context, jobID uint) (*models.Transaction, error)
	ListTransactions(ctx context.Context, jobID uint) ([]models.Transaction, error)

	// WithTx runs fn against a repository bound to a single database
	// transaction. Returning an error from fn rolls it back.
	WithTx(ctx context.Context, fn func(repo JobRepoInterface) error) error
	Ping(ctx context.Context) error
}

// JobQueue is the part of the durable queue the submission path needs.
type JobQueue interface {
	Enqueue(ctx context.Context, key string, opts ...queue.EnqueueOption) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	SubmitJob(ctx context.Context) (*dto.JobResponseDTO, error)
	GetJob(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, page, limit int) (*dto.JobListResponseDTO, error)
	ListTransactions(ctx context.Context, jobID uint) ([]dto.TransactionResponseDTO, error)
	QueueStats(ctx context.Context) (*queue.Stats, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Submit(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Transactions(c *gin.Context)
	Stats(c *gin.Context)
}
