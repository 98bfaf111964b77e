package dto

import (
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/models"
)

type JobResponseDTO struct {
	ID          uint       `json:"id"`
	CustomID    string     `json:"customId"`
	Status      string     `json:"status"`
	Retries     int        `json:"retries"`
	LastAttempt *time.Time `json:"lastAttempt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func NewJobResponse(j models.Job) JobResponseDTO {
	return JobResponseDTO{
		ID:          j.ID,
		CustomID:    j.CustomID,
		Status:      j.Status,
		Retries:     j.Retries,
		LastAttempt: j.LastAttempt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

type SubmitJobResponseDTO struct {
	Success bool           `json:"success"`
	Job     JobResponseDTO `json:"job"`
}

type ListJobsQuery struct {
	Page  int `form:"page" validate:"omitempty,gte=1"`
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

type PaginationDTO struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalJobs   int64 `json:"totalJobs"`
}

type JobListResponseDTO struct {
	Success    bool             `json:"success"`
	Jobs       []JobResponseDTO `json:"jobs"`
	Pagination PaginationDTO    `json:"pagination"`
}
