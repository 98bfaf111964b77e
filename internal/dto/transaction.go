package dto

import (
	"time"

	"github.com/joshu-sajeev/jobtracker/internal/models"
)

type TransactionResponseDTO struct {
	ID           uint      `json:"id"`
	JobID        uint      `json:"jobId"`
	CustomID     string    `json:"customId"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"errorMessage"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewTransactionResponse(t models.Transaction) TransactionResponseDTO {
	return TransactionResponseDTO{
		ID:           t.ID,
		JobID:        t.JobID,
		CustomID:     t.CustomID,
		Status:       t.Status,
		ErrorMessage: t.ErrorMessage,
		Timestamp:    t.Timestamp,
	}
}
