package models

import "time"

// Transaction is the append-only record of one attempt outcome.
type Transaction struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	JobID        uint      `gorm:"not null;index"`
	CustomID     string    `gorm:"type:varchar(64);not null"`
	Status       string    `gorm:"type:varchar(32);not null"`
	ErrorMessage *string   `gorm:"type:text"`
	Timestamp    time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
