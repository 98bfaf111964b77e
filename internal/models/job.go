package models

import (
	"time"
)

type Job struct {
	ID          uint       `gorm:"primaryKey;autoIncrement"`
	CustomID    string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status      string     `gorm:"type:varchar(32);not null;default:'Pending'"`
	Retries     int        `gorm:"default:0;not null"`
	LastAttempt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
