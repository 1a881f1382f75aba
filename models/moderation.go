package models

import (
	"time"
)

const ModerationActionTakedown = "takedown"

// ModerationAction is an operator action against an account or a record. An
// action is active until ReversedAt is set.
type ModerationAction struct {
	ID           uint64    `gorm:"primaryKey"`
	Action       string    `gorm:"not null"`
	SubjectDid   string    `gorm:"not null;index"`
	SubjectUri   *string   `gorm:"index"`
	Reason       string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	CreatedByDid string    `gorm:"not null"`
	ReversedAt   *time.Time
}
