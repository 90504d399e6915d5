package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is one lifecycle event of a class, kept as an audit trail for lecturers.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	EventID    string            `gorm:"size:36;uniqueIndex" json:"event_id"`
	EventType  string            `gorm:"size:64;not null;index" json:"event_type"`
	ClassID    string            `gorm:"size:64;not null;index" json:"class_id"`
	ExerciseID string            `gorm:"size:36;index" json:"exercise_id"`
	StudentID  string            `gorm:"size:64" json:"student_id"`
	ActorID    string            `gorm:"size:64" json:"actor_id"`
	Attributes datatypes.JSONMap `gorm:"type:json" json:"attributes"`
	OccurredAt time.Time         `gorm:"index" json:"occurred_at"`
	CreatedAt  time.Time         `json:"created_at"`
}
