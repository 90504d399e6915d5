package dto

import (
	"time"

	"github.com/noah-isme/erducate-api/internal/models"
)

// ActivityFilter narrows the class activity trail.
type ActivityFilter struct {
	ExerciseID string `query:"exerciseId" validate:"omitempty,max=64"`
	Type       string `query:"type" validate:"omitempty,oneof=exercise.published exercise.deleted submission.submitted submission.graded submission.grade_published"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	PageSize   int    `query:"pageSize" validate:"omitempty,min=1,max=100"`
}

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// ActivityResponse is one entry of the activity trail.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	EventID    string                 `json:"eventId"`
	Type       string                 `json:"type"`
	ClassID    string                 `json:"classId"`
	ExerciseID string                 `json:"exerciseId,omitempty"`
	StudentID  string                 `json:"studentId,omitempty"`
	ActorID    string                 `json:"actorId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// ActivityList wraps a page of activity entries.
type ActivityList struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         model.ID,
		EventID:    model.EventID,
		Type:       model.EventType,
		ClassID:    model.ClassID,
		ExerciseID: model.ExerciseID,
		StudentID:  model.StudentID,
		ActorID:    model.ActorID,
		Attributes: model.Attributes,
		OccurredAt: model.OccurredAt,
	}
}
