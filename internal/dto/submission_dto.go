package dto

import (
	"time"

	"github.com/noah-isme/erducate-api/internal/models"
)

// SubmitRequest carries the optional text fields of a student submission.
type SubmitRequest struct {
	Comments string `form:"comments" json:"comments" validate:"max=2000"`
}

// GradeRequest scores a submission.
type GradeRequest struct {
	Grade    *float64 `json:"grade" validate:"required,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionFilter narrows the lecturer's submission list.
type SubmissionFilter struct {
	Status string `query:"status" validate:"omitempty,oneof=submitted graded published"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID          uint          `json:"id"`
	StudentID   string        `json:"studentId"`
	ClassID     string        `json:"classId"`
	ExerciseID  string        `json:"exerciseId"`
	File        *FileResponse `json:"file,omitempty"`
	Comments    string        `json:"comments"`
	SubmittedAt time.Time     `json:"submittedAt"`
	Status      string        `json:"status"`
	Grade       *float64      `json:"grade"`
	Feedback    string        `json:"feedback,omitempty"`
	GradedAt    *time.Time    `json:"gradedAt,omitempty"`
	GradedBy    string        `json:"gradedBy,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:          model.ID,
		StudentID:   model.StudentID,
		ClassID:     model.ClassID,
		ExerciseID:  model.ExerciseID,
		File:        NewFileResponse(model.File),
		Comments:    model.Comments,
		SubmittedAt: model.SubmittedAt,
		Status:      model.Status,
		Grade:       model.Grade,
		Feedback:    model.Feedback,
		GradedAt:    model.GradedAt,
		GradedBy:    model.GradedBy,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewStudentSubmissionResponse hides the grade until it has been published.
func NewStudentSubmissionResponse(model models.Submission) SubmissionResponse {
	response := NewSubmissionResponse(model)
	if model.Status != models.SubmissionStatusPublished {
		response.Grade = nil
		response.Feedback = ""
		response.GradedAt = nil
		response.GradedBy = ""
		if model.IsGraded() {
			response.Status = models.SubmissionStatusSubmitted
		}
	}
	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}

// ProgressResponse summarizes a student's standing on one exercise.
type ProgressResponse struct {
	StudentID      string     `json:"studentId"`
	ClassID        string     `json:"classId"`
	ExerciseID     string     `json:"exerciseId"`
	Submitted      bool       `json:"submitted"`
	EditCount      int        `json:"editCount"`
	MaxEdits       int        `json:"maxEdits"`
	RemainingEdits int        `json:"remainingEdits"`
	CanResubmit    bool       `json:"canResubmit"`
	IsCompleted    bool       `json:"isCompleted"`
	FileURL        string     `json:"fileUrl,omitempty"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewProgressResponse converts a Progress model into a DTO.
func NewProgressResponse(model models.Progress) ProgressResponse {
	maxEdits := model.MaxEdits
	if maxEdits <= 0 {
		maxEdits = models.MaxSubmissionEdits
	}
	return ProgressResponse{
		StudentID:      model.StudentID,
		ClassID:        model.ClassID,
		ExerciseID:     model.ExerciseID,
		Submitted:      model.Submitted,
		EditCount:      model.EditCount,
		MaxEdits:       maxEdits,
		RemainingEdits: model.RemainingEdits(),
		CanResubmit:    model.CanResubmit(),
		IsCompleted:    model.IsCompleted,
		FileURL:        model.FileURL,
		SubmittedAt:    model.SubmittedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// SubmitResult is the outcome of an accepted submission.
type SubmitResult struct {
	Accepted       bool               `json:"accepted"`
	EditCount      int                `json:"editCount"`
	RemainingEdits int                `json:"remainingEdits"`
	Overwritten    bool               `json:"overwritten"`
	Submission     SubmissionResponse `json:"submission"`
	Progress       ProgressResponse   `json:"progress"`
}
