package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/erducate-api/internal/models"
)

const (
	// DueDateLayout is the calendar part of a due date.
	DueDateLayout = "2006-01-02"
	// DueTimeLayout is the clock part of a due date.
	DueTimeLayout = "15:04"
)

// ExerciseRequest carries the lecturer form fields. Every field is optional
// so drafts can be saved half-filled; publish enforces the required set.
type ExerciseRequest struct {
	Title       *string `form:"title" json:"title" validate:"omitempty,max=255"`
	Description *string `form:"description" json:"description" validate:"omitempty,max=10000"`
	DueDate     *string `form:"dueDate" json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	DueTime     *string `form:"dueTime" json:"dueTime" validate:"omitempty,datetime=15:04"`
	TotalMarks  *int    `form:"totalMarks" json:"totalMarks" validate:"omitempty,min=1,max=100"`
	RubricText  *string `form:"rubricText" json:"rubricText" validate:"omitempty,max=20000"`
}

// ExerciseUpdateRequest edits the metadata of a published exercise.
type ExerciseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,min=1,max=10000"`
	DueDate     *string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	DueTime     *string `json:"dueTime" validate:"omitempty,datetime=15:04"`
	TotalMarks  *int    `json:"totalMarks" validate:"omitempty,min=1,max=100"`
}

// ExerciseFilter narrows exercise listings.
type ExerciseFilter struct {
	Status string `query:"status" validate:"omitempty,oneof=draft ai_reviewed active"`
}

// ApproveRequest carries the lecturer-reviewed element list.
type ApproveRequest struct {
	Elements []models.ElementPayload `json:"elements"`
}

// FileResponse describes a stored file.
type FileResponse struct {
	URL          string `json:"url"`
	StorageKey   string `json:"storageKey"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// NewFileResponse converts a file reference; it returns nil when nothing is attached.
func NewFileResponse(ref models.FileRef) *FileResponse {
	if ref.IsZero() {
		return nil
	}
	return &FileResponse{
		URL:          ref.URL,
		StorageKey:   ref.StorageKey,
		OriginalName: ref.OriginalName,
		Size:         ref.Size,
		MimeType:     ref.MimeType,
		Width:        ref.Width,
		Height:       ref.Height,
	}
}

// ExerciseResponse is the serialized representation returned to API clients.
type ExerciseResponse struct {
	ID               string                  `json:"id"`
	ClassID          string                  `json:"classId"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	DueDate          *time.Time              `json:"dueDate"`
	TotalMarks       int                     `json:"totalMarks"`
	RubricText       string                  `json:"rubricText,omitempty"`
	RubricStructured json.RawMessage         `json:"rubricStructured,omitempty"`
	RubricFile       *FileResponse           `json:"rubricFile,omitempty"`
	AnswerScheme     *FileResponse           `json:"answerScheme,omitempty"`
	Status           string                  `json:"status"`
	DetectedElements []models.ElementPayload `json:"detectedElements,omitempty"`
	CorrectAnswer    []models.ElementPayload `json:"correctAnswer,omitempty"`
	DetectionReason  string                  `json:"detectionReason,omitempty"`
	CreatedBy        string                  `json:"createdBy"`
	ApprovedAt       *time.Time              `json:"approvedAt,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// NewExerciseResponse converts a model into the lecturer view.
func NewExerciseResponse(model models.Exercise) ExerciseResponse {
	response := ExerciseResponse{
		ID:               model.ID,
		ClassID:          model.ClassID,
		Title:            model.Title,
		Description:      model.Description,
		DueDate:          model.DueDate,
		TotalMarks:       model.TotalMarks,
		RubricText:       model.RubricText,
		RubricFile:       NewFileResponse(model.RubricFile),
		AnswerScheme:     NewFileResponse(model.AnswerScheme),
		Status:           model.Status,
		DetectedElements: ElementPayloads(model.DetectedElements),
		CorrectAnswer:    ElementPayloads(model.CorrectAnswer),
		DetectionReason:  model.DetectionReason,
		CreatedBy:        model.CreatedBy,
		ApprovedAt:       model.ApprovedAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if len(model.RubricStructured) > 0 {
		response.RubricStructured = json.RawMessage(model.RubricStructured)
	}
	return response
}

// NewStudentExerciseResponse converts a model into the student view, which
// never includes the answer scheme, the rubric analysis or the correct answer.
func NewStudentExerciseResponse(model models.Exercise) ExerciseResponse {
	return ExerciseResponse{
		ID:          model.ID,
		ClassID:     model.ClassID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		TotalMarks:  model.TotalMarks,
		RubricText:  model.RubricText,
		Status:      model.Status,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewExerciseResponseSlice converts a slice of models into DTOs.
func NewExerciseResponseSlice(exercises []models.Exercise, student bool) []ExerciseResponse {
	responses := make([]ExerciseResponse, 0, len(exercises))
	for _, exercise := range exercises {
		if student {
			responses = append(responses, NewStudentExerciseResponse(exercise))
			continue
		}
		responses = append(responses, NewExerciseResponse(exercise))
	}
	return responses
}

// ElementPayloads flattens an element set for the wire.
func ElementPayloads(set models.ElementSet) []models.ElementPayload {
	if len(set) == 0 {
		return nil
	}
	payloads := make([]models.ElementPayload, 0, len(set))
	for _, element := range set {
		payloads = append(payloads, models.PayloadFor(element))
	}
	return payloads
}

// ReviewSummary partitions detected elements for the lecturer review screen.
type ReviewSummary struct {
	ExerciseID   string                  `json:"exerciseId"`
	Status       string                  `json:"status"`
	Threshold    int                     `json:"threshold"`
	AutoAccepted []models.ElementPayload `json:"autoAccepted"`
	NeedsReview  []models.ElementPayload `json:"needsReview"`
	Counts       map[string]int          `json:"counts"`
}

// NewReviewSummary builds the review partition for an exercise.
func NewReviewSummary(model models.Exercise) ReviewSummary {
	accepted, review := model.DetectedElements.Partition()
	summary := ReviewSummary{
		ExerciseID:   model.ID,
		Status:       model.Status,
		Threshold:    models.ReviewConfidenceThreshold,
		AutoAccepted: ElementPayloads(accepted),
		NeedsReview:  ElementPayloads(review),
		Counts: map[string]int{
			string(models.ElementTypeEntity):       model.DetectedElements.Count(models.ElementTypeEntity),
			string(models.ElementTypeRelationship): model.DetectedElements.Count(models.ElementTypeRelationship),
			string(models.ElementTypeAttribute):    model.DetectedElements.Count(models.ElementTypeAttribute),
		},
	}
	if summary.AutoAccepted == nil {
		summary.AutoAccepted = []models.ElementPayload{}
	}
	if summary.NeedsReview == nil {
		summary.NeedsReview = []models.ElementPayload{}
	}
	return summary
}

// PublishResult is the outcome of a publish attempt. On rejection Success is
// false, Message explains why and Exercise holds the preserved draft.
type PublishResult struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Exercise *ExerciseResponse `json:"exercise,omitempty"`
	Review   *ReviewSummary    `json:"review,omitempty"`
}
