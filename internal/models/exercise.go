package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Exercise lifecycle states. ExerciseStatusAIPending only exists while a
// publish attempt is waiting on detection and is never persisted.
const (
	ExerciseStatusDraft      = "draft"
	ExerciseStatusAIPending  = "ai_pending"
	ExerciseStatusAIReviewed = "ai_reviewed"
	ExerciseStatusActive     = "active"
)

var exerciseTransitions = map[string][]string{
	ExerciseStatusDraft:      {ExerciseStatusDraft, ExerciseStatusAIPending},
	ExerciseStatusAIPending:  {ExerciseStatusDraft, ExerciseStatusAIReviewed},
	ExerciseStatusAIReviewed: {ExerciseStatusDraft, ExerciseStatusAIPending, ExerciseStatusActive},
	ExerciseStatusActive:     {ExerciseStatusActive},
}

// CanTransition reports whether an exercise may move between the two states.
func CanTransition(from, to string) bool {
	for _, candidate := range exerciseTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// FileRef describes an object stored on the media host.
type FileRef struct {
	URL          string `gorm:"size:512" json:"url"`
	StorageKey   string `gorm:"size:255" json:"storage_key"`
	OriginalName string `gorm:"size:255" json:"original_name"`
	Size         int64  `json:"size"`
	MimeType     string `gorm:"size:128" json:"mime_type"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// IsZero reports whether no file has been attached.
func (f FileRef) IsZero() bool {
	return f.URL == "" && f.StorageKey == ""
}

// Exercise is an ERD exercise owned by a class.
type Exercise struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	ClassID          string         `gorm:"size:64;not null;index" json:"class_id"`
	Title            string         `gorm:"size:255" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	DueDate          *time.Time     `json:"due_date"`
	TotalMarks       int            `json:"total_marks"`
	RubricText       string         `gorm:"type:text" json:"rubric_text"`
	RubricStructured datatypes.JSON `gorm:"type:json" json:"rubric_structured"`
	RubricFile       FileRef        `gorm:"embedded;embeddedPrefix:rubric_file_" json:"rubric_file"`
	AnswerScheme     FileRef        `gorm:"embedded;embeddedPrefix:answer_scheme_" json:"answer_scheme"`
	Status           string         `gorm:"size:32;not null;index" json:"status"`
	DetectedElements ElementSet     `gorm:"type:text" json:"detected_elements"`
	CorrectAnswer    ElementSet     `gorm:"type:text" json:"correct_answer"`
	DetectionReason  string         `gorm:"type:text" json:"detection_reason"`
	CreatedBy        string         `gorm:"size:64;index" json:"created_by"`
	ApprovedAt       *time.Time     `json:"approved_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the exercise identifier.
func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = ExerciseStatusDraft
	}
	return nil
}

// IsActive reports whether the exercise is published to students.
func (e Exercise) IsActive() bool {
	return e.Status == ExerciseStatusActive
}

// IsPastDue returns true once the reference time is after the due date.
func (e Exercise) IsPastDue(reference time.Time) bool {
	return e.DueDate != nil && reference.After(*e.DueDate)
}
