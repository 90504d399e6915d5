package ai

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrTimeout indicates the image fetch or model call exceeded its budget.
	ErrTimeout = errors.New("ai detection timed out")
	// ErrUnavailable indicates the model endpoint could not be reached or rejected the call.
	ErrUnavailable = errors.New("ai detection service unavailable")
	// ErrMalformedResponse indicates the model answered with something other than the expected JSON.
	ErrMalformedResponse = errors.New("ai detection returned a malformed response")
)

// TimeoutHint is surfaced to users when detection times out.
const TimeoutHint = "try uploading a smaller or clearer image"

// DetectedElement is one ERD element as reported by the model.
type DetectedElement struct {
	ID            string  `json:"id,omitempty"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	SubType       string  `json:"subType"`
	Confidence    float64 `json:"confidence"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	BelongsTo     string  `json:"belongsTo,omitempty"`
	BelongsToType string  `json:"belongsToType,omitempty"`
}

// ERDDetection is the result of classifying an answer-scheme image.
type ERDDetection struct {
	IsERD    bool              `json:"isERD"`
	Reason   string            `json:"reason,omitempty"`
	Elements []DetectedElement `json:"elements,omitempty"`
}

// RubricDetection is the result of classifying rubric text.
type RubricDetection struct {
	IsERDRubric bool            `json:"isERDRubric"`
	Reason      string          `json:"reason,omitempty"`
	Structured  json.RawMessage `json:"structured,omitempty"`
}

// Detector classifies ERD images and rubric text.
type Detector interface {
	DetectERD(ctx context.Context, imageURL string) (ERDDetection, error)
	DetectRubric(ctx context.Context, rubricText string) (RubricDetection, error)
}
