package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/erducate-api/pkg/ai"
)

// ErrorKind classifies failures so handlers never inspect message text.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindPolicy     ErrorKind = "policy"
	KindUpstream   ErrorKind = "upstream"
	KindTimeout    ErrorKind = "timeout"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindForbidden  ErrorKind = "forbidden"
)

// Error is the typed failure returned by services. Two errors match under
// errors.Is when they share a Code, so sentinels can carry per-call messages.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Fields    map[string]string
	Detail    string
	Retryable bool
	Hint      string
	Disabled  bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithMessage returns a copy carrying a call-specific message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	if strings.TrimSpace(message) != "" {
		clone.Message = message
	}
	return &clone
}

// withUnsavedOutcome marks a rejection whose outcome could not be written back.
func (e *Error) withUnsavedOutcome(err error) *Error {
	clone := *e
	note := "outcome not saved: " + err.Error()
	if clone.Detail != "" {
		note = clone.Detail + "; " + note
	}
	clone.Detail = note
	clone.cause = errors.Join(e.cause, err)
	return &clone
}

func (e *Error) wrap(cause error) *Error {
	clone := *e
	clone.cause = cause
	if cause != nil {
		clone.Detail = cause.Error()
	}
	return &clone
}

var (
	ErrExerciseNotFound     = &Error{Kind: KindNotFound, Code: "exercise_not_found", Message: "exercise not found"}
	ErrSubmissionNotFound   = &Error{Kind: KindNotFound, Code: "submission_not_found", Message: "submission not found"}
	ErrExerciseNotActive    = &Error{Kind: KindPolicy, Code: "exercise_not_active", Message: "exercise is not open for submissions"}
	ErrPastDue              = &Error{Kind: KindPolicy, Code: "past_due", Message: "the due date for this exercise has passed"}
	ErrEditLimitReached     = &Error{Kind: KindPolicy, Code: "edit_limit_reached", Message: "maximum edits reached"}
	ErrGradingNotOpen       = &Error{Kind: KindPolicy, Code: "grading_not_open", Message: "grading opens after the due date", Disabled: true}
	ErrNotERD               = &Error{Kind: KindPolicy, Code: "not_erd", Message: "the answer scheme is not an entity-relationship diagram"}
	ErrNotERDRubric         = &Error{Kind: KindPolicy, Code: "not_erd_rubric", Message: "the rubric does not describe how to mark an entity-relationship diagram"}
	ErrExerciseLocked       = &Error{Kind: KindConflict, Code: "exercise_locked", Message: "published exercises only accept metadata edits"}
	ErrInvalidTransition    = &Error{Kind: KindConflict, Code: "invalid_transition", Message: "the requested status change is not allowed"}
	ErrUploadTooLarge       = &Error{Kind: KindValidation, Code: "file_too_large", Message: "file exceeds the 2MB limit"}
	ErrUploadTypeNotAllowed = &Error{Kind: KindValidation, Code: "file_type_not_allowed", Message: "file type not allowed"}
	ErrFileRequired         = &Error{Kind: KindValidation, Code: "file_required", Message: "file is required"}
	ErrForbidden            = &Error{Kind: KindForbidden, Code: "forbidden", Message: "you are not allowed to change this exercise"}
	ErrScoreExceedsMax      = &Error{Kind: KindValidation, Code: "grade_out_of_range", Message: "grade exceeds the exercise total marks"}
	ErrValidation           = &Error{Kind: KindValidation, Code: "validation_failed", Message: "validation failed"}
	ErrStorageFailed        = &Error{Kind: KindUpstream, Code: "storage_failed", Message: "the file could not be stored, please try again", Retryable: true}
	ErrDetectionFailed      = &Error{Kind: KindUpstream, Code: "detection_unavailable", Message: "the AI detection service is unavailable, please try again", Retryable: true}
	ErrDetectionMalformed   = &Error{Kind: KindUpstream, Code: "detection_malformed", Message: "the AI detection service returned an unreadable answer"}
	ErrDetectionTimeout     = &Error{Kind: KindTimeout, Code: "detection_timeout", Message: "AI detection timed out", Retryable: true, Hint: ai.TimeoutHint}
)

// AsError extracts a typed service error.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func fieldError(fields map[string]string) *Error {
	clone := *ErrValidation
	clone.Fields = fields
	return &clone
}

func singleFieldError(sentinel *Error, field, message string) *Error {
	clone := sentinel.WithMessage(message)
	clone.Fields = map[string]string{field: clone.Message}
	return clone
}

// detectionError maps gateway failures onto the timeout, upstream and malformed kinds.
func detectionError(err error) *Error {
	switch {
	case errors.Is(err, ai.ErrTimeout):
		return ErrDetectionTimeout.wrap(err)
	case errors.Is(err, ai.ErrMalformedResponse):
		return ErrDetectionMalformed.wrap(err)
	default:
		return ErrDetectionFailed.wrap(err)
	}
}

var boundedFields = map[string]string{
	"totalMarks": "totalMarks must be between 1 and 100",
}

// NewValidator builds a validator that reports json field names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "form", "query"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return validate
}

func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = describeFieldError(fe)
	}
	return fieldError(fields)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	if message, ok := boundedFields[field]; ok && (fe.Tag() == "min" || fe.Tag() == "max") {
		return message
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must match the format %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidationError converts validator failures into a field-keyed validation error.
// Other errors are returned unchanged.
func ValidationError(err error) error {
	return validationError(err)
}

// NewFieldError builds a validation error for the given field messages.
func NewFieldError(fields map[string]string) *Error {
	return fieldError(fields)
}
