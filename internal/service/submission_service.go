package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/cache"
	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/observability"
	"github.com/noah-isme/erducate-api/internal/repository"
)

// SubmitInput is a student's upload for one exercise.
type SubmitInput struct {
	ClassID    string
	ExerciseID string
	File       *multipart.FileHeader
	Comments   string
}

// SubmissionService tracks student submissions, edit limits and grading.
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, input SubmitInput) (dto.SubmitResult, error)
	Grade(ctx context.Context, actor Actor, key models.SubmissionKey, payload dto.GradeRequest) (dto.SubmissionResponse, error)
	PublishGrade(ctx context.Context, actor Actor, key models.SubmissionKey) (dto.SubmissionResponse, error)
	Progress(ctx context.Context, actor Actor, key models.SubmissionKey) (dto.ProgressResponse, error)
	ListForExercise(ctx context.Context, actor Actor, classID, exerciseID string, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	ListForStudent(ctx context.Context, actor Actor, classID, studentID string) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	exercises   repository.ExerciseRepository
	submissions repository.SubmissionRepository
	progress    repository.ProgressRepository
	uploads     UploadService
	cache       *cache.ListingCache
	events      EventPublisher
	validator   *validator.Validate
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs the submission tracker.
func NewSubmissionService(
	exercises repository.ExerciseRepository,
	submissions repository.SubmissionRepository,
	progress repository.ProgressRepository,
	uploads UploadService,
	listingCache *cache.ListingCache,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		exercises:   exercises,
		submissions: submissions,
		progress:    progress,
		uploads:     uploads,
		cache:       listingCache,
		events:      events,
		validator:   validate,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/erducate-api/internal/service/submission"),
		now:         time.Now,
	}
}

// Submit stores a student's ERD. Every rejection happens before the upload,
// so a rejected attempt leaves the stored file, the submission and the progress untouched.
func (s *submissionService) Submit(ctx context.Context, actor Actor, input SubmitInput) (dto.SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.String("class.id", input.ClassID),
		attribute.String("exercise.id", input.ExerciseID),
		attribute.String("student.id", actor.ID),
	))
	defer span.End()

	result, outcome, err := s.submit(ctx, actor, input)
	observability.Submissions().WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return dto.SubmitResult{}, err
	}

	span.SetStatus(codes.Ok, outcome)
	return result, nil
}

func (s *submissionService) submit(ctx context.Context, actor Actor, input SubmitInput) (dto.SubmitResult, string, error) {
	if !actor.IsStudent() || strings.TrimSpace(actor.ID) == "" {
		return dto.SubmitResult{}, "forbidden", ErrForbidden.WithMessage("only students can submit answers")
	}

	if err := s.validator.Struct(dto.SubmitRequest{Comments: input.Comments}); err != nil {
		return dto.SubmitResult{}, "invalid", validationError(err)
	}

	exercise, err := s.loadExercise(ctx, input.ClassID, input.ExerciseID)
	if err != nil {
		return dto.SubmitResult{}, "not_found", err
	}
	if !exercise.IsActive() {
		return dto.SubmitResult{}, "not_active", ErrExerciseNotActive
	}

	now := s.now().UTC()
	if exercise.IsPastDue(now) {
		return dto.SubmitResult{}, "past_due", ErrPastDue
	}

	inspected, err := s.uploads.Inspect(input.File, PurposeSubmission)
	if err != nil {
		return dto.SubmitResult{}, "invalid_file", err
	}

	key := models.SubmissionKey{StudentID: actor.ID, ClassID: exercise.ClassID, ExerciseID: exercise.ID}

	progress, err := s.progress.Get(ctx, key)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		progress = models.Progress{
			StudentID:  key.StudentID,
			ClassID:    key.ClassID,
			ExerciseID: key.ExerciseID,
			MaxEdits:   models.MaxSubmissionEdits,
		}
	case err != nil:
		return dto.SubmitResult{}, "error", err
	}

	resubmission := progress.Submitted
	if !progress.CanResubmit() {
		return dto.SubmitResult{}, "edit_limit", ErrEditLimitReached
	}

	submission, err := s.submissions.Get(ctx, key)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = models.Submission{StudentID: key.StudentID, ClassID: key.ClassID, ExerciseID: key.ExerciseID}
	case err != nil:
		return dto.SubmitResult{}, "error", err
	}

	// The object is overwritten before the rows are written; a failed save
	// leaves the new file behind the previous record.
	stored, err := s.uploads.Store(ctx, inspected, SubmissionStorageKey(key.ClassID, key.ExerciseID, key.StudentID))
	if err != nil {
		return dto.SubmitResult{}, "storage_failed", err
	}

	submission.File = stored.FileRef()
	submission.Comments = s.policy.Sanitize(strings.TrimSpace(input.Comments))
	submission.SubmittedAt = now
	submission.Status = models.SubmissionStatusSubmitted
	submission.Grade = nil
	submission.Feedback = ""
	submission.GradedAt = nil
	submission.GradedBy = ""

	if resubmission {
		progress.EditCount++
	}
	progress.Submitted = true
	progress.MaxEdits = models.MaxSubmissionEdits
	progress.IsCompleted = false
	progress.FileURL = stored.URL
	progress.SubmittedAt = &now

	if err := s.submissions.SaveWithProgress(ctx, &submission, &progress); err != nil {
		return dto.SubmitResult{}, "error", err
	}

	s.cache.InvalidateClass(ctx, key.ClassID)
	s.events.Publish(ctx, Event{
		Type:       EventSubmissionSubmitted,
		ClassID:    key.ClassID,
		ExerciseID: key.ExerciseID,
		StudentID:  key.StudentID,
		ActorID:    actor.ID,
		Attributes: map[string]interface{}{
			"editCount":    progress.EditCount,
			"resubmission": resubmission,
		},
	})

	outcome := "accepted"
	if resubmission {
		outcome = "resubmitted"
	}
	s.logger.Info().
		Str("class_id", key.ClassID).
		Str("exercise_id", key.ExerciseID).
		Str("student_id", key.StudentID).
		Int("edit_count", progress.EditCount).
		Bool("overwritten", stored.Overwritten).
		Msg("submission " + outcome)

	return dto.SubmitResult{
		Accepted:       true,
		EditCount:      progress.EditCount,
		RemainingEdits: progress.RemainingEdits(),
		Overwritten:    stored.Overwritten,
		Submission:     dto.NewStudentSubmissionResponse(submission),
		Progress:       dto.NewProgressResponse(progress),
	}, outcome, nil
}

func (s *submissionService) Grade(ctx context.Context, actor Actor, key models.SubmissionKey, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, validationError(err)
	}

	exercise, err := s.loadGradable(ctx, actor, key)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if grade := *payload.Grade; grade > float64(exercise.TotalMarks) {
		return dto.SubmissionResponse{}, singleFieldError(ErrScoreExceedsMax, "grade",
			fmt.Sprintf("grade must be between 0 and %d", exercise.TotalMarks))
	}

	submission, err := s.loadSubmission(ctx, key)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission.Status == models.SubmissionStatusPublished {
		return dto.SubmissionResponse{}, ErrInvalidTransition.WithMessage("published grades cannot be changed")
	}

	feedback := submission.Feedback
	if payload.Feedback != nil {
		feedback = s.policy.Sanitize(strings.TrimSpace(*payload.Feedback))
	}

	if submission.Status == models.SubmissionStatusGraded &&
		submission.Grade != nil && *submission.Grade == *payload.Grade &&
		submission.Feedback == feedback {
		return dto.NewSubmissionResponse(submission), nil
	}

	gradedAt := s.now().UTC()
	grade := *payload.Grade
	submission.Grade = &grade
	submission.Feedback = feedback
	submission.Status = models.SubmissionStatusGraded
	submission.GradedAt = &gradedAt
	submission.GradedBy = actor.ID

	if err := s.submissions.SaveGrade(ctx, &submission, true); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.cache.InvalidateClass(ctx, key.ClassID)
	s.events.Publish(ctx, Event{
		Type:       EventSubmissionGraded,
		ClassID:    key.ClassID,
		ExerciseID: key.ExerciseID,
		StudentID:  key.StudentID,
		ActorID:    actor.ID,
		Attributes: map[string]interface{}{"grade": grade, "totalMarks": exercise.TotalMarks},
	})
	s.logger.Info().
		Str("exercise_id", key.ExerciseID).
		Str("student_id", key.StudentID).
		Float64("grade", grade).
		Msg("submission graded")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) PublishGrade(ctx context.Context, actor Actor, key models.SubmissionKey) (dto.SubmissionResponse, error) {
	if _, err := s.loadGradable(ctx, actor, key); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.loadSubmission(ctx, key)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	switch submission.Status {
	case models.SubmissionStatusPublished:
		return dto.NewSubmissionResponse(submission), nil
	case models.SubmissionStatusGraded:
	default:
		return dto.SubmissionResponse{}, ErrInvalidTransition.WithMessage("grade the submission before publishing it")
	}

	submission.Status = models.SubmissionStatusPublished
	if err := s.submissions.SaveGrade(ctx, &submission, true); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.cache.InvalidateClass(ctx, key.ClassID)
	s.events.Publish(ctx, Event{
		Type:       EventGradePublished,
		ClassID:    key.ClassID,
		ExerciseID: key.ExerciseID,
		StudentID:  key.StudentID,
		ActorID:    actor.ID,
		Attributes: map[string]interface{}{"grade": submission.Grade},
	})
	s.logger.Info().Str("exercise_id", key.ExerciseID).Str("student_id", key.StudentID).Msg("grade published")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Progress(ctx context.Context, actor Actor, key models.SubmissionKey) (dto.ProgressResponse, error) {
	if !actor.IsStaff() && actor.ID != key.StudentID {
		return dto.ProgressResponse{}, ErrForbidden.WithMessage("you can only view your own progress")
	}

	exercise, err := s.loadExercise(ctx, key.ClassID, key.ExerciseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	if !actor.IsStaff() && !exercise.IsActive() {
		return dto.ProgressResponse{}, ErrExerciseNotFound
	}

	progress, err := s.progress.Get(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NewProgressResponse(models.Progress{
				StudentID:  key.StudentID,
				ClassID:    key.ClassID,
				ExerciseID: key.ExerciseID,
				MaxEdits:   models.MaxSubmissionEdits,
			}), nil
		}
		return dto.ProgressResponse{}, err
	}

	return dto.NewProgressResponse(progress), nil
}

func (s *submissionService) ListForExercise(ctx context.Context, actor Actor, classID, exerciseID string, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden.WithMessage("only lecturers can list submissions")
	}
	if err := s.validator.Struct(filter); err != nil {
		return nil, validationError(err)
	}

	exercise, err := s.loadExercise(ctx, classID, exerciseID)
	if err != nil {
		return nil, err
	}

	items, err := s.submissions.ListByExercise(ctx, exercise.ClassID, exercise.ID, filter.Status)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(items), nil
}

func (s *submissionService) ListForStudent(ctx context.Context, actor Actor, classID, studentID string) ([]dto.SubmissionResponse, error) {
	if !actor.IsStaff() && actor.ID != studentID {
		return nil, ErrForbidden.WithMessage("you can only view your own submissions")
	}

	items, err := s.submissions.ListByStudent(ctx, strings.TrimSpace(classID), strings.TrimSpace(studentID))
	if err != nil {
		return nil, err
	}

	if actor.IsStaff() {
		return dto.NewSubmissionResponseSlice(items), nil
	}

	responses := make([]dto.SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewStudentSubmissionResponse(item))
	}
	return responses, nil
}

// loadGradable checks the grading window. Grading opens strictly after the due date.
func (s *submissionService) loadGradable(ctx context.Context, actor Actor, key models.SubmissionKey) (models.Exercise, error) {
	if !actor.IsStaff() {
		return models.Exercise{}, ErrForbidden.WithMessage("only lecturers can grade submissions")
	}

	exercise, err := s.loadExercise(ctx, key.ClassID, key.ExerciseID)
	if err != nil {
		return models.Exercise{}, err
	}
	if !actor.canManage(exercise.CreatedBy) {
		return models.Exercise{}, ErrForbidden
	}
	if !exercise.IsPastDue(s.now().UTC()) {
		return models.Exercise{}, ErrGradingNotOpen
	}

	return exercise, nil
}

func (s *submissionService) loadExercise(ctx context.Context, classID, exerciseID string) (models.Exercise, error) {
	exercise, err := s.exercises.GetByID(ctx, strings.TrimSpace(classID), strings.TrimSpace(exerciseID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exercise{}, ErrExerciseNotFound
		}
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (s *submissionService) loadSubmission(ctx context.Context, key models.SubmissionKey) (models.Submission, error) {
	submission, err := s.submissions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	return submission, nil
}
