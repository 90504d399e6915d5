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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/cache"
	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/observability"
	"github.com/noah-isme/erducate-api/internal/repository"
	"github.com/noah-isme/erducate-api/pkg/ai"
)

const (
	answerSchemeField = "answer_scheme"
	rubricFileField   = "rubric"

	defaultDueHour   = 23
	defaultDueMinute = 59
)

// ExerciseFiles carries the optional lecturer uploads of a draft.
type ExerciseFiles struct {
	AnswerScheme *multipart.FileHeader
	Rubric       *multipart.FileHeader
}

// ExerciseService drives the exercise lifecycle from draft to active.
type ExerciseService interface {
	SaveDraft(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseRequest, files ExerciseFiles) (dto.ExerciseResponse, error)
	Publish(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseRequest, files ExerciseFiles) (dto.PublishResult, error)
	Review(ctx context.Context, actor Actor, classID, id string) (dto.ReviewSummary, error)
	Approve(ctx context.Context, actor Actor, classID, id string, payload dto.ApproveRequest) (dto.ExerciseResponse, error)
	Update(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseUpdateRequest) (dto.ExerciseResponse, error)
	UpdateCorrectAnswer(ctx context.Context, actor Actor, classID, id string, payload dto.ApproveRequest) (dto.ExerciseResponse, error)
	AttachFile(ctx context.Context, actor Actor, classID, id string, purpose UploadPurpose, file *multipart.FileHeader) (UploadResult, error)
	Get(ctx context.Context, actor Actor, classID, id string) (dto.ExerciseResponse, error)
	List(ctx context.Context, actor Actor, classID string, filter dto.ExerciseFilter) ([]dto.ExerciseResponse, error)
	Delete(ctx context.Context, actor Actor, classID, id string) error
}

type exerciseService struct {
	repo        repository.ExerciseRepository
	submissions repository.SubmissionRepository
	uploads     UploadService
	detector    ai.Detector
	cache       *cache.ListingCache
	events      EventPublisher
	validator   *validator.Validate
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewExerciseService wires the lifecycle service.
func NewExerciseService(
	repo repository.ExerciseRepository,
	submissions repository.SubmissionRepository,
	uploads UploadService,
	detector ai.Detector,
	listingCache *cache.ListingCache,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ExerciseService {
	return &exerciseService{
		repo:        repo,
		submissions: submissions,
		uploads:     uploads,
		detector:    detector,
		cache:       listingCache,
		events:      events,
		validator:   validate,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "exercise_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/erducate-api/internal/service/exercise"),
		now:         time.Now,
	}
}

func (s *exerciseService) SaveDraft(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseRequest, files ExerciseFiles) (dto.ExerciseResponse, error) {
	exercise, err := s.saveDraft(ctx, actor, classID, id, payload, files)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	return dto.NewExerciseResponse(*exercise), nil
}

func (s *exerciseService) saveDraft(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseRequest, files ExerciseFiles) (*models.Exercise, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}

	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, singleFieldError(ErrValidation, "classId", "classId is required")
	}

	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err)
	}

	// Files are checked before anything is written so a bad upload mutates nothing.
	scheme, rubric, err := s.inspectFiles(files)
	if err != nil {
		return nil, err
	}

	exercise := &models.Exercise{ClassID: classID, Status: models.ExerciseStatusDraft, CreatedBy: actor.ID}
	isNew := strings.TrimSpace(id) == ""
	if !isNew {
		existing, err := s.load(ctx, classID, id)
		if err != nil {
			return nil, err
		}
		if !actor.canManage(existing.CreatedBy) {
			return nil, ErrForbidden
		}
		if existing.IsActive() {
			return nil, ErrExerciseLocked
		}
		exercise = &existing
	}

	s.applyDraftFields(exercise, payload)

	s.discardDetection(exercise)

	if isNew {
		if err := s.repo.Create(ctx, exercise); err != nil {
			return nil, err
		}
	}

	if scheme != nil {
		stored, err := s.uploads.Store(ctx, scheme, ExerciseFieldStorageKey(classID, exercise.ID, answerSchemeField))
		if err != nil {
			return nil, err
		}
		exercise.AnswerScheme = stored.FileRef()
	}
	if rubric != nil {
		stored, err := s.uploads.Store(ctx, rubric, ExerciseFieldStorageKey(classID, exercise.ID, rubricFileField))
		if err != nil {
			return nil, err
		}
		exercise.RubricFile = stored.FileRef()
	}

	if !isNew || scheme != nil || rubric != nil {
		if err := s.repo.Update(ctx, exercise); err != nil {
			return nil, err
		}
	}

	s.cache.InvalidateClass(ctx, classID)
	s.logger.Info().
		Str("class_id", classID).
		Str("exercise_id", exercise.ID).
		Bool("created", isNew).
		Msg("exercise draft saved")

	return exercise, nil
}

// AttachFile replaces the answer scheme or rubric file of a draft the actor owns.
// The file lands on the exercise's own key and the record points at it.
func (s *exerciseService) AttachFile(ctx context.Context, actor Actor, classID, id string, purpose UploadPurpose, file *multipart.FileHeader) (UploadResult, error) {
	var field string
	switch purpose {
	case PurposeAnswerScheme:
		field = answerSchemeField
	case PurposeRubric:
		field = rubricFileField
	default:
		return UploadResult{}, singleFieldError(ErrValidation, "uploadType", "uploadType must be answer_scheme or rubric")
	}

	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return UploadResult{}, err
	}
	if exercise.IsActive() {
		return UploadResult{}, ErrExerciseLocked
	}

	inspected, err := s.uploads.Inspect(file, purpose)
	if err != nil {
		return UploadResult{}, err
	}

	stored, err := s.uploads.Store(ctx, inspected, ExerciseFieldStorageKey(exercise.ClassID, exercise.ID, field))
	if err != nil {
		return UploadResult{}, err
	}

	if purpose == PurposeAnswerScheme {
		exercise.AnswerScheme = stored.FileRef()
	} else {
		exercise.RubricFile = stored.FileRef()
	}
	s.discardDetection(&exercise)

	if err := s.repo.Update(ctx, &exercise); err != nil {
		return UploadResult{}, err
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	s.logger.Info().
		Str("class_id", exercise.ClassID).
		Str("exercise_id", exercise.ID).
		Str("field", field).
		Bool("overwritten", stored.Overwritten).
		Msg("exercise file replaced")

	return stored, nil
}

// discardDetection sends a reviewed exercise back to draft; its detection no longer matches the inputs.
func (s *exerciseService) discardDetection(exercise *models.Exercise) {
	if exercise.Status != models.ExerciseStatusAIReviewed {
		return
	}
	s.transition(exercise, models.ExerciseStatusDraft)
	exercise.DetectedElements = nil
	exercise.RubricStructured = nil
	exercise.DetectionReason = ""
}

func (s *exerciseService) inspectFiles(files ExerciseFiles) (*InspectedFile, *InspectedFile, error) {
	var scheme, rubric *InspectedFile
	var err error

	if files.AnswerScheme != nil {
		scheme, err = s.uploads.Inspect(files.AnswerScheme, PurposeAnswerScheme)
		if err != nil {
			return nil, nil, renameField(err, "answerScheme")
		}
	}
	if files.Rubric != nil {
		rubric, err = s.uploads.Inspect(files.Rubric, PurposeRubric)
		if err != nil {
			return nil, nil, renameField(err, "rubricFile")
		}
	}

	return scheme, rubric, nil
}

func (s *exerciseService) applyDraftFields(exercise *models.Exercise, payload dto.ExerciseRequest) {
	if payload.Title != nil {
		exercise.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		exercise.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.TotalMarks != nil {
		exercise.TotalMarks = *payload.TotalMarks
	}
	if payload.RubricText != nil {
		exercise.RubricText = s.policy.Sanitize(strings.TrimSpace(*payload.RubricText))
	}
	exercise.DueDate = resolveDueDate(exercise.DueDate, payload.DueDate, payload.DueTime)
}

// resolveDueDate combines the date and clock parts. A missing part keeps the
// stored value; a new date without a clock defaults to 23:59 UTC. The inputs
// have already passed the datetime validator.
func resolveDueDate(current *time.Time, date, clock *string) *time.Time {
	if date == nil && clock == nil {
		return current
	}

	day := ""
	if date != nil {
		day = strings.TrimSpace(*date)
		if day == "" {
			return nil
		}
	} else if current != nil {
		day = current.UTC().Format(dto.DueDateLayout)
	}
	if day == "" {
		return current
	}

	hm := ""
	if clock != nil {
		hm = strings.TrimSpace(*clock)
	}
	if hm == "" {
		if current != nil {
			hm = current.UTC().Format(dto.DueTimeLayout)
		} else {
			hm = fmt.Sprintf("%02d:%02d", defaultDueHour, defaultDueMinute)
		}
	}

	due, err := time.ParseInLocation(dto.DueDateLayout+" "+dto.DueTimeLayout, day+" "+hm, time.UTC)
	if err != nil {
		return current
	}
	return &due
}

func (s *exerciseService) Publish(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseRequest, files ExerciseFiles) (dto.PublishResult, error) {
	ctx, span := s.tracer.Start(ctx, "exercise.publish", trace.WithAttributes(
		attribute.String("class.id", classID),
		attribute.String("exercise.id", id),
	))
	defer span.End()

	exercise, err := s.saveDraft(ctx, actor, classID, id, payload, files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "draft not saved")
		return dto.PublishResult{}, err
	}
	span.SetAttributes(attribute.String("exercise.id", exercise.ID))

	if fields := publishFieldErrors(*exercise, payload); len(fields) > 0 {
		return rejection(exercise, fieldError(fields))
	}

	if !models.CanTransition(exercise.Status, models.ExerciseStatusAIPending) {
		return rejection(exercise, ErrInvalidTransition)
	}
	s.transition(exercise, models.ExerciseStatusAIPending)

	detection, err := s.detector.DetectERD(ctx, exercise.AnswerScheme.URL)
	if err != nil {
		return s.abortDetection(ctx, span, exercise, detectionError(err))
	}
	if !detection.IsERD {
		exercise.DetectionReason = strings.TrimSpace(detection.Reason)
		return s.abortDetection(ctx, span, exercise, ErrNotERD.WithMessage(withReason(ErrNotERD.Message, detection.Reason)))
	}

	elements, err := detectedElementSet(detection.Elements)
	if err != nil {
		return s.abortDetection(ctx, span, exercise, ErrDetectionMalformed.wrap(err))
	}

	rubric, err := s.detector.DetectRubric(ctx, exercise.RubricText)
	if err != nil {
		return s.abortDetection(ctx, span, exercise, detectionError(err))
	}
	if !rubric.IsERDRubric {
		exercise.DetectionReason = strings.TrimSpace(rubric.Reason)
		return s.abortDetection(ctx, span, exercise, ErrNotERDRubric.WithMessage(withReason(ErrNotERDRubric.Message, rubric.Reason)))
	}

	exercise.DetectedElements = elements
	exercise.RubricStructured = datatypes.JSON(rubric.Structured)
	exercise.DetectionReason = ""
	s.transition(exercise, models.ExerciseStatusAIReviewed)

	if err := s.repo.Update(ctx, exercise); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.PublishResult{}, err
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	span.SetStatus(codes.Ok, "reviewed")
	s.logger.Info().
		Str("class_id", exercise.ClassID).
		Str("exercise_id", exercise.ID).
		Int("elements", len(elements)).
		Msg("answer scheme analysed")

	response := dto.NewExerciseResponse(*exercise)
	review := dto.NewReviewSummary(*exercise)
	return dto.PublishResult{
		Success:  true,
		Message:  "answer scheme analysed, review the detected elements before publishing",
		Exercise: &response,
		Review:   &review,
	}, nil
}

// abortDetection returns the exercise to draft. Only the detection reason is
// written; everything else was persisted before detection started. A failed
// write travels with the returned error.
func (s *exerciseService) abortDetection(ctx context.Context, span trace.Span, exercise *models.Exercise, failure *Error) (dto.PublishResult, error) {
	s.transition(exercise, models.ExerciseStatusDraft)

	if err := s.repo.Update(ctx, exercise); err != nil {
		s.logger.Error().Err(err).Str("exercise_id", exercise.ID).Msg("failed to persist detection outcome")
		failure = failure.withUnsavedOutcome(err)
	}

	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Code)

	s.logger.Warn().
		Str("exercise_id", exercise.ID).
		Str("code", failure.Code).
		Str("detail", failure.Detail).
		Msg("publish rejected")

	return rejection(exercise, failure)
}

func rejection(exercise *models.Exercise, failure *Error) (dto.PublishResult, error) {
	response := dto.NewExerciseResponse(*exercise)
	return dto.PublishResult{Success: false, Message: failure.Message, Exercise: &response}, failure
}

func withReason(message, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return message
	}
	return message + ": " + reason
}

func publishFieldErrors(exercise models.Exercise, payload dto.ExerciseRequest) map[string]string {
	fields := map[string]string{}
	if exercise.Title == "" {
		fields["title"] = "title is required"
	}
	if exercise.Description == "" {
		fields["description"] = "description is required"
	}
	if exercise.DueDate == nil {
		fields["dueDate"] = "dueDate is required"
		if payload.DueTime == nil || strings.TrimSpace(*payload.DueTime) == "" {
			fields["dueTime"] = "dueTime is required"
		}
	}
	if exercise.TotalMarks < 1 || exercise.TotalMarks > 100 {
		fields["totalMarks"] = boundedFields["totalMarks"]
	}
	if exercise.AnswerScheme.IsZero() {
		fields["answerScheme"] = "answerScheme is required"
	}
	if exercise.RubricText == "" {
		fields["rubricText"] = "rubricText is required"
	}
	return fields
}

func detectedElementSet(detected []ai.DetectedElement) (models.ElementSet, error) {
	payloads := make([]models.ElementPayload, 0, len(detected))
	for _, element := range detected {
		confidence := element.Confidence
		payloads = append(payloads, models.ElementPayload{
			ID:            element.ID,
			Name:          element.Name,
			Type:          element.Type,
			SubType:       element.SubType,
			Confidence:    &confidence,
			From:          element.From,
			To:            element.To,
			BelongsTo:     element.BelongsTo,
			BelongsToType: element.BelongsToType,
		})
	}
	return models.NewElementSet(payloads)
}

func (s *exerciseService) Review(ctx context.Context, actor Actor, classID, id string) (dto.ReviewSummary, error) {
	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return dto.ReviewSummary{}, err
	}

	return dto.NewReviewSummary(exercise), nil
}

func (s *exerciseService) Approve(ctx context.Context, actor Actor, classID, id string, payload dto.ApproveRequest) (dto.ExerciseResponse, error) {
	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	if exercise.Status != models.ExerciseStatusAIReviewed || !models.CanTransition(exercise.Status, models.ExerciseStatusActive) {
		return dto.ExerciseResponse{}, ErrInvalidTransition.WithMessage(
			fmt.Sprintf("exercise in status %s cannot be approved", exercise.Status))
	}

	elements, err := validElements(payload.Elements)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	approvedAt := s.now().UTC()
	exercise.CorrectAnswer = elements
	exercise.ApprovedAt = &approvedAt
	s.transition(&exercise, models.ExerciseStatusActive)

	if err := s.repo.Update(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	s.events.Publish(ctx, Event{
		Type:       EventExercisePublished,
		ClassID:    exercise.ClassID,
		ExerciseID: exercise.ID,
		ActorID:    actor.ID,
		Attributes: map[string]interface{}{
			"title":      exercise.Title,
			"totalMarks": exercise.TotalMarks,
			"dueDate":    exercise.DueDate,
			"elements":   len(elements),
		},
	})
	s.logger.Info().
		Str("class_id", exercise.ClassID).
		Str("exercise_id", exercise.ID).
		Int("elements", len(elements)).
		Msg("exercise published")

	return dto.NewExerciseResponse(exercise), nil
}

// validElements builds a correct answer and checks its references.
func validElements(payloads []models.ElementPayload) (models.ElementSet, error) {
	if len(payloads) == 0 {
		return nil, singleFieldError(ErrValidation, "elements", "at least one element is required")
	}

	elements, err := models.NewElementSet(payloads)
	if err != nil {
		return nil, singleFieldError(ErrValidation, "elements", err.Error())
	}

	if fields := elements.Validate(); len(fields) > 0 {
		return nil, fieldError(fields)
	}
	return elements, nil
}

func (s *exerciseService) Update(ctx context.Context, actor Actor, classID, id string, payload dto.ExerciseUpdateRequest) (dto.ExerciseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, validationError(err)
	}

	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	if payload.Title != nil {
		exercise.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		exercise.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.TotalMarks != nil {
		exercise.TotalMarks = *payload.TotalMarks
	}
	exercise.DueDate = resolveDueDate(exercise.DueDate, payload.DueDate, payload.DueTime)

	if exercise.IsActive() {
		fields := map[string]string{}
		if exercise.Title == "" {
			fields["title"] = "title is required"
		}
		if exercise.Description == "" {
			fields["description"] = "description is required"
		}
		if exercise.DueDate == nil {
			fields["dueDate"] = "dueDate is required"
		}
		if len(fields) > 0 {
			return dto.ExerciseResponse{}, fieldError(fields)
		}
	}

	if err := s.repo.Update(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	s.logger.Info().Str("exercise_id", exercise.ID).Msg("exercise metadata updated")

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) UpdateCorrectAnswer(ctx context.Context, actor Actor, classID, id string, payload dto.ApproveRequest) (dto.ExerciseResponse, error) {
	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	if !exercise.IsActive() {
		return dto.ExerciseResponse{}, ErrInvalidTransition.WithMessage("the correct answer can only be edited on published exercises")
	}

	elements, err := validElements(payload.Elements)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	exercise.CorrectAnswer = elements
	if err := s.repo.Update(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	s.logger.Info().Str("exercise_id", exercise.ID).Int("elements", len(elements)).Msg("correct answer updated")

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) Get(ctx context.Context, actor Actor, classID, id string) (dto.ExerciseResponse, error) {
	exercise, err := s.load(ctx, classID, id)
	if err != nil {
		return dto.ExerciseResponse{}, err
	}

	if !actor.IsStaff() {
		if !exercise.IsActive() {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.NewStudentExerciseResponse(exercise), nil
	}

	return dto.NewExerciseResponse(exercise), nil
}

func (s *exerciseService) List(ctx context.Context, actor Actor, classID string, filter dto.ExerciseFilter) ([]dto.ExerciseResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, validationError(err)
	}

	repoFilter := repository.ExerciseFilter{}
	if filter.Status != "" {
		repoFilter.Statuses = []string{filter.Status}
	}
	if !actor.IsStaff() {
		if filter.Status != "" && filter.Status != models.ExerciseStatusActive {
			return []dto.ExerciseResponse{}, nil
		}
		repoFilter.Statuses = []string{models.ExerciseStatusActive}
	}

	exercises, err := s.repo.ListByClass(ctx, strings.TrimSpace(classID), repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewExerciseResponseSlice(exercises, !actor.IsStaff()), nil
}

func (s *exerciseService) Delete(ctx context.Context, actor Actor, classID, id string) error {
	exercise, err := s.loadManaged(ctx, actor, classID, id)
	if err != nil {
		return err
	}

	files, err := s.submissions.ListByExerciseFiles(ctx, exercise.ClassID, exercise.ID)
	if err != nil {
		return err
	}
	files = append(files, exercise.AnswerScheme, exercise.RubricFile)

	if err := s.repo.Delete(ctx, exercise.ClassID, exercise.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	// Stored files are removed after the rows; a failure leaves an orphan object only.
	for _, file := range files {
		if file.IsZero() || file.StorageKey == "" {
			continue
		}
		if _, err := s.uploads.Delete(ctx, file.StorageKey); err != nil {
			s.logger.Warn().Err(err).Str("key", file.StorageKey).Msg("failed to delete stored file")
		}
	}

	s.cache.InvalidateClass(ctx, exercise.ClassID)
	s.events.Publish(ctx, Event{
		Type:       EventExerciseDeleted,
		ClassID:    exercise.ClassID,
		ExerciseID: exercise.ID,
		ActorID:    actor.ID,
	})
	s.logger.Info().Str("exercise_id", exercise.ID).Int("files", len(files)).Msg("exercise deleted")

	return nil
}

func (s *exerciseService) load(ctx context.Context, classID, id string) (models.Exercise, error) {
	exercise, err := s.repo.GetByID(ctx, strings.TrimSpace(classID), strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exercise{}, ErrExerciseNotFound
		}
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (s *exerciseService) loadManaged(ctx context.Context, actor Actor, classID, id string) (models.Exercise, error) {
	if !actor.IsStaff() {
		return models.Exercise{}, ErrForbidden
	}

	exercise, err := s.load(ctx, classID, id)
	if err != nil {
		return models.Exercise{}, err
	}
	if !actor.canManage(exercise.CreatedBy) {
		return models.Exercise{}, ErrForbidden
	}

	return exercise, nil
}

func (s *exerciseService) transition(exercise *models.Exercise, to string) {
	from := exercise.Status
	if from == to {
		return
	}
	exercise.Status = to
	observability.LifecycleTransitions().WithLabelValues(from, to).Inc()
}

// renameField moves the single field error of an upload rejection onto the form field name.
func renameField(err error, field string) error {
	typed, ok := AsError(err)
	if !ok || len(typed.Fields) == 0 {
		return err
	}

	clone := *typed
	clone.Fields = make(map[string]string, len(typed.Fields))
	for _, message := range typed.Fields {
		clone.Fields[field] = message
	}
	return &clone
}
