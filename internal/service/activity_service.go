package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/repository"
)

const defaultActivityPageSize = 20

// ActivityService records lifecycle events as the class activity trail and lists them for staff.
type ActivityService interface {
	EventPublisher
	List(ctx context.Context, actor Actor, classID string, filter dto.ActivityFilter) (dto.ActivityList, error)
}

type activityService struct {
	repo      repository.ActivityLogRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewActivityService constructs the activity trail service.
func NewActivityService(repo repository.ActivityLogRepository, validator *validator.Validate, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:      repo,
		validator: validator,
		logger:    logger.With().Str("component", "activity_service").Logger(),
		now:       time.Now,
	}
}

// Publish persists the event. Failures are logged and never reach the caller.
func (s *activityService) Publish(ctx context.Context, event Event) {
	if strings.TrimSpace(event.Type) == "" || strings.TrimSpace(event.ClassID) == "" {
		s.logger.Warn().Str("event_type", event.Type).Msg("dropping activity without type or class")
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	entry := models.ActivityLog{
		EventID:    event.ID,
		EventType:  strings.ToLower(strings.TrimSpace(event.Type)),
		ClassID:    event.ClassID,
		ExerciseID: event.ExerciseID,
		StudentID:  event.StudentID,
		ActorID:    event.ActorID,
		Attributes: sanitizeAttributes(event.Attributes),
		OccurredAt: event.OccurredAt,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("event_type", entry.EventType).Str("class_id", entry.ClassID).Msg("failed to persist activity log")
	}
}

func (s *activityService) List(ctx context.Context, actor Actor, classID string, filter dto.ActivityFilter) (dto.ActivityList, error) {
	if !actor.IsStaff() {
		return dto.ActivityList{}, ErrForbidden.WithMessage("only lecturers can view class activity")
	}

	classID = strings.TrimSpace(classID)
	if classID == "" {
		return dto.ActivityList{}, singleFieldError(ErrValidation, "classId", "classId is required")
	}
	if err := s.validator.Struct(filter); err != nil {
		return dto.ActivityList{}, validationError(err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultActivityPageSize
	}

	entries, total, err := s.repo.List(ctx, repository.ActivityLogFilter{
		ClassID:    classID,
		ExerciseID: strings.TrimSpace(filter.ExerciseID),
		EventType:  filter.Type,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return dto.ActivityList{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}

	return dto.ActivityList{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// sanitizeAttributes masks values whose keys look like credentials or contact details.
func sanitizeAttributes(attributes map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range attributes {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}
