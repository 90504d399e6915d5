package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

// ActivityLogFilter narrows activity log queries.
type ActivityLogFilter struct {
	ClassID    string
	ExerciseID string
	EventType  string
	Page       int
	PageSize   int
}

// ActivityLogRepository persists the class activity trail.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	scoped := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(activityScope(filter))

	var total int64
	if err := scoped.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.ActivityLog{}, 0, nil
	}

	var entries []models.ActivityLog
	err := scoped.
		Scopes(paginate(filter.Page, filter.PageSize)).
		Order("occurred_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func activityScope(filter ActivityLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("class_id = ?", filter.ClassID)
		if filter.ExerciseID != "" {
			db = db.Where("exercise_id = ?", filter.ExerciseID)
		}
		if filter.EventType != "" {
			db = db.Where("event_type = ?", filter.EventType)
		}
		return db
	}
}

func paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if size <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}
