package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

// ProgressRepository reads per-student progress records.
type ProgressRepository interface {
	Get(ctx context.Context, key models.SubmissionKey) (models.Progress, error)
	ListByStudent(ctx context.Context, classID, studentID string) ([]models.Progress, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, key models.SubmissionKey) (models.Progress, error) {
	var progress models.Progress
	if err := r.db.WithContext(ctx).Scopes(ownerScope(key)).First(&progress).Error; err != nil {
		return models.Progress{}, err
	}

	return progress, nil
}

func (r *progressRepository) ListByStudent(ctx context.Context, classID, studentID string) ([]models.Progress, error) {
	var items []models.Progress
	if err := r.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}
