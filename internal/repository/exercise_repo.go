package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

// ExerciseFilter narrows exercise listings.
type ExerciseFilter struct {
	Statuses []string
}

// ExerciseRepository defines persistence operations for exercises.
type ExerciseRepository interface {
	ListByClass(ctx context.Context, classID string, filter ExerciseFilter) ([]models.Exercise, error)
	GetByID(ctx context.Context, classID, id string) (models.Exercise, error)
	Create(ctx context.Context, exercise *models.Exercise) error
	Update(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, classID, id string) error
}

type exerciseRepository struct {
	db *gorm.DB
}

// NewExerciseRepository instantiates a GORM-backed repository.
func NewExerciseRepository(db *gorm.DB) ExerciseRepository {
	return &exerciseRepository{db: db}
}

func (r *exerciseRepository) ListByClass(ctx context.Context, classID string, filter ExerciseFilter) ([]models.Exercise, error) {
	query := r.db.WithContext(ctx).Where("class_id = ?", strings.TrimSpace(classID))

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var exercises []models.Exercise
	if err := query.Order("due_date IS NULL, due_date ASC").Order("created_at DESC").Find(&exercises).Error; err != nil {
		return nil, err
	}

	return exercises, nil
}

func (r *exerciseRepository) GetByID(ctx context.Context, classID, id string) (models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.WithContext(ctx).
		Where("class_id = ? AND id = ?", classID, id).
		First(&exercise).Error; err != nil {
		return models.Exercise{}, err
	}

	return exercise, nil
}

func (r *exerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Create(exercise).Error
}

// Update overwrites the stored record. Concurrent editors are last-write-wins.
func (r *exerciseRepository) Update(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Save(exercise).Error
}

// Delete removes the exercise together with its submissions and progress records.
func (r *exerciseRepository) Delete(ctx context.Context, classID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ? AND exercise_id = ?", classID, id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ? AND exercise_id = ?", classID, id).Delete(&models.Progress{}).Error; err != nil {
			return err
		}

		result := tx.Where("class_id = ? AND id = ?", classID, id).Delete(&models.Exercise{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
