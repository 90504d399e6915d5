package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

// SubmissionCounts aggregates the submissions of one exercise.
type SubmissionCounts struct {
	ExerciseID string
	Submitted  int
	Graded     int
}

// SubmissionRepository defines data operations for submissions and their progress records.
type SubmissionRepository interface {
	Get(ctx context.Context, key models.SubmissionKey) (models.Submission, error)
	ListByExercise(ctx context.Context, classID, exerciseID, status string) ([]models.Submission, error)
	ListByStudent(ctx context.Context, classID, studentID string) ([]models.Submission, error)
	ListByExerciseFiles(ctx context.Context, classID, exerciseID string) ([]models.FileRef, error)
	CountByClass(ctx context.Context, classID string) (map[string]SubmissionCounts, error)
	SaveWithProgress(ctx context.Context, submission *models.Submission, progress *models.Progress) error
	SaveGrade(ctx context.Context, submission *models.Submission, completed bool) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func ownerScope(key models.SubmissionKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("student_id = ? AND class_id = ? AND exercise_id = ?", key.StudentID, key.ClassID, key.ExerciseID)
	}
}

func (r *submissionRepository) Get(ctx context.Context, key models.SubmissionKey) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Scopes(ownerScope(key)).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByExercise(ctx context.Context, classID, exerciseID, status string) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Where("class_id = ? AND exercise_id = ?", classID, exerciseID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, classID, studentID string) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByExerciseFiles(ctx context.Context, classID, exerciseID string) ([]models.FileRef, error) {
	submissions, err := r.ListByExercise(ctx, classID, exerciseID, "")
	if err != nil {
		return nil, err
	}

	files := make([]models.FileRef, 0, len(submissions))
	for _, submission := range submissions {
		if !submission.File.IsZero() {
			files = append(files, submission.File)
		}
	}
	return files, nil
}

func (r *submissionRepository) CountByClass(ctx context.Context, classID string) (map[string]SubmissionCounts, error) {
	var rows []SubmissionCounts
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("exercise_id, COUNT(*) AS submitted, SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END) AS graded", models.SubmissionStatusSubmitted).
		Where("class_id = ?", classID).
		Group("exercise_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]SubmissionCounts, len(rows))
	for _, row := range rows {
		counts[row.ExerciseID] = row
	}
	return counts, nil
}

// SaveWithProgress upserts the submission and its progress record atomically.
func (r *submissionRepository) SaveWithProgress(ctx context.Context, submission *models.Submission, progress *models.Progress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(submission).Error; err != nil {
			return err
		}
		return tx.Save(progress).Error
	})
}

// SaveGrade stores the graded submission and marks the progress record completed.
func (r *submissionRepository) SaveGrade(ctx context.Context, submission *models.Submission, completed bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(submission).Error; err != nil {
			return err
		}
		return tx.Model(&models.Progress{}).
			Scopes(ownerScope(submission.Key())).
			Update("is_completed", completed).Error
	})
}
