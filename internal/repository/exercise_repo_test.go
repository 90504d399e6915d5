package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Exercise{}, &models.Submission{}, &models.Progress{}, &models.ActivityLog{}))
	return db
}

func sampleElements() models.ElementSet {
	return models.ElementSet{
		models.Entity{ElementBase: models.ElementBase{ID: "e1", Name: "Student", SubType: models.EntityStrong, Confidence: 99}},
		models.Entity{ElementBase: models.ElementBase{ID: "e2", Name: "Course", SubType: models.EntityStrong, Confidence: 97}},
		models.Relationship{ElementBase: models.ElementBase{ID: "r1", Name: "Enrols", SubType: models.RelationshipManyToMany, Confidence: 80}, From: "Student", To: "Course"},
		models.Attribute{ElementBase: models.ElementBase{ID: "a1", Name: "student_id", SubType: models.AttributePrimaryKey, Confidence: 100}, BelongsTo: "Student", BelongsToType: models.ElementTypeEntity},
	}
}

func TestExerciseRepositoryRoundTripsElements(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	exercise := models.Exercise{
		ClassID:          "class-1",
		Title:            "University ERD",
		DueDate:          &due,
		TotalMarks:       20,
		DetectedElements: sampleElements(),
	}
	require.NoError(t, repo.Create(ctx, &exercise))
	require.NotEmpty(t, exercise.ID)
	require.Equal(t, models.ExerciseStatusDraft, exercise.Status)

	stored, err := repo.GetByID(ctx, "class-1", exercise.ID)
	require.NoError(t, err)
	require.Len(t, stored.DetectedElements, 4)
	require.Empty(t, stored.CorrectAnswer)

	relationship, ok := stored.DetectedElements[2].(models.Relationship)
	require.True(t, ok)
	require.Equal(t, "Course", relationship.To)

	attribute, ok := stored.DetectedElements[3].(models.Attribute)
	require.True(t, ok)
	require.Equal(t, models.ElementTypeEntity, attribute.BelongsToType)

	_, err = repo.GetByID(ctx, "class-2", exercise.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestExerciseRepositoryListByClassFiltersStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)
	ctx := context.Background()

	early := time.Now().Add(24 * time.Hour)
	late := time.Now().Add(72 * time.Hour)

	require.NoError(t, repo.Create(ctx, &models.Exercise{ClassID: "c1", Title: "late", DueDate: &late, Status: models.ExerciseStatusActive}))
	require.NoError(t, repo.Create(ctx, &models.Exercise{ClassID: "c1", Title: "early", DueDate: &early, Status: models.ExerciseStatusActive}))
	require.NoError(t, repo.Create(ctx, &models.Exercise{ClassID: "c1", Title: "draft"}))
	require.NoError(t, repo.Create(ctx, &models.Exercise{ClassID: "c2", Title: "other", Status: models.ExerciseStatusActive}))

	all, err := repo.ListByClass(ctx, "c1", ExerciseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	active, err := repo.ListByClass(ctx, "c1", ExerciseFilter{Statuses: []string{models.ExerciseStatusActive}})
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "early", active[0].Title)
	require.Equal(t, "late", active[1].Title)
}

func TestExerciseRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)
	submissions := NewSubmissionRepository(db)
	ctx := context.Background()

	exercise := models.Exercise{ClassID: "c1", Title: "cascade", Status: models.ExerciseStatusActive}
	require.NoError(t, repo.Create(ctx, &exercise))

	submission := models.Submission{StudentID: "s1", ClassID: "c1", ExerciseID: exercise.ID, Status: models.SubmissionStatusSubmitted, SubmittedAt: time.Now()}
	progress := models.Progress{StudentID: "s1", ClassID: "c1", ExerciseID: exercise.ID, Submitted: true, MaxEdits: models.MaxSubmissionEdits}
	require.NoError(t, submissions.SaveWithProgress(ctx, &submission, &progress))

	require.NoError(t, repo.Delete(ctx, "c1", exercise.ID))

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Progress{}).Count(&count).Error)
	require.Zero(t, count)

	err := repo.Delete(ctx, "c1", exercise.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
