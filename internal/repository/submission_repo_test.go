package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/models"
)

func TestSubmissionRepositoryUpsertsSingleRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	progressRepo := NewProgressRepository(db)
	ctx := context.Background()

	key := models.SubmissionKey{StudentID: "s1", ClassID: "c1", ExerciseID: "x1"}
	_, err := repo.Get(ctx, key)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	submission := models.Submission{
		StudentID:   key.StudentID,
		ClassID:     key.ClassID,
		ExerciseID:  key.ExerciseID,
		File:        models.FileRef{URL: "https://cdn/v1/a.png", StorageKey: "submissions/c1/x1/s1"},
		Status:      models.SubmissionStatusSubmitted,
		SubmittedAt: time.Now(),
	}
	progress := models.Progress{StudentID: key.StudentID, ClassID: key.ClassID, ExerciseID: key.ExerciseID, Submitted: true, MaxEdits: 2}
	require.NoError(t, repo.SaveWithProgress(ctx, &submission, &progress))

	stored, err := repo.Get(ctx, key)
	require.NoError(t, err)
	stored.File.URL = "https://cdn/v2/a.png"
	storedProgress, err := progressRepo.Get(ctx, key)
	require.NoError(t, err)
	storedProgress.EditCount++
	require.NoError(t, repo.SaveWithProgress(ctx, &stored, &storedProgress))

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	reloaded, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/v2/a.png", reloaded.File.URL)

	reloadedProgress, err := progressRepo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 1, reloadedProgress.EditCount)
}

func TestSubmissionRepositorySaveGradeCompletesProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	progressRepo := NewProgressRepository(db)
	ctx := context.Background()

	submission := models.Submission{StudentID: "s1", ClassID: "c1", ExerciseID: "x1", Status: models.SubmissionStatusSubmitted, SubmittedAt: time.Now()}
	progress := models.Progress{StudentID: "s1", ClassID: "c1", ExerciseID: "x1", Submitted: true, MaxEdits: 2}
	require.NoError(t, repo.SaveWithProgress(ctx, &submission, &progress))

	grade := 17.5
	submission.Grade = &grade
	submission.Status = models.SubmissionStatusGraded
	require.NoError(t, repo.SaveGrade(ctx, &submission, true))

	stored, err := progressRepo.Get(ctx, submission.Key())
	require.NoError(t, err)
	require.True(t, stored.IsCompleted)
}

func TestSubmissionRepositoryCountByClass(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	for _, item := range []struct {
		student, exercise, status string
	}{
		{"s1", "x1", models.SubmissionStatusSubmitted},
		{"s2", "x1", models.SubmissionStatusGraded},
		{"s3", "x1", models.SubmissionStatusPublished},
		{"s1", "x2", models.SubmissionStatusSubmitted},
	} {
		submission := models.Submission{StudentID: item.student, ClassID: "c1", ExerciseID: item.exercise, Status: item.status, SubmittedAt: time.Now()}
		progress := models.Progress{StudentID: item.student, ClassID: "c1", ExerciseID: item.exercise, Submitted: true, MaxEdits: 2}
		require.NoError(t, repo.SaveWithProgress(ctx, &submission, &progress))
	}

	counts, err := repo.CountByClass(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 3, counts["x1"].Submitted)
	require.Equal(t, 2, counts["x1"].Graded)
	require.Equal(t, 1, counts["x2"].Submitted)
	require.Zero(t, counts["x2"].Graded)

	list, err := repo.ListByExercise(ctx, "c1", "x1", models.SubmissionStatusGraded)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "s2", list[0].StudentID)

	progress, err := NewProgressRepository(db).ListByStudent(ctx, "c1", "s1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
}
