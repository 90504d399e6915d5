package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/erducate-api/internal/models"
)

func TestActivityLogRepositoryListsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, eventType := range []string{"submission.submitted", "submission.graded", "exercise.deleted"} {
		require.NoError(t, repo.Create(ctx, &models.ActivityLog{
			EventID:    uuid.NewString(),
			EventType:  eventType,
			ClassID:    "class-1",
			ExerciseID: "ex-1",
			Attributes: datatypes.JSONMap{"step": i},
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{EventID: uuid.NewString(), EventType: "exercise.deleted", ClassID: "class-2", OccurredAt: base}))

	entries, total, err := repo.List(ctx, ActivityLogFilter{ClassID: "class-1"})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, "exercise.deleted", entries[0].EventType)
	require.Equal(t, "submission.submitted", entries[2].EventType)
	require.EqualValues(t, 0, entries[2].Attributes["step"])

	entries, total, err = repo.List(ctx, ActivityLogFilter{ClassID: "class-1", EventType: "submission.graded"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, entries, 1)

	entries, total, err = repo.List(ctx, ActivityLogFilter{ClassID: "class-1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, entries, 1)
	require.Equal(t, "submission.submitted", entries[0].EventType)
}
