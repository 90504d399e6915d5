package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
)

func TestActivityTrailRecordsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exercise := f.activeExercise(t, "class-1", lecturer.ID)

	_, err := f.submit(t, exercise.ID, "")
	require.NoError(t, err)

	f.clock = exercise.DueDate.Add(time.Hour)
	key := models.SubmissionKey{StudentID: student.ID, ClassID: "class-1", ExerciseID: exercise.ID}
	_, err = f.submissions.Grade(ctx, lecturer, key, dto.GradeRequest{Grade: float64Ptr(40)})
	require.NoError(t, err)

	trail, err := f.activity.List(ctx, lecturer, "class-1", dto.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, trail.Items, 2)
	require.Equal(t, EventSubmissionGraded, trail.Items[0].Type)
	require.Equal(t, EventSubmissionSubmitted, trail.Items[1].Type)
	require.Equal(t, student.ID, trail.Items[1].StudentID)
	require.EqualValues(t, 40, trail.Items[0].Attributes["grade"])
	require.Equal(t, int64(2), trail.Pagination.TotalItems)
	require.Equal(t, 1, trail.Pagination.TotalPages)

	events := f.events.events
	require.Equal(t, events[0].ID, trail.Items[1].EventID)
}

func TestActivityTrailFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.clock = f.clock.Add(time.Minute)
		f.activity.Publish(ctx, Event{Type: EventSubmissionSubmitted, ClassID: "class-1", ExerciseID: "ex-1", StudentID: "s"})
	}
	f.activity.Publish(ctx, Event{Type: EventExerciseDeleted, ClassID: "class-1", ExerciseID: "ex-2"})
	f.activity.Publish(ctx, Event{Type: EventExerciseDeleted, ClassID: "class-2", ExerciseID: "ex-3"})
	f.activity.Publish(ctx, Event{Type: "", ClassID: "class-1"})

	page, err := f.activity.List(ctx, lecturer, "class-1", dto.ActivityFilter{ExerciseID: "ex-1", PageSize: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, int64(3), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	deleted, err := f.activity.List(ctx, lecturer, "class-1", dto.ActivityFilter{Type: EventExerciseDeleted})
	require.NoError(t, err)
	require.Len(t, deleted.Items, 1)
	require.Equal(t, "ex-2", deleted.Items[0].ExerciseID)

	_, err = f.activity.List(ctx, lecturer, "class-1", dto.ActivityFilter{Type: "exercise.renamed"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.activity.List(ctx, student, "class-1", dto.ActivityFilter{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSanitizeAttributesMasksSecrets(t *testing.T) {
	sanitized := sanitizeAttributes(map[string]interface{}{
		"studentEmail": "a@b.c",
		"accessToken":  "xyz",
		"grade":        12,
	})
	require.Equal(t, "***", sanitized["studentEmail"])
	require.Equal(t, "***", sanitized["accessToken"])
	require.Equal(t, 12, sanitized["grade"])
}

func TestFanoutStampsEventOnce(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	fanout := NewFanoutPublisher(first, nil, second)

	fanout.Publish(context.Background(), Event{Type: EventExercisePublished, ClassID: "class-1"})

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.NotEmpty(t, first.events[0].ID)
	require.Equal(t, first.events[0].ID, second.events[0].ID)
	require.Equal(t, first.events[0].OccurredAt, second.events[0].OccurredAt)
}
