package dto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erducate-api/internal/models"
)

func TestStudentSubmissionResponseHidesUnpublishedGrade(t *testing.T) {
	grade := 35.0
	graded := models.Submission{Status: models.SubmissionStatusGraded, Grade: &grade, Feedback: "check cardinalities", GradedBy: "lecturer-1"}

	view := NewStudentSubmissionResponse(graded)
	require.Equal(t, models.SubmissionStatusSubmitted, view.Status)
	require.Nil(t, view.Grade)
	require.Empty(t, view.Feedback)
	require.Empty(t, view.GradedBy)

	graded.Status = models.SubmissionStatusPublished
	view = NewStudentSubmissionResponse(graded)
	require.Equal(t, models.SubmissionStatusPublished, view.Status)
	require.Equal(t, 35.0, *view.Grade)
	require.Equal(t, "check cardinalities", view.Feedback)
}
