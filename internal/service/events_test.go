package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventSubject(t *testing.T) {
	require.Equal(t, "erducate.events", EventSubject(""))
	require.Equal(t, "erducate.events", EventSubject("erducate"))
	require.Equal(t, "erducate.prod.events", EventSubject(" erducate:prod. "))
}

func TestEventPublisherWithoutConnectionIsNoop(t *testing.T) {
	publisher := NewEventPublisher(nil, "erducate", testLogger())

	require.NotPanics(t, func() {
		publisher.Publish(context.Background(), Event{Type: EventExercisePublished, ClassID: "class-1", ExerciseID: "ex-1"})
	})
}

func TestActorPermissions(t *testing.T) {
	require.True(t, lecturer.IsStaff())
	require.False(t, lecturer.IsStudent())
	require.True(t, lecturer.canManage(""))
	require.True(t, lecturer.canManage("lecturer-1"))
	require.False(t, lecturer.canManage("lecturer-2"))
	require.False(t, student.canManage(""))
	require.True(t, Actor{ID: "root", Role: "ADMIN"}.canManage("lecturer-2"))
}
