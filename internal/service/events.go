package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Lifecycle event types.
const (
	EventExercisePublished   = "exercise.published"
	EventExerciseDeleted     = "exercise.deleted"
	EventSubmissionSubmitted = "submission.submitted"
	EventSubmissionGraded    = "submission.graded"
	EventGradePublished      = "submission.grade_published"
)

// Event describes a lifecycle change broadcast to other services.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	ClassID    string                 `json:"classId"`
	ExerciseID string                 `json:"exerciseId"`
	StudentID  string                 `json:"studentId,omitempty"`
	ActorID    string                 `json:"actorId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// EventPublisher broadcasts lifecycle events. Publishing never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEventPublisher publishes on "<base>.events". A nil connection yields a publisher that only logs.
func NewEventPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) EventPublisher {
	return &natsEventPublisher{
		conn:    conn,
		subject: EventSubject(subjectBase),
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		now:     time.Now,
	}
}

// EventSubject derives the NATS subject from a base such as "erducate" or "erducate:prod".
func EventSubject(base string) string {
	base = strings.Trim(strings.ReplaceAll(strings.TrimSpace(base), ":", "."), ".")
	if base == "" {
		base = "erducate"
	}
	return base + ".events"
}

func (p *natsEventPublisher) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	event.Source = p.nodeID

	logger := p.logger.With().
		Str("event_type", event.Type).
		Str("class_id", event.ClassID).
		Str("exercise_id", event.ExerciseID).
		Logger()

	if p.conn == nil {
		logger.Debug().Msg("event publishing disabled")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode lifecycle event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		logger.Warn().Err(err).Msg("failed to publish lifecycle event")
		return
	}

	logger.Debug().Str("subject", p.subject).Msg("lifecycle event published")
}

type fanoutPublisher struct {
	publishers []EventPublisher
	now        func() time.Time
}

// NewFanoutPublisher stamps each event once and hands it to every publisher in order.
func NewFanoutPublisher(publishers ...EventPublisher) EventPublisher {
	active := make([]EventPublisher, 0, len(publishers))
	for _, publisher := range publishers {
		if publisher != nil {
			active = append(active, publisher)
		}
	}
	return &fanoutPublisher{publishers: active, now: time.Now}
}

func (f *fanoutPublisher) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = f.now().UTC()
	}
	for _, publisher := range f.publishers {
		publisher.Publish(ctx, event)
	}
}
