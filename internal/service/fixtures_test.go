package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/erducate-api/internal/cache"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/repository"
	"github.com/noah-isme/erducate-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type stubDetector struct {
	erd         ai.ERDDetection
	erdErr      error
	rubric      ai.RubricDetection
	rubricErr   error
	erdCalls    int
	rubricCalls int
	lastURL     string
}

func newERDDetector() *stubDetector {
	return &stubDetector{
		erd: ai.ERDDetection{
			IsERD: true,
			Elements: []ai.DetectedElement{
				{ID: "e1", Name: "Student", Type: "entity", SubType: "strong", Confidence: 98},
				{ID: "e2", Name: "Course", Type: "entity", SubType: "strong", Confidence: 96},
				{ID: "r1", Name: "Enrols", Type: "relationship", SubType: "many-to-many", Confidence: 72, From: "Student", To: "Course"},
				{ID: "a1", Name: "student_id", Type: "attribute", SubType: "primary_key", Confidence: 99, BelongsTo: "Student", BelongsToType: "entity"},
			},
		},
		rubric: ai.RubricDetection{
			IsERDRubric: true,
			Structured:  json.RawMessage(`{"criteria":[{"name":"Entities","marks":40},{"name":"Relationships","marks":60}]}`),
		},
	}
}

func (d *stubDetector) DetectERD(ctx context.Context, imageURL string) (ai.ERDDetection, error) {
	d.erdCalls++
	d.lastURL = imageURL
	return d.erd, d.erdErr
}

func (d *stubDetector) DetectRubric(ctx context.Context, rubricText string) (ai.RubricDetection, error) {
	d.rubricCalls++
	return d.rubric, d.rubricErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type fixture struct {
	db          *gorm.DB
	store       *mediaStoreStub
	detector    *stubDetector
	events      *recordingPublisher
	redis       *miniredis.Miniredis
	cache       *cache.ListingCache
	exercises   *exerciseService
	submissions *submissionService
	listing     *listingService
	activity    *activityService
	clock       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Exercise{}, &models.Submission{}, &models.Progress{}, &models.ActivityLog{}))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		db:       db,
		store:    newMediaStoreStub(),
		detector: newERDDetector(),
		events:   &recordingPublisher{},
		redis:    mr,
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.cache = cache.NewListingCache(client, time.Minute, testLogger())

	exerciseRepo := repository.NewExerciseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	uploads := NewUploadService(f.store, testLogger())
	validate := NewValidator()
	now := func() time.Time { return f.clock }

	f.activity = NewActivityService(repository.NewActivityLogRepository(db), validate, testLogger()).(*activityService)
	f.activity.now = now
	events := NewFanoutPublisher(f.events, f.activity)
	events.(*fanoutPublisher).now = now

	f.exercises = NewExerciseService(exerciseRepo, submissionRepo, uploads, f.detector, f.cache, events, validate, testLogger()).(*exerciseService)
	f.exercises.now = now
	f.submissions = NewSubmissionService(exerciseRepo, submissionRepo, progressRepo, uploads, f.cache, events, validate, testLogger()).(*submissionService)
	f.submissions.now = now
	f.listing = NewListingService(exerciseRepo, submissionRepo, progressRepo, f.cache, testLogger()).(*listingService)
	f.listing.now = now

	return f
}

// activeExercise stores a published exercise due one day after the fixture clock.
func (f *fixture) activeExercise(t *testing.T, classID, lecturerID string) models.Exercise {
	t.Helper()

	due := f.clock.Add(24 * time.Hour)
	approved := f.clock
	exercise := models.Exercise{
		ClassID:       classID,
		Title:         "Library ERD",
		Description:   "Model a lending library",
		DueDate:       &due,
		TotalMarks:    50,
		RubricText:    "Entities 20, relationships 20, attributes 10",
		Status:        models.ExerciseStatusActive,
		CorrectAnswer: sampleCorrectAnswer(),
		CreatedBy:     lecturerID,
		ApprovedAt:    &approved,
	}
	require.NoError(t, f.db.Create(&exercise).Error)
	return exercise
}

func sampleCorrectAnswer() models.ElementSet {
	return models.ElementSet{
		models.Entity{ElementBase: models.ElementBase{ID: "e1", Name: "Book", SubType: models.EntityStrong, Confidence: 100}},
		models.Entity{ElementBase: models.ElementBase{ID: "e2", Name: "Member", SubType: models.EntityStrong, Confidence: 100}},
		models.Relationship{ElementBase: models.ElementBase{ID: "r1", Name: "Borrows", SubType: models.RelationshipOneToMany, Confidence: 100}, From: "Member", To: "Book"},
	}
}

func stringPtr(value string) *string {
	return &value
}

func intPtr(value int) *int {
	return &value
}

func float64Ptr(value float64) *float64 {
	return &value
}

var (
	lecturer = Actor{ID: "lecturer-1", Role: RoleLecturer}
	student  = Actor{ID: "student-1", Role: RoleStudent}
)
