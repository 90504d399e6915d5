package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/erducate-api/internal/cache"
	"github.com/noah-isme/erducate-api/internal/dto"
	"github.com/noah-isme/erducate-api/internal/models"
	"github.com/noah-isme/erducate-api/internal/repository"
)

// ListingService builds the per-viewer class overview.
type ListingService interface {
	Overview(ctx context.Context, actor Actor, classID string) (dto.ClassListing, bool, error)
	// MaxAge is how long a client may reuse an overview before asking again.
	MaxAge() time.Duration
}

type listingService struct {
	exercises   repository.ExerciseRepository
	submissions repository.SubmissionRepository
	progress    repository.ProgressRepository
	cache       *cache.ListingCache
	logger      zerolog.Logger
	now         func() time.Time
}

// NewListingService constructs the listing service.
func NewListingService(
	exercises repository.ExerciseRepository,
	submissions repository.SubmissionRepository,
	progress repository.ProgressRepository,
	listingCache *cache.ListingCache,
	logger zerolog.Logger,
) ListingService {
	return &listingService{
		exercises:   exercises,
		submissions: submissions,
		progress:    progress,
		cache:       listingCache,
		logger:      logger.With().Str("component", "listing_service").Logger(),
		now:         time.Now,
	}
}

func (s *listingService) MaxAge() time.Duration {
	return s.cache.TTL()
}

// Overview returns the class listing for the caller and reports whether it came from the cache.
func (s *listingService) Overview(ctx context.Context, actor Actor, classID string) (dto.ClassListing, bool, error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return dto.ClassListing{}, false, singleFieldError(ErrValidation, "classId", "classId is required")
	}

	role := RoleStudent
	if actor.IsStaff() {
		role = strings.ToLower(actor.Role)
	}

	var cached dto.ClassListing
	if s.cache.Get(ctx, classID, actor.ID, role, &cached) {
		return cached, true, nil
	}

	var (
		listing dto.ClassListing
		err     error
	)
	if actor.IsStaff() {
		listing, err = s.staffOverview(ctx, classID)
	} else {
		listing, err = s.studentOverview(ctx, actor.ID, classID)
	}
	if err != nil {
		return dto.ClassListing{}, false, err
	}

	listing.ClassID = classID
	listing.ViewerID = actor.ID
	listing.Role = role
	listing.GeneratedAt = s.now().UTC()

	s.cache.Set(ctx, classID, actor.ID, role, listing)
	return listing, false, nil
}

func (s *listingService) staffOverview(ctx context.Context, classID string) (dto.ClassListing, error) {
	exercises, err := s.exercises.ListByClass(ctx, classID, repository.ExerciseFilter{})
	if err != nil {
		return dto.ClassListing{}, err
	}

	counts, err := s.submissions.CountByClass(ctx, classID)
	if err != nil {
		return dto.ClassListing{}, err
	}

	now := s.now().UTC()
	listing := dto.ClassListing{Items: make([]dto.ListingItem, 0, len(exercises))}
	for _, exercise := range exercises {
		count := counts[exercise.ID]
		pastDue := exercise.IsPastDue(now)
		listing.Items = append(listing.Items, dto.ListingItem{
			Exercise:    dto.NewExerciseResponse(exercise),
			Submissions: count.Submitted,
			Graded:      count.Graded,
			PastDue:     pastDue,
			CanGrade:    exercise.IsActive() && pastDue,
		})

		listing.Summary.Total++
		if exercise.IsActive() {
			listing.Summary.Active++
		} else {
			listing.Summary.Drafts++
		}
		listing.Summary.Submitted += count.Submitted
		listing.Summary.Completed += count.Graded
	}

	return listing, nil
}

func (s *listingService) studentOverview(ctx context.Context, studentID, classID string) (dto.ClassListing, error) {
	exercises, err := s.exercises.ListByClass(ctx, classID, repository.ExerciseFilter{
		Statuses: []string{models.ExerciseStatusActive},
	})
	if err != nil {
		return dto.ClassListing{}, err
	}

	records, err := s.progress.ListByStudent(ctx, classID, studentID)
	if err != nil {
		return dto.ClassListing{}, err
	}
	byExercise := make(map[string]models.Progress, len(records))
	for _, record := range records {
		byExercise[record.ExerciseID] = record
	}

	now := s.now().UTC()
	listing := dto.ClassListing{Items: make([]dto.ListingItem, 0, len(exercises))}
	for _, exercise := range exercises {
		record, ok := byExercise[exercise.ID]
		if !ok {
			record = models.Progress{
				StudentID:  studentID,
				ClassID:    classID,
				ExerciseID: exercise.ID,
				MaxEdits:   models.MaxSubmissionEdits,
			}
		}
		progress := dto.NewProgressResponse(record)

		listing.Items = append(listing.Items, dto.ListingItem{
			Exercise: dto.NewStudentExerciseResponse(exercise),
			Progress: &progress,
			PastDue:  exercise.IsPastDue(now),
		})

		listing.Summary.Total++
		listing.Summary.Active++
		if record.Submitted {
			listing.Summary.Submitted++
		}
		if record.IsCompleted {
			listing.Summary.Completed++
		}
	}

	return listing, nil
}
