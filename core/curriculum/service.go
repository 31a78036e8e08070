package curriculum

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
)

var (
	// errors
	ErrTrackNotFound      = core.NewNotFoundError("track not found")
	ErrCohortNotFound     = core.NewNotFoundError("cohort not found")
	ErrWeekNotFound       = core.NewNotFoundError("week not found")
	ErrLessonNotFound     = core.NewNotFoundError("lesson not found")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment not found")
)

// cache keys
const (
	KeyTracks          = "tracks"
	KeyCohorts         = "cohorts"
	keyWeeksPrefix     = "weeks:"
	keyLessonsPrefix   = "lessons:"
	keyAssignmentsPref = "assignments:"
)

type (
	Repository interface {
		QueryTracks(ctx context.Context) ([]Track, error)
		GetTrack(ctx context.Context, id string) (Track, error)
		CreateTrack(ctx context.Context, t Track) (Track, error)
		UpdateTrack(ctx context.Context, t Track) (Track, error)
		DeleteTrack(ctx context.Context, id string) error

		QueryCohorts(ctx context.Context) ([]Cohort, error)
		GetCohort(ctx context.Context, id string) (Cohort, error)
		CreateCohort(ctx context.Context, c Cohort) (Cohort, error)
		UpdateCohort(ctx context.Context, c Cohort) (Cohort, error)
		DeleteCohort(ctx context.Context, id string) error

		// QueryWeeks returns the weeks of trackID, ordered by number. An empty trackID returns every week.
		QueryWeeks(ctx context.Context, trackID string) ([]Week, error)
		CreateWeek(ctx context.Context, w Week) (Week, error)
		UpdateWeek(ctx context.Context, w Week) (Week, error)
		DeleteWeek(ctx context.Context, id string) error

		// QueryLessons returns the lessons of weekID, ordered by position.
		QueryLessons(ctx context.Context, weekID string) ([]Lesson, error)
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		QueryAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		cache  *cache.Cache
		ttl    cache.TTLs
		logger core.Logger
	}
)

func NewService(repo Repository, c *cache.Cache, ttl cache.TTLs, logger core.Logger) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl, logger: logger}
}

// degrade logs a failed reference-data read; the caller then serves an empty result.
func (svc *Service) degrade(what string, err error) {
	svc.logger.Error(fmt.Sprintf("curriculum: querying %s: %v", what, err), err)
}

// Tracks

func (svc *Service) QueryTracks(ctx context.Context) []Track {
	tracks, err := cache.Fetch(svc.cache, KeyTracks, svc.ttl.Long, func() ([]Track, error) {
		return svc.repo.QueryTracks(ctx)
	})
	if err != nil {
		svc.degrade("tracks", err)
		return []Track{}
	}
	return tracks
}

func (svc *Service) GetTrack(ctx context.Context, id string) (Track, error) {
	return svc.repo.GetTrack(ctx, id)
}

func (svc *Service) CreateTrack(ctx context.Context, ti TrackInput) (Track, error) {
	t := Track{
		ID:          uuid.New().String(),
		Name:        ti.Name,
		Description: ti.Description,
		CreatedAt:   time.Now().UTC(),
	}
	t, err := svc.repo.CreateTrack(ctx, t)
	if err != nil {
		return Track{}, errors.Wrap(err, "creating track")
	}
	svc.cache.Invalidate(KeyTracks)
	return t, nil
}

func (svc *Service) UpdateTrack(ctx context.Context, id string, ti TrackInput) (Track, error) {
	orig, err := svc.repo.GetTrack(ctx, id)
	if err != nil {
		return Track{}, err
	}
	orig.Name = ti.Name
	orig.Description = ti.Description
	t, err := svc.repo.UpdateTrack(ctx, orig)
	if err != nil {
		return Track{}, errors.Wrap(err, "updating track")
	}
	svc.cache.Invalidate(KeyTracks)
	return t, nil
}

func (svc *Service) DeleteTrack(ctx context.Context, id string) error {
	if err := svc.repo.DeleteTrack(ctx, id); err != nil {
		return errors.Wrap(err, "deleting track")
	}
	// the store cascades to weeks, lessons and assignments
	svc.cache.Invalidate(KeyTracks)
	svc.cache.InvalidatePattern(keyWeeksPrefix)
	svc.cache.InvalidatePattern(keyLessonsPrefix)
	svc.cache.InvalidatePattern(keyAssignmentsPref)
	return nil
}

// Cohorts

func (svc *Service) QueryCohorts(ctx context.Context) []Cohort {
	cohorts, err := cache.Fetch(svc.cache, KeyCohorts, svc.ttl.Long, func() ([]Cohort, error) {
		return svc.repo.QueryCohorts(ctx)
	})
	if err != nil {
		svc.degrade("cohorts", err)
		return []Cohort{}
	}
	return cohorts
}

func (svc *Service) GetCohort(ctx context.Context, id string) (Cohort, error) {
	return svc.repo.GetCohort(ctx, id)
}

func (svc *Service) CreateCohort(ctx context.Context, ci CohortInput) (Cohort, error) {
	c := Cohort{
		ID:        uuid.New().String(),
		Name:      ci.Name,
		StartDate: ci.StartDate,
		EndDate:   ci.EndDate,
		CreatedAt: time.Now().UTC(),
	}
	c, err := svc.repo.CreateCohort(ctx, c)
	if err != nil {
		return Cohort{}, errors.Wrap(err, "creating cohort")
	}
	svc.cache.Invalidate(KeyCohorts)
	return c, nil
}

func (svc *Service) UpdateCohort(ctx context.Context, id string, ci CohortInput) (Cohort, error) {
	orig, err := svc.repo.GetCohort(ctx, id)
	if err != nil {
		return Cohort{}, err
	}
	orig.Name = ci.Name
	orig.StartDate = ci.StartDate
	orig.EndDate = ci.EndDate
	c, err := svc.repo.UpdateCohort(ctx, orig)
	if err != nil {
		return Cohort{}, errors.Wrap(err, "updating cohort")
	}
	svc.cache.Invalidate(KeyCohorts)
	return c, nil
}

func (svc *Service) DeleteCohort(ctx context.Context, id string) error {
	if err := svc.repo.DeleteCohort(ctx, id); err != nil {
		return errors.Wrap(err, "deleting cohort")
	}
	svc.cache.Invalidate(KeyCohorts)
	svc.cache.InvalidatePattern(id)
	return nil
}

// Weeks

func (svc *Service) QueryWeeks(ctx context.Context, trackID string) []Week {
	weeks, err := cache.Fetch(svc.cache, keyWeeksPrefix+trackID, svc.ttl.Medium, func() ([]Week, error) {
		return svc.repo.QueryWeeks(ctx, trackID)
	})
	if err != nil {
		svc.degrade("weeks", err)
		return []Week{}
	}
	return weeks
}

func (svc *Service) CreateWeek(ctx context.Context, wi WeekInput) (Week, error) {
	if _, err := svc.repo.GetTrack(ctx, wi.TrackID); err != nil {
		return Week{}, trapNotFound(err, "track_id")
	}
	w := Week{
		ID:          uuid.New().String(),
		TrackID:     wi.TrackID,
		Number:      wi.Number,
		Title:       wi.Title,
		Description: wi.Description,
	}
	w, err := svc.repo.CreateWeek(ctx, w)
	if err != nil {
		return Week{}, errors.Wrap(err, "creating week")
	}
	svc.cache.InvalidatePattern(keyWeeksPrefix)
	return w, nil
}

func (svc *Service) UpdateWeek(ctx context.Context, id string, wi WeekInput) (Week, error) {
	w := Week{
		ID:          id,
		TrackID:     wi.TrackID,
		Number:      wi.Number,
		Title:       wi.Title,
		Description: wi.Description,
	}
	w, err := svc.repo.UpdateWeek(ctx, w)
	if err != nil {
		return Week{}, errors.Wrap(err, "updating week")
	}
	svc.cache.InvalidatePattern(keyWeeksPrefix)
	return w, nil
}

func (svc *Service) DeleteWeek(ctx context.Context, id string) error {
	if err := svc.repo.DeleteWeek(ctx, id); err != nil {
		return errors.Wrap(err, "deleting week")
	}
	svc.cache.InvalidatePattern(keyWeeksPrefix)
	svc.cache.InvalidatePattern(keyLessonsPrefix + id)
	svc.cache.InvalidatePattern(keyAssignmentsPref)
	return nil
}

// Lessons

func (svc *Service) QueryLessons(ctx context.Context, weekID string) []Lesson {
	lessons, err := cache.Fetch(svc.cache, keyLessonsPrefix+weekID, svc.ttl.Medium, func() ([]Lesson, error) {
		return svc.repo.QueryLessons(ctx, weekID)
	})
	if err != nil {
		svc.degrade("lessons", err)
		return []Lesson{}
	}
	return lessons
}

func (svc *Service) CreateLesson(ctx context.Context, li LessonInput) (Lesson, error) {
	l := Lesson{
		ID:         uuid.New().String(),
		WeekID:     li.WeekID,
		Title:      li.Title,
		ContentURL: li.ContentURL,
		Position:   li.Position,
	}
	l, err := svc.repo.CreateLesson(ctx, l)
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	svc.cache.Invalidate(keyLessonsPrefix + l.WeekID)
	return l, nil
}

func (svc *Service) UpdateLesson(ctx context.Context, id string, li LessonInput) (Lesson, error) {
	l := Lesson{
		ID:         id,
		WeekID:     li.WeekID,
		Title:      li.Title,
		ContentURL: li.ContentURL,
		Position:   li.Position,
	}
	l, err := svc.repo.UpdateLesson(ctx, l)
	if err != nil {
		return Lesson{}, errors.Wrap(err, "updating lesson")
	}
	svc.cache.InvalidatePattern(keyLessonsPrefix)
	return l, nil
}

func (svc *Service) DeleteLesson(ctx context.Context, id string) error {
	if err := svc.repo.DeleteLesson(ctx, id); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	svc.cache.InvalidatePattern(keyLessonsPrefix)
	return nil
}

// Assignments

func assignmentsKey(filter AssignmentFilter) string {
	return keyAssignmentsPref + filter.TrackID + ":" + filter.WeekID
}

func (svc *Service) QueryAssignments(ctx context.Context, filter AssignmentFilter) []Assignment {
	assignments, err := cache.Fetch(svc.cache, assignmentsKey(filter), svc.ttl.Medium, func() ([]Assignment, error) {
		return svc.repo.QueryAssignments(ctx, filter)
	})
	if err != nil {
		svc.degrade("assignments", err)
		return []Assignment{}
	}
	return assignments
}

func (svc *Service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) CreateAssignment(ctx context.Context, ai AssignmentInput) (Assignment, error) {
	if _, err := svc.repo.GetTrack(ctx, ai.TrackID); err != nil {
		return Assignment{}, trapNotFound(err, "track_id")
	}
	a := Assignment{
		ID:          uuid.New().String(),
		TrackID:     ai.TrackID,
		WeekID:      ai.WeekID,
		Title:       ai.Title,
		Description: ai.Description,
		DueDate:     ai.DueDate,
	}
	a, err := svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	svc.cache.InvalidatePattern(keyAssignmentsPref)
	return a, nil
}

func (svc *Service) UpdateAssignment(ctx context.Context, id string, ai AssignmentInput) (Assignment, error) {
	a := Assignment{
		ID:          id,
		TrackID:     ai.TrackID,
		WeekID:      ai.WeekID,
		Title:       ai.Title,
		Description: ai.Description,
		DueDate:     ai.DueDate,
	}
	a, err := svc.repo.UpdateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	svc.cache.InvalidatePattern(keyAssignmentsPref)
	return a, nil
}

func (svc *Service) DeleteAssignment(ctx context.Context, id string) error {
	if err := svc.repo.DeleteAssignment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	svc.cache.InvalidatePattern(keyAssignmentsPref)
	return nil
}

// trapNotFound turns a missing referenced row into a field validation error.
func trapNotFound(err error, field string) error {
	if core.IsNotFound(err) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return err
}
