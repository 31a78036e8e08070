package inmemdb

import (
	"context"
	"sort"

	"github.com/cohortly/lms/core/curriculum"
)

type curriculumRepository struct {
	db *DB
}

func NewCurriculumRepository(db *DB) curriculum.Repository {
	return &curriculumRepository{db: db}
}

// Tracks

func (repo *curriculumRepository) QueryTracks(context.Context) ([]curriculum.Track, error) {
	tracks := repo.db.tracks.filter(nil)
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].Name < tracks[j].Name })
	return tracks, nil
}

func (repo *curriculumRepository) GetTrack(_ context.Context, id string) (curriculum.Track, error) {
	return repo.db.tracks.get(id, curriculum.ErrTrackNotFound)
}

func (repo *curriculumRepository) CreateTrack(_ context.Context, t curriculum.Track) (curriculum.Track, error) {
	return repo.db.tracks.insert(t), nil
}

func (repo *curriculumRepository) UpdateTrack(_ context.Context, t curriculum.Track) (curriculum.Track, error) {
	return repo.db.tracks.update(t, curriculum.ErrTrackNotFound)
}

// DeleteTrack cascades to the track's weeks, lessons and assignments.
func (repo *curriculumRepository) DeleteTrack(_ context.Context, id string) error {
	if err := repo.db.tracks.deleteByID(id, curriculum.ErrTrackNotFound); err != nil {
		return err
	}
	weeks := repo.db.weeks.filter(func(w curriculum.Week) bool { return w.TrackID == id })
	for _, w := range weeks {
		repo.deleteWeek(w.ID)
	}
	repo.db.assignments.delete(func(a curriculum.Assignment) bool { return a.TrackID == id })
	return nil
}

// Cohorts

func (repo *curriculumRepository) QueryCohorts(context.Context) ([]curriculum.Cohort, error) {
	cohorts := repo.db.cohorts.filter(nil)
	sort.SliceStable(cohorts, func(i, j int) bool { return cohorts[i].StartDate.After(cohorts[j].StartDate) })
	return cohorts, nil
}

func (repo *curriculumRepository) GetCohort(_ context.Context, id string) (curriculum.Cohort, error) {
	return repo.db.cohorts.get(id, curriculum.ErrCohortNotFound)
}

func (repo *curriculumRepository) CreateCohort(_ context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	return repo.db.cohorts.insert(c), nil
}

func (repo *curriculumRepository) UpdateCohort(_ context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	return repo.db.cohorts.update(c, curriculum.ErrCohortNotFound)
}

func (repo *curriculumRepository) DeleteCohort(_ context.Context, id string) error {
	return repo.db.cohorts.deleteByID(id, curriculum.ErrCohortNotFound)
}

// Weeks

func (repo *curriculumRepository) QueryWeeks(_ context.Context, trackID string) ([]curriculum.Week, error) {
	weeks := repo.db.weeks.filter(func(w curriculum.Week) bool { return trackID == "" || w.TrackID == trackID })
	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].Number < weeks[j].Number })
	return weeks, nil
}

func (repo *curriculumRepository) CreateWeek(_ context.Context, w curriculum.Week) (curriculum.Week, error) {
	return repo.db.weeks.insert(w), nil
}

func (repo *curriculumRepository) UpdateWeek(_ context.Context, w curriculum.Week) (curriculum.Week, error) {
	return repo.db.weeks.update(w, curriculum.ErrWeekNotFound)
}

func (repo *curriculumRepository) DeleteWeek(_ context.Context, id string) error {
	if _, err := repo.db.weeks.get(id, curriculum.ErrWeekNotFound); err != nil {
		return err
	}
	repo.deleteWeek(id)
	return nil
}

func (repo *curriculumRepository) deleteWeek(id string) {
	repo.db.weeks.delete(func(w curriculum.Week) bool { return w.ID == id })
	repo.db.lessons.delete(func(l curriculum.Lesson) bool { return l.WeekID == id })
}

// Lessons

func (repo *curriculumRepository) QueryLessons(_ context.Context, weekID string) ([]curriculum.Lesson, error) {
	lessons := repo.db.lessons.filter(func(l curriculum.Lesson) bool { return l.WeekID == weekID })
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Position < lessons[j].Position })
	return lessons, nil
}

func (repo *curriculumRepository) CreateLesson(_ context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	return repo.db.lessons.insert(l), nil
}

func (repo *curriculumRepository) UpdateLesson(_ context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	return repo.db.lessons.update(l, curriculum.ErrLessonNotFound)
}

func (repo *curriculumRepository) DeleteLesson(_ context.Context, id string) error {
	return repo.db.lessons.deleteByID(id, curriculum.ErrLessonNotFound)
}

// Assignments

func (repo *curriculumRepository) QueryAssignments(_ context.Context, filter curriculum.AssignmentFilter) ([]curriculum.Assignment, error) {
	return repo.db.assignments.filter(func(a curriculum.Assignment) bool {
		return (filter.TrackID == "" || a.TrackID == filter.TrackID) &&
			(filter.WeekID == "" || a.WeekID == filter.WeekID)
	}), nil
}

func (repo *curriculumRepository) GetAssignment(_ context.Context, id string) (curriculum.Assignment, error) {
	return repo.db.assignments.get(id, curriculum.ErrAssignmentNotFound)
}

func (repo *curriculumRepository) CreateAssignment(_ context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	return repo.db.assignments.insert(a), nil
}

func (repo *curriculumRepository) UpdateAssignment(_ context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	return repo.db.assignments.update(a, curriculum.ErrAssignmentNotFound)
}

func (repo *curriculumRepository) DeleteAssignment(_ context.Context, id string) error {
	return repo.db.assignments.deleteByID(id, curriculum.ErrAssignmentNotFound)
}
