package postgrest

import (
	"context"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/curriculum"
)

// tables
const (
	tableTracks      = "tracks"
	tableCohorts     = "cohorts"
	tableWeeks       = "weeks"
	tableLessons     = "lessons"
	tableAssignments = "assignments"
)

type curriculumRepository struct {
	client *Client
}

var _ curriculum.Repository = (*curriculumRepository)(nil) // interface compliance check

func NewCurriculumRepository(client *Client) curriculum.Repository {
	return &curriculumRepository{client: client}
}

// Tracks

func (repo *curriculumRepository) QueryTracks(ctx context.Context) ([]curriculum.Track, error) {
	q := NewQuery().Select("*").Order(core.DBOrdering{Field: "name", Ascending: true})
	return selectRows[curriculum.Track](ctx, repo.client, tableTracks, q)
}

func (repo *curriculumRepository) GetTrack(ctx context.Context, id string) (curriculum.Track, error) {
	return selectOne[curriculum.Track](ctx, repo.client, tableTracks, NewQuery().Eq("id", id), curriculum.ErrTrackNotFound)
}

func (repo *curriculumRepository) CreateTrack(ctx context.Context, t curriculum.Track) (curriculum.Track, error) {
	return insertOne(ctx, repo.client, tableTracks, t, nil)
}

func (repo *curriculumRepository) UpdateTrack(ctx context.Context, t curriculum.Track) (curriculum.Track, error) {
	return updateOne(ctx, repo.client, tableTracks, t.ID, t, curriculum.ErrTrackNotFound, nil)
}

// DeleteTrack relies on the ON DELETE CASCADE foreign keys of weeks, lessons and assignments.
func (repo *curriculumRepository) DeleteTrack(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableTracks, id, curriculum.ErrTrackNotFound)
}

// Cohorts

func (repo *curriculumRepository) QueryCohorts(ctx context.Context) ([]curriculum.Cohort, error) {
	q := NewQuery().Select("*").Order(core.DBOrdering{Field: "start_date"})
	return selectRows[curriculum.Cohort](ctx, repo.client, tableCohorts, q)
}

func (repo *curriculumRepository) GetCohort(ctx context.Context, id string) (curriculum.Cohort, error) {
	return selectOne[curriculum.Cohort](ctx, repo.client, tableCohorts, NewQuery().Eq("id", id), curriculum.ErrCohortNotFound)
}

func (repo *curriculumRepository) CreateCohort(ctx context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	return insertOne(ctx, repo.client, tableCohorts, c, nil)
}

func (repo *curriculumRepository) UpdateCohort(ctx context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	return updateOne(ctx, repo.client, tableCohorts, c.ID, c, curriculum.ErrCohortNotFound, nil)
}

func (repo *curriculumRepository) DeleteCohort(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableCohorts, id, curriculum.ErrCohortNotFound)
}

// Weeks

func (repo *curriculumRepository) QueryWeeks(ctx context.Context, trackID string) ([]curriculum.Week, error) {
	q := NewQuery().Select("*").Eq("track_id", trackID).Order(core.DBOrdering{Field: "number", Ascending: true})
	return selectRows[curriculum.Week](ctx, repo.client, tableWeeks, q)
}

func (repo *curriculumRepository) CreateWeek(ctx context.Context, w curriculum.Week) (curriculum.Week, error) {
	return insertOne(ctx, repo.client, tableWeeks, w, nil)
}

func (repo *curriculumRepository) UpdateWeek(ctx context.Context, w curriculum.Week) (curriculum.Week, error) {
	return updateOne(ctx, repo.client, tableWeeks, w.ID, w, curriculum.ErrWeekNotFound, nil)
}

func (repo *curriculumRepository) DeleteWeek(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableWeeks, id, curriculum.ErrWeekNotFound)
}

// Lessons

func (repo *curriculumRepository) QueryLessons(ctx context.Context, weekID string) ([]curriculum.Lesson, error) {
	q := NewQuery().Select("*").Eq("week_id", weekID).Order(core.DBOrdering{Field: "position", Ascending: true})
	return selectRows[curriculum.Lesson](ctx, repo.client, tableLessons, q)
}

func (repo *curriculumRepository) CreateLesson(ctx context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	return insertOne(ctx, repo.client, tableLessons, l, nil)
}

func (repo *curriculumRepository) UpdateLesson(ctx context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	return updateOne(ctx, repo.client, tableLessons, l.ID, l, curriculum.ErrLessonNotFound, nil)
}

func (repo *curriculumRepository) DeleteLesson(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableLessons, id, curriculum.ErrLessonNotFound)
}

// Assignments

func (repo *curriculumRepository) QueryAssignments(ctx context.Context, filter curriculum.AssignmentFilter) ([]curriculum.Assignment, error) {
	q := NewQuery().Select("*").
		Eq("track_id", filter.TrackID).
		Eq("week_id", filter.WeekID).
		Order(core.DBOrdering{Field: "title", Ascending: true})
	return selectRows[curriculum.Assignment](ctx, repo.client, tableAssignments, q)
}

func (repo *curriculumRepository) GetAssignment(ctx context.Context, id string) (curriculum.Assignment, error) {
	return selectOne[curriculum.Assignment](ctx, repo.client, tableAssignments, NewQuery().Eq("id", id), curriculum.ErrAssignmentNotFound)
}

func (repo *curriculumRepository) CreateAssignment(ctx context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	return insertOne(ctx, repo.client, tableAssignments, a, nil)
}

func (repo *curriculumRepository) UpdateAssignment(ctx context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	return updateOne(ctx, repo.client, tableAssignments, a.ID, a, curriculum.ErrAssignmentNotFound, nil)
}

func (repo *curriculumRepository) DeleteAssignment(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableAssignments, id, curriculum.ErrAssignmentNotFound)
}
