package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cohortly/lms/core/curriculum"
)

type curriculumRepository struct {
	db *sqlx.DB
}

var _ curriculum.Repository = (*curriculumRepository)(nil) // interface compliance check

func NewCurriculumRepository(db *sqlx.DB) curriculum.Repository {
	return &curriculumRepository{db: db}
}

// Tracks

func (repo *curriculumRepository) QueryTracks(ctx context.Context) ([]curriculum.Track, error) {
	tracks := make([]curriculum.Track, 0)
	if err := repo.db.SelectContext(ctx, &tracks, "SELECT * FROM tracks ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "selecting tracks")
	}
	return tracks, nil
}

func (repo *curriculumRepository) GetTrack(ctx context.Context, id string) (curriculum.Track, error) {
	var t curriculum.Track
	if err := repo.db.GetContext(ctx, &t, "SELECT * FROM tracks WHERE id = $1", id); err != nil {
		return curriculum.Track{}, trapNoRowsErr(err, curriculum.ErrTrackNotFound, "selecting track")
	}
	return t, nil
}

func (repo *curriculumRepository) CreateTrack(ctx context.Context, t curriculum.Track) (curriculum.Track, error) {
	const q = `INSERT INTO tracks (id, name, description, created_at) VALUES (:id, :name, :description, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, t); err != nil {
		return curriculum.Track{}, errors.Wrap(err, "inserting track")
	}
	return t, nil
}

func (repo *curriculumRepository) UpdateTrack(ctx context.Context, t curriculum.Track) (curriculum.Track, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE tracks SET name = :name, description = :description WHERE id = :id`, t)
	if err != nil {
		return curriculum.Track{}, trapNoRowsErr(err, curriculum.ErrTrackNotFound, "updating track")
	}
	return t, expectOne(res, curriculum.ErrTrackNotFound)
}

// DeleteTrack cascades to weeks, lessons and assignments through the foreign keys.
func (repo *curriculumRepository) DeleteTrack(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "tracks", id, curriculum.ErrTrackNotFound)
}

// Cohorts

func (repo *curriculumRepository) QueryCohorts(ctx context.Context) ([]curriculum.Cohort, error) {
	cohorts := make([]curriculum.Cohort, 0)
	if err := repo.db.SelectContext(ctx, &cohorts, "SELECT * FROM cohorts ORDER BY start_date DESC"); err != nil {
		return nil, errors.Wrap(err, "selecting cohorts")
	}
	return cohorts, nil
}

func (repo *curriculumRepository) GetCohort(ctx context.Context, id string) (curriculum.Cohort, error) {
	var c curriculum.Cohort
	if err := repo.db.GetContext(ctx, &c, "SELECT * FROM cohorts WHERE id = $1", id); err != nil {
		return curriculum.Cohort{}, trapNoRowsErr(err, curriculum.ErrCohortNotFound, "selecting cohort")
	}
	return c, nil
}

func (repo *curriculumRepository) CreateCohort(ctx context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	const q = `INSERT INTO cohorts (id, name, start_date, end_date, created_at)
		VALUES (:id, :name, :start_date, :end_date, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, c); err != nil {
		return curriculum.Cohort{}, errors.Wrap(err, "inserting cohort")
	}
	return c, nil
}

func (repo *curriculumRepository) UpdateCohort(ctx context.Context, c curriculum.Cohort) (curriculum.Cohort, error) {
	const q = `UPDATE cohorts SET name = :name, start_date = :start_date, end_date = :end_date WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return curriculum.Cohort{}, trapNoRowsErr(err, curriculum.ErrCohortNotFound, "updating cohort")
	}
	return c, expectOne(res, curriculum.ErrCohortNotFound)
}

func (repo *curriculumRepository) DeleteCohort(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "cohorts", id, curriculum.ErrCohortNotFound)
}

// Weeks

func (repo *curriculumRepository) QueryWeeks(ctx context.Context, trackID string) ([]curriculum.Week, error) {
	w := new(where).eq("track_id", trackID)
	weeks := make([]curriculum.Week, 0)
	q := repo.db.Rebind("SELECT * FROM weeks" + w.String() + " ORDER BY number")
	if err := repo.db.SelectContext(ctx, &weeks, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting weeks")
	}
	return weeks, nil
}

func (repo *curriculumRepository) CreateWeek(ctx context.Context, wk curriculum.Week) (curriculum.Week, error) {
	const q = `INSERT INTO weeks (id, track_id, number, title, description)
		VALUES (:id, :track_id, :number, :title, :description)`
	if _, err := repo.db.NamedExecContext(ctx, q, wk); err != nil {
		return curriculum.Week{}, errors.Wrap(err, "inserting week")
	}
	return wk, nil
}

func (repo *curriculumRepository) UpdateWeek(ctx context.Context, wk curriculum.Week) (curriculum.Week, error) {
	const q = `UPDATE weeks SET track_id = :track_id, number = :number, title = :title, description = :description WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, wk)
	if err != nil {
		return curriculum.Week{}, trapNoRowsErr(err, curriculum.ErrWeekNotFound, "updating week")
	}
	return wk, expectOne(res, curriculum.ErrWeekNotFound)
}

func (repo *curriculumRepository) DeleteWeek(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "weeks", id, curriculum.ErrWeekNotFound)
}

// Lessons

func (repo *curriculumRepository) QueryLessons(ctx context.Context, weekID string) ([]curriculum.Lesson, error) {
	lessons := make([]curriculum.Lesson, 0)
	if err := repo.db.SelectContext(ctx, &lessons, "SELECT * FROM lessons WHERE week_id = $1 ORDER BY position", weekID); err != nil {
		return nil, errors.Wrap(err, "selecting lessons")
	}
	return lessons, nil
}

func (repo *curriculumRepository) CreateLesson(ctx context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	const q = `INSERT INTO lessons (id, week_id, title, content_url, position)
		VALUES (:id, :week_id, :title, :content_url, :position)`
	if _, err := repo.db.NamedExecContext(ctx, q, l); err != nil {
		return curriculum.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return l, nil
}

func (repo *curriculumRepository) UpdateLesson(ctx context.Context, l curriculum.Lesson) (curriculum.Lesson, error) {
	const q = `UPDATE lessons SET week_id = :week_id, title = :title, content_url = :content_url, position = :position WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, l)
	if err != nil {
		return curriculum.Lesson{}, trapNoRowsErr(err, curriculum.ErrLessonNotFound, "updating lesson")
	}
	return l, expectOne(res, curriculum.ErrLessonNotFound)
}

func (repo *curriculumRepository) DeleteLesson(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "lessons", id, curriculum.ErrLessonNotFound)
}

// Assignments

// assignmentRow has a nullable week and due date.
type assignmentRow struct {
	ID          string      `db:"id"`
	TrackID     string      `db:"track_id"`
	WeekID      null.String `db:"week_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	DueDate     null.Time   `db:"due_date"`
}

func toAssignmentRow(a curriculum.Assignment) assignmentRow {
	return assignmentRow{
		ID:          a.ID,
		TrackID:     a.TrackID,
		WeekID:      nullString(a.WeekID),
		Title:       a.Title,
		Description: a.Description,
		DueDate:     null.TimeFromPtr(a.DueDate),
	}
}

func (r assignmentRow) assignment() curriculum.Assignment {
	return curriculum.Assignment{
		ID:          r.ID,
		TrackID:     r.TrackID,
		WeekID:      r.WeekID.String,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.Ptr(),
	}
}

func (repo *curriculumRepository) QueryAssignments(ctx context.Context, filter curriculum.AssignmentFilter) ([]curriculum.Assignment, error) {
	w := new(where).eq("track_id", filter.TrackID).eq("week_id", filter.WeekID)
	var rows []assignmentRow
	q := repo.db.Rebind("SELECT * FROM assignments" + w.String() + " ORDER BY due_date NULLS LAST, title")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]curriculum.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.assignment())
	}
	return assignments, nil
}

func (repo *curriculumRepository) GetAssignment(ctx context.Context, id string) (curriculum.Assignment, error) {
	var r assignmentRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM assignments WHERE id = $1", id); err != nil {
		return curriculum.Assignment{}, trapNoRowsErr(err, curriculum.ErrAssignmentNotFound, "selecting assignment")
	}
	return r.assignment(), nil
}

func (repo *curriculumRepository) CreateAssignment(ctx context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	const q = `INSERT INTO assignments (id, track_id, week_id, title, description, due_date)
		VALUES (:id, :track_id, :week_id, :title, :description, :due_date)`
	if _, err := repo.db.NamedExecContext(ctx, q, toAssignmentRow(a)); err != nil {
		return curriculum.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *curriculumRepository) UpdateAssignment(ctx context.Context, a curriculum.Assignment) (curriculum.Assignment, error) {
	const q = `UPDATE assignments SET track_id = :track_id, week_id = :week_id, title = :title,
		description = :description, due_date = :due_date WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toAssignmentRow(a))
	if err != nil {
		return curriculum.Assignment{}, trapNoRowsErr(err, curriculum.ErrAssignmentNotFound, "updating assignment")
	}
	return a, expectOne(res, curriculum.ErrAssignmentNotFound)
}

func (repo *curriculumRepository) DeleteAssignment(ctx context.Context, id string) error {
	return repo.deleteByID(ctx, "assignments", id, curriculum.ErrAssignmentNotFound)
}

func (repo *curriculumRepository) deleteByID(ctx context.Context, table, id string, notFound error) error {
	return deleteByID(ctx, repo.db, table, id, notFound)
}

// deleteByID is only ever called with a table name constant.
func deleteByID(ctx context.Context, db *sqlx.DB, table, id string, notFound error) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, notFound, "deleting from "+table)
	}
	return expectOne(res, notFound)
}
