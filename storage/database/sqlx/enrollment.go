package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cohortly/lms/core/enrollment"
)

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

// Students

type studentRow struct {
	ID             string      `db:"id"`
	Email          string      `db:"email"`
	FullName       string      `db:"full_name"`
	GithubUsername null.String `db:"github_username"`
	Role           string      `db:"role"`
	CreatedAt      time.Time   `db:"created_at"`
}

func toStudentRow(s enrollment.Student) studentRow {
	return studentRow{
		ID:             s.ID,
		Email:          s.Email,
		FullName:       s.FullName,
		GithubUsername: nullString(s.GithubUsername),
		Role:           s.Role,
		CreatedAt:      s.CreatedAt.UTC(),
	}
}

func (r studentRow) student() enrollment.Student {
	return enrollment.Student{
		ID:             r.ID,
		Email:          r.Email,
		FullName:       r.FullName,
		GithubUsername: r.GithubUsername.String,
		Role:           r.Role,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func students(rows []studentRow) []enrollment.Student {
	out := make([]enrollment.Student, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.student())
	}
	return out
}

func (repo *enrollmentRepository) GetStudent(ctx context.Context, id string) (enrollment.Student, error) {
	var r studentRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM students WHERE id = $1", id); err != nil {
		return enrollment.Student{}, trapNoRowsErr(err, enrollment.ErrStudentNotFound, "selecting student")
	}
	return r.student(), nil
}

func (repo *enrollmentRepository) QueryStudents(ctx context.Context, ids ...string) ([]enrollment.Student, error) {
	var (
		rows []studentRow
		err  error
	)
	if len(ids) == 0 {
		err = repo.db.SelectContext(ctx, &rows, "SELECT * FROM students ORDER BY created_at")
	} else {
		q, args, inErr := selectIn(repo.db, "SELECT * FROM students WHERE id IN (?) ORDER BY created_at", ids)
		if inErr != nil {
			return nil, inErr
		}
		err = repo.db.SelectContext(ctx, &rows, q, args...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students(rows), nil
}

func (repo *enrollmentRepository) CreateStudent(ctx context.Context, s enrollment.Student) (enrollment.Student, error) {
	const q = `INSERT INTO students (id, email, full_name, github_username, role, created_at)
		VALUES (:id, :email, :full_name, :github_username, :role, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toStudentRow(s)); err != nil {
		return enrollment.Student{}, trapUniqueErr(err, enrollment.ErrAccountExists, "inserting student")
	}
	return s, nil
}

// Enrollments

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.EnrollmentFilter) ([]enrollment.Enrollment, error) {
	w := new(where).
		eq("student_id", filter.StudentID).
		eq("track_id", filter.TrackID).
		eq("cohort_id", filter.CohortID)
	enrs := make([]enrollment.Enrollment, 0)
	q := repo.db.Rebind("SELECT * FROM enrollments" + w.String() + " ORDER BY created_at")
	if err := repo.db.SelectContext(ctx, &enrs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return enrs, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	if err := repo.db.GetContext(ctx, &e, "SELECT * FROM enrollments WHERE id = $1", id); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrEnrollmentNotFound, "selecting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	const q = `INSERT INTO enrollments (id, student_id, track_id, cohort_id, created_at)
		VALUES (:id, :student_id, :track_id, :cohort_id, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, e); err != nil {
		return enrollment.Enrollment{}, trapUniqueErr(err, enrollment.ErrAlreadyEnrolled, "inserting enrollment")
	}
	return e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.db, "enrollments", id, enrollment.ErrEnrollmentNotFound)
}

// Whitelist

func (repo *enrollmentRepository) QueryWhitelist(ctx context.Context) ([]enrollment.WhitelistEntry, error) {
	entries := make([]enrollment.WhitelistEntry, 0)
	if err := repo.db.SelectContext(ctx, &entries, "SELECT * FROM whitelist ORDER BY created_at"); err != nil {
		return nil, errors.Wrap(err, "selecting whitelist")
	}
	return entries, nil
}

func (repo *enrollmentRepository) GetWhitelistEntry(ctx context.Context, id string) (enrollment.WhitelistEntry, error) {
	var we enrollment.WhitelistEntry
	if err := repo.db.GetContext(ctx, &we, "SELECT * FROM whitelist WHERE id = $1", id); err != nil {
		return enrollment.WhitelistEntry{}, trapNoRowsErr(err, enrollment.ErrWhitelistEntryNotFound, "selecting whitelist entry")
	}
	return we, nil
}

func (repo *enrollmentRepository) FindWhitelistEntry(ctx context.Context, email, trackID, cohortID string) (enrollment.WhitelistEntry, error) {
	const q = `SELECT * FROM whitelist WHERE email = $1 AND track_id = $2 AND cohort_id = $3`
	var we enrollment.WhitelistEntry
	if err := repo.db.GetContext(ctx, &we, q, email, trackID, cohortID); err != nil {
		return enrollment.WhitelistEntry{}, trapNoRowsErr(err, enrollment.ErrWhitelistEntryNotFound, "selecting whitelist entry")
	}
	return we, nil
}

func (repo *enrollmentRepository) CreateWhitelistEntry(ctx context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	const q = `INSERT INTO whitelist (id, email, track_id, cohort_id, status, created_at)
		VALUES (:id, :email, :track_id, :cohort_id, :status, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, we); err != nil {
		return enrollment.WhitelistEntry{}, trapUniqueErr(err, enrollment.ErrAlreadyWhitelisted, "inserting whitelist entry")
	}
	return we, nil
}

func (repo *enrollmentRepository) UpdateWhitelistEntry(ctx context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	const q = `UPDATE whitelist SET email = :email, track_id = :track_id, cohort_id = :cohort_id, status = :status WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, we)
	if err != nil {
		return enrollment.WhitelistEntry{}, trapUniqueErr(err, enrollment.ErrAlreadyWhitelisted, "updating whitelist entry")
	}
	return we, expectOne(res, enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) DeleteWhitelistEntry(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.db, "whitelist", id, enrollment.ErrWhitelistEntryNotFound)
}
