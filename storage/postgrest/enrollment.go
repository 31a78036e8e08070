package postgrest

import (
	"context"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
)

// tables
const (
	tableStudents    = "students"
	tableEnrollments = "enrollments"
	tableWhitelist   = "whitelist"
)

var byCreation = core.DBOrdering{Field: "created_at", Ascending: true}

type enrollmentRepository struct {
	client *Client
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(client *Client) enrollment.Repository {
	return &enrollmentRepository{client: client}
}

// Students

func (repo *enrollmentRepository) GetStudent(ctx context.Context, id string) (enrollment.Student, error) {
	return selectOne[enrollment.Student](ctx, repo.client, tableStudents, NewQuery().Eq("id", id), enrollment.ErrStudentNotFound)
}

func (repo *enrollmentRepository) QueryStudents(ctx context.Context, ids ...string) ([]enrollment.Student, error) {
	q := NewQuery().Select("*").Order(byCreation)
	if len(ids) > 0 {
		q.In("id", ids...)
	}
	return selectRows[enrollment.Student](ctx, repo.client, tableStudents, q)
}

func (repo *enrollmentRepository) CreateStudent(ctx context.Context, s enrollment.Student) (enrollment.Student, error) {
	return insertOne(ctx, repo.client, tableStudents, s, enrollment.ErrAccountExists)
}

// Enrollments

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.EnrollmentFilter) ([]enrollment.Enrollment, error) {
	q := NewQuery().Select("*").
		Eq("student_id", filter.StudentID).
		Eq("track_id", filter.TrackID).
		Eq("cohort_id", filter.CohortID).
		Order(byCreation)
	return selectRows[enrollment.Enrollment](ctx, repo.client, tableEnrollments, q)
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	return selectOne[enrollment.Enrollment](ctx, repo.client, tableEnrollments, NewQuery().Eq("id", id), enrollment.ErrEnrollmentNotFound)
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	return insertOne(ctx, repo.client, tableEnrollments, e, enrollment.ErrAlreadyEnrolled)
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableEnrollments, id, enrollment.ErrEnrollmentNotFound)
}

// Whitelist

func (repo *enrollmentRepository) QueryWhitelist(ctx context.Context) ([]enrollment.WhitelistEntry, error) {
	return selectRows[enrollment.WhitelistEntry](ctx, repo.client, tableWhitelist, NewQuery().Select("*").Order(byCreation))
}

func (repo *enrollmentRepository) GetWhitelistEntry(ctx context.Context, id string) (enrollment.WhitelistEntry, error) {
	return selectOne[enrollment.WhitelistEntry](ctx, repo.client, tableWhitelist, NewQuery().Eq("id", id), enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) FindWhitelistEntry(ctx context.Context, email, trackID, cohortID string) (enrollment.WhitelistEntry, error) {
	if email == "" || trackID == "" || cohortID == "" {
		return enrollment.WhitelistEntry{}, enrollment.ErrWhitelistEntryNotFound
	}
	q := NewQuery().Eq("email", email).Eq("track_id", trackID).Eq("cohort_id", cohortID)
	return selectOne[enrollment.WhitelistEntry](ctx, repo.client, tableWhitelist, q, enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) CreateWhitelistEntry(ctx context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	return insertOne(ctx, repo.client, tableWhitelist, we, enrollment.ErrAlreadyWhitelisted)
}

func (repo *enrollmentRepository) UpdateWhitelistEntry(ctx context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	return updateOne(ctx, repo.client, tableWhitelist, we.ID, we, enrollment.ErrWhitelistEntryNotFound, enrollment.ErrAlreadyWhitelisted)
}

func (repo *enrollmentRepository) DeleteWhitelistEntry(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tableWhitelist, id, enrollment.ErrWhitelistEntryNotFound)
}
