package postgrest

import (
	"context"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

// tables
const (
	tableSubmissions  = "submissions"
	tablePartnerships = "partnerships"
	tableClarityCalls = "clarity_calls"
)

// Submissions

type submissionRepository struct {
	client *Client
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(client *Client) submission.Repository {
	return &submissionRepository{client: client}
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.Filter) ([]submission.Submission, error) {
	q := NewQuery().Select("*").
		Eq("student_id", filter.StudentID).
		Eq("assignment_id", filter.AssignmentID).
		Eq("status", filter.Status).
		Order(core.DBOrdering{Field: "submitted_at"})
	return selectRows[submission.Submission](ctx, repo.client, tableSubmissions, q)
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	return selectOne[submission.Submission](ctx, repo.client, tableSubmissions, NewQuery().Eq("id", id), submission.ErrNotFound)
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	return insertOne(ctx, repo.client, tableSubmissions, s, submission.ErrAlreadySubmitted)
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	return updateOne(ctx, repo.client, tableSubmissions, s.ID, s, submission.ErrNotFound, nil)
}

// Partnerships

type partnershipRepository struct {
	client *Client
}

var _ partnership.Repository = (*partnershipRepository)(nil) // interface compliance check

func NewPartnershipRepository(client *Client) partnership.Repository {
	return &partnershipRepository{client: client}
}

func (repo *partnershipRepository) QueryPartnerships(ctx context.Context, filter partnership.Filter) ([]partnership.Partnership, error) {
	q := NewQuery().Select("*").
		Eq("track_id", filter.TrackID).
		Eq("cohort_id", filter.CohortID).
		Order(byCreation)
	if filter.StudentID != "" {
		q.OrEq(filter.StudentID, "student_a_id", "student_b_id")
	}
	return selectRows[partnership.Partnership](ctx, repo.client, tablePartnerships, q)
}

func (repo *partnershipRepository) GetPartnership(ctx context.Context, id string) (partnership.Partnership, error) {
	return selectOne[partnership.Partnership](ctx, repo.client, tablePartnerships, NewQuery().Eq("id", id), partnership.ErrNotFound)
}

// CreatePartnership is a plain insert: the REST API has no transaction to check the members are still unpaired.
// Concurrent runs rely on the service's own check, and on a unique index when the schema has one.
func (repo *partnershipRepository) CreatePartnership(ctx context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	return insertOne(ctx, repo.client, tablePartnerships, p, partnership.ErrAlreadyPaired)
}

func (repo *partnershipRepository) UpdatePartnership(ctx context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	return updateOne(ctx, repo.client, tablePartnerships, p.ID, p, partnership.ErrNotFound, partnership.ErrAlreadyPaired)
}

func (repo *partnershipRepository) DeletePartnership(ctx context.Context, id string) error {
	return deleteOne(ctx, repo.client, tablePartnerships, id, partnership.ErrNotFound)
}

// Clarity calls

type clarityCallRepository struct {
	client *Client
}

var _ claritycall.Repository = (*clarityCallRepository)(nil) // interface compliance check

func NewClarityCallRepository(client *Client) claritycall.Repository {
	return &clarityCallRepository{client: client}
}

func (repo *clarityCallRepository) QueryRequests(ctx context.Context, filter claritycall.Filter) ([]claritycall.Request, error) {
	q := NewQuery().Select("*").
		Eq("student_id", filter.StudentID).
		Eq("track_id", filter.TrackID).
		Eq("cohort_id", filter.CohortID).
		Eq("status", filter.Status).
		Order(core.DBOrdering{Field: "created_at"})
	return selectRows[claritycall.Request](ctx, repo.client, tableClarityCalls, q)
}

func (repo *clarityCallRepository) GetRequest(ctx context.Context, id string) (claritycall.Request, error) {
	return selectOne[claritycall.Request](ctx, repo.client, tableClarityCalls, NewQuery().Eq("id", id), claritycall.ErrNotFound)
}

func (repo *clarityCallRepository) CreateRequest(ctx context.Context, r claritycall.Request) (claritycall.Request, error) {
	return insertOne(ctx, repo.client, tableClarityCalls, r, nil)
}

func (repo *clarityCallRepository) UpdateRequest(ctx context.Context, r claritycall.Request) (claritycall.Request, error) {
	return updateOne(ctx, repo.client, tableClarityCalls, r.ID, r, claritycall.ErrNotFound, nil)
}
