package inmemdb

import (
	"context"

	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

// Submissions

type submissionRepository struct {
	db *DB
}

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.Filter) ([]submission.Submission, error) {
	subs := repo.db.submissions.filter(func(s submission.Submission) bool {
		return (filter.StudentID == "" || s.StudentID == filter.StudentID) &&
			(filter.AssignmentID == "" || s.AssignmentID == filter.AssignmentID) &&
			(filter.Status == "" || s.Status == filter.Status)
	})
	reverse(subs)
	return subs, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	return repo.db.submissions.get(id, submission.ErrNotFound)
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	return repo.db.submissions.insert(s), nil
}

func (repo *submissionRepository) UpdateSubmission(_ context.Context, s submission.Submission) (submission.Submission, error) {
	return repo.db.submissions.update(s, submission.ErrNotFound)
}

// Partnerships

type partnershipRepository struct {
	db *DB
}

func NewPartnershipRepository(db *DB) partnership.Repository {
	return &partnershipRepository{db: db}
}

func (repo *partnershipRepository) QueryPartnerships(_ context.Context, filter partnership.Filter) ([]partnership.Partnership, error) {
	return repo.db.partnerships.filter(func(p partnership.Partnership) bool {
		return (filter.TrackID == "" || p.TrackID == filter.TrackID) &&
			(filter.CohortID == "" || p.CohortID == filter.CohortID) &&
			(filter.StudentID == "" || p.Has(filter.StudentID))
	}), nil
}

func (repo *partnershipRepository) GetPartnership(_ context.Context, id string) (partnership.Partnership, error) {
	return repo.db.partnerships.get(id, partnership.ErrNotFound)
}

// CreatePartnership checks and inserts under the same lock, so a student never ends up in two partnerships.
func (repo *partnershipRepository) CreatePartnership(_ context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	return repo.db.partnerships.insertIf(p, func(rows []partnership.Partnership) error {
		for _, row := range rows {
			if row.TrackID == p.TrackID && row.CohortID == p.CohortID && (row.Has(p.StudentAID) || row.Has(p.StudentBID)) {
				return partnership.ErrAlreadyPaired
			}
		}
		return nil
	})
}

func (repo *partnershipRepository) UpdatePartnership(_ context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	return repo.db.partnerships.update(p, partnership.ErrNotFound)
}

func (repo *partnershipRepository) DeletePartnership(_ context.Context, id string) error {
	return repo.db.partnerships.deleteByID(id, partnership.ErrNotFound)
}

// Clarity calls

type clarityCallRepository struct {
	db *DB
}

func NewClarityCallRepository(db *DB) claritycall.Repository {
	return &clarityCallRepository{db: db}
}

func (repo *clarityCallRepository) QueryRequests(_ context.Context, filter claritycall.Filter) ([]claritycall.Request, error) {
	reqs := repo.db.calls.filter(func(r claritycall.Request) bool {
		return (filter.StudentID == "" || r.StudentID == filter.StudentID) &&
			(filter.TrackID == "" || r.TrackID == filter.TrackID) &&
			(filter.CohortID == "" || r.CohortID == filter.CohortID) &&
			(filter.Status == "" || r.Status == filter.Status)
	})
	reverse(reqs)
	return reqs, nil
}

func (repo *clarityCallRepository) GetRequest(_ context.Context, id string) (claritycall.Request, error) {
	return repo.db.calls.get(id, claritycall.ErrNotFound)
}

func (repo *clarityCallRepository) CreateRequest(_ context.Context, r claritycall.Request) (claritycall.Request, error) {
	return repo.db.calls.insert(r), nil
}

func (repo *clarityCallRepository) UpdateRequest(_ context.Context, r claritycall.Request) (claritycall.Request, error) {
	return repo.db.calls.update(r, claritycall.ErrNotFound)
}

// reverse turns insertion order into latest-first.
func reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
