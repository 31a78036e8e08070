package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

// Submissions

type submissionRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	AssignmentID string      `db:"assignment_id"`
	GithubURL    string      `db:"github_url"`
	DemoURL      null.String `db:"demo_url"`
	Notes        null.String `db:"notes"`
	Status       string      `db:"status"`
	Feedback     null.String `db:"feedback"`
	ReviewerID   null.String `db:"reviewer_id"`
	SubmittedAt  time.Time   `db:"submitted_at"`
	ReviewedAt   null.Time   `db:"reviewed_at"`
}

func toSubmissionRow(s submission.Submission) submissionRow {
	return submissionRow{
		ID:           s.ID,
		StudentID:    s.StudentID,
		AssignmentID: s.AssignmentID,
		GithubURL:    s.GithubURL,
		DemoURL:      nullString(s.DemoURL),
		Notes:        nullString(s.Notes),
		Status:       s.Status,
		Feedback:     nullString(s.Feedback),
		ReviewerID:   nullString(s.ReviewerID),
		SubmittedAt:  s.SubmittedAt.UTC(),
		ReviewedAt:   null.TimeFromPtr(s.ReviewedAt),
	}
}

func (r submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:           r.ID,
		StudentID:    r.StudentID,
		AssignmentID: r.AssignmentID,
		GithubURL:    r.GithubURL,
		DemoURL:      r.DemoURL.String,
		Notes:        r.Notes.String,
		Status:       r.Status,
		Feedback:     r.Feedback.String,
		ReviewerID:   r.ReviewerID.String,
		SubmittedAt:  r.SubmittedAt.UTC(),
		ReviewedAt:   r.ReviewedAt.Ptr(),
	}
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.Filter) ([]submission.Submission, error) {
	w := new(where).
		eq("student_id", filter.StudentID).
		eq("assignment_id", filter.AssignmentID).
		eq("status", filter.Status)
	var rows []submissionRow
	q := repo.db.Rebind("SELECT * FROM submissions" + w.String() + " ORDER BY submitted_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	var r submissionRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM submissions WHERE id = $1", id); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "selecting submission")
	}
	return r.submission(), nil
}

func (repo *submissionRepository) CreateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	const q = `INSERT INTO submissions
		(id, student_id, assignment_id, github_url, demo_url, notes, status, feedback, reviewer_id, submitted_at, reviewed_at)
		VALUES (:id, :student_id, :assignment_id, :github_url, :demo_url, :notes, :status, :feedback, :reviewer_id, :submitted_at, :reviewed_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toSubmissionRow(s)); err != nil {
		return submission.Submission{}, trapUniqueErr(err, submission.ErrAlreadySubmitted, "inserting submission")
	}
	return s, nil
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	const q = `UPDATE submissions SET github_url = :github_url, demo_url = :demo_url, notes = :notes, status = :status,
		feedback = :feedback, reviewer_id = :reviewer_id, submitted_at = :submitted_at, reviewed_at = :reviewed_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toSubmissionRow(s))
	if err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "updating submission")
	}
	return s, expectOne(res, submission.ErrNotFound)
}

// Partnerships

type partnershipRepository struct {
	db *sqlx.DB
}

var _ partnership.Repository = (*partnershipRepository)(nil) // interface compliance check

func NewPartnershipRepository(db *sqlx.DB) partnership.Repository {
	return &partnershipRepository{db: db}
}

func (repo *partnershipRepository) QueryPartnerships(ctx context.Context, filter partnership.Filter) ([]partnership.Partnership, error) {
	w := new(where).eq("track_id", filter.TrackID).eq("cohort_id", filter.CohortID)
	if filter.StudentID != "" {
		w.cond("(student_a_id = ? OR student_b_id = ?)", filter.StudentID, filter.StudentID)
	}
	ps := make([]partnership.Partnership, 0)
	q := repo.db.Rebind("SELECT * FROM partnerships" + w.String() + " ORDER BY created_at")
	if err := repo.db.SelectContext(ctx, &ps, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting partnerships")
	}
	return ps, nil
}

func (repo *partnershipRepository) GetPartnership(ctx context.Context, id string) (partnership.Partnership, error) {
	var p partnership.Partnership
	if err := repo.db.GetContext(ctx, &p, "SELECT * FROM partnerships WHERE id = $1", id); err != nil {
		return partnership.Partnership{}, trapNoRowsErr(err, partnership.ErrNotFound, "selecting partnership")
	}
	return p, nil
}

// insertUnpaired inserts only if neither member already has a partner in the track+cohort.
const insertUnpaired = `
INSERT INTO partnerships (id, student_a_id, student_b_id, track_id, cohort_id, created_at)
SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6::timestamptz
WHERE NOT EXISTS (
	SELECT 1 FROM partnerships
	WHERE track_id = $4::uuid AND cohort_id = $5::uuid
	  AND (student_a_id IN ($2::uuid, $3::uuid) OR student_b_id IN ($2::uuid, $3::uuid))
)`

// CreatePartnership is atomic: the track+cohort advisory lock serializes concurrent pairings,
// so a student never ends up in two partnerships.
func (repo *partnershipRepository) CreatePartnership(ctx context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return partnership.Partnership{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", p.TrackID+":"+p.CohortID); err != nil {
		return partnership.Partnership{}, errors.Wrap(err, "locking track+cohort")
	}
	res, err := tx.ExecContext(ctx, insertUnpaired, p.ID, p.StudentAID, p.StudentBID, p.TrackID, p.CohortID, p.CreatedAt.UTC())
	if err != nil {
		return partnership.Partnership{}, errors.Wrap(err, "inserting partnership")
	}
	if err = expectOne(res, partnership.ErrAlreadyPaired); err != nil {
		return partnership.Partnership{}, err
	}
	if err = tx.Commit(); err != nil {
		return partnership.Partnership{}, errors.Wrap(err, "committing partnership")
	}
	return p, nil
}

func (repo *partnershipRepository) UpdatePartnership(ctx context.Context, p partnership.Partnership) (partnership.Partnership, error) {
	const q = `UPDATE partnerships SET student_a_id = :student_a_id, student_b_id = :student_b_id WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return partnership.Partnership{}, trapNoRowsErr(err, partnership.ErrNotFound, "updating partnership")
	}
	return p, expectOne(res, partnership.ErrNotFound)
}

func (repo *partnershipRepository) DeletePartnership(ctx context.Context, id string) error {
	return deleteByID(ctx, repo.db, "partnerships", id, partnership.ErrNotFound)
}

// Clarity calls

type requestRow struct {
	ID          string      `db:"id"`
	StudentID   string      `db:"student_id"`
	TrackID     string      `db:"track_id"`
	CohortID    string      `db:"cohort_id"`
	Topic       string      `db:"topic"`
	Details     null.String `db:"details"`
	Status      string      `db:"status"`
	ScheduledAt null.Time   `db:"scheduled_at"`
	MeetingURL  null.String `db:"meeting_url"`
	CreatedAt   time.Time   `db:"created_at"`
}

func toRequestRow(r claritycall.Request) requestRow {
	return requestRow{
		ID:          r.ID,
		StudentID:   r.StudentID,
		TrackID:     r.TrackID,
		CohortID:    r.CohortID,
		Topic:       r.Topic,
		Details:     nullString(r.Details),
		Status:      r.Status,
		ScheduledAt: null.TimeFromPtr(r.ScheduledAt),
		MeetingURL:  nullString(r.MeetingURL),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func (r requestRow) request() claritycall.Request {
	return claritycall.Request{
		ID:          r.ID,
		StudentID:   r.StudentID,
		TrackID:     r.TrackID,
		CohortID:    r.CohortID,
		Topic:       r.Topic,
		Details:     r.Details.String,
		Status:      r.Status,
		ScheduledAt: r.ScheduledAt.Ptr(),
		MeetingURL:  r.MeetingURL.String,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type clarityCallRepository struct {
	db *sqlx.DB
}

var _ claritycall.Repository = (*clarityCallRepository)(nil) // interface compliance check

func NewClarityCallRepository(db *sqlx.DB) claritycall.Repository {
	return &clarityCallRepository{db: db}
}

func (repo *clarityCallRepository) QueryRequests(ctx context.Context, filter claritycall.Filter) ([]claritycall.Request, error) {
	w := new(where).
		eq("student_id", filter.StudentID).
		eq("track_id", filter.TrackID).
		eq("cohort_id", filter.CohortID).
		eq("status", filter.Status)
	var rows []requestRow
	q := repo.db.Rebind("SELECT * FROM clarity_calls" + w.String() + " ORDER BY created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting clarity calls")
	}
	reqs := make([]claritycall.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

func (repo *clarityCallRepository) GetRequest(ctx context.Context, id string) (claritycall.Request, error) {
	var r requestRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM clarity_calls WHERE id = $1", id); err != nil {
		return claritycall.Request{}, trapNoRowsErr(err, claritycall.ErrNotFound, "selecting clarity call")
	}
	return r.request(), nil
}

func (repo *clarityCallRepository) CreateRequest(ctx context.Context, r claritycall.Request) (claritycall.Request, error) {
	const q = `INSERT INTO clarity_calls
		(id, student_id, track_id, cohort_id, topic, details, status, scheduled_at, meeting_url, created_at)
		VALUES (:id, :student_id, :track_id, :cohort_id, :topic, :details, :status, :scheduled_at, :meeting_url, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toRequestRow(r)); err != nil {
		return claritycall.Request{}, errors.Wrap(err, "inserting clarity call")
	}
	return r, nil
}

func (repo *clarityCallRepository) UpdateRequest(ctx context.Context, r claritycall.Request) (claritycall.Request, error) {
	const q = `UPDATE clarity_calls SET topic = :topic, details = :details, status = :status,
		scheduled_at = :scheduled_at, meeting_url = :meeting_url WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toRequestRow(r))
	if err != nil {
		return claritycall.Request{}, trapNoRowsErr(err, claritycall.ErrNotFound, "updating clarity call")
	}
	return r, expectOne(res, claritycall.ErrNotFound)
}
