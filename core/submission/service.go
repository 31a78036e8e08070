package submission

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/enrollment"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("submission not found")
	ErrAlreadySubmitted = core.NewConflictError("this assignment was already submitted, resubmit it instead")
	ErrNotOwner         = core.NewForbiddenError("this submission belongs to another student")
	ErrNotEnrolled      = core.NewForbiddenError("you are not enrolled in this assignment's track")
)

const keySubmissionsPrefix = "submissions:"

var csvHeader = []string{"Student", "Email", "Track", "Assignment", "Status", "Submitted Date", "GitHub", "Demo"}

type (
	Repository interface {
		// QuerySubmissions applies AND on the non-empty filter fields, latest first.
		// Filter.TrackID is resolved by the service and is ignored here.
		QuerySubmissions(ctx context.Context, filter Filter) ([]Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
	}

	Curriculum interface {
		QueryTracks(ctx context.Context) []curriculum.Track
		QueryAssignments(ctx context.Context, filter curriculum.AssignmentFilter) []curriculum.Assignment
		GetAssignment(ctx context.Context, id string) (curriculum.Assignment, error)
	}

	Directory interface {
		StudentsByID(ctx context.Context, ids ...string) (map[string]enrollment.Student, error)
		FreshEnrollments(ctx context.Context, trackID, cohortID string) ([]enrollment.Enrollment, error)
	}

	Service struct {
		repo   Repository
		curr   Curriculum
		dir    Directory
		cache  *cache.Cache
		ttl    cache.TTLs
		logger core.Logger
		now    func() time.Time
	}
)

func NewService(repo Repository, curr Curriculum, dir Directory, c *cache.Cache, ttl cache.TTLs, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		curr:   curr,
		dir:    dir,
		cache:  c,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) invalidate() {
	svc.cache.InvalidatePattern(keySubmissionsPrefix)
}

// Submit records a new submission for studentID.
func (svc *Service) Submit(ctx context.Context, studentID string, si SubmitInput) (Submission, error) {
	a, err := svc.curr.GetAssignment(ctx, si.AssignmentID)
	if err != nil {
		if core.IsNotFound(err) {
			return Submission{}, core.NewValidationError(err, core.FieldError{Field: "assignment_id", Error: err.Error()})
		}
		return Submission{}, errors.Wrap(err, "finding assignment")
	}
	enrolled, err := svc.isEnrolledInTrack(ctx, studentID, a.TrackID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Submission{}, ErrNotEnrolled
	}

	existing, err := svc.repo.QuerySubmissions(ctx, Filter{StudentID: studentID, AssignmentID: a.ID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "checking submissions")
	}
	if len(existing) > 0 {
		return Submission{}, ErrAlreadySubmitted
	}

	s, err := svc.repo.CreateSubmission(ctx, Submission{
		ID:           uuid.New().String(),
		StudentID:    studentID,
		AssignmentID: a.ID,
		GithubURL:    si.GithubURL,
		DemoURL:      si.DemoURL,
		Notes:        si.Notes,
		Status:       StatusPending,
		SubmittedAt:  svc.now(),
	})
	if err != nil {
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	svc.invalidate()
	return s, nil
}

// isEnrolledInTrack checks every cohort of trackID.
func (svc *Service) isEnrolledInTrack(ctx context.Context, studentID, trackID string) (bool, error) {
	enrs, err := svc.dir.FreshEnrollments(ctx, trackID, "")
	if err != nil {
		return false, err
	}
	for _, e := range enrs {
		if e.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

// Resubmit sends back a submission that needs changes for another review.
func (svc *Service) Resubmit(ctx context.Context, studentID, id string, ri ResubmitInput) (Submission, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if s.StudentID != studentID {
		return Submission{}, ErrNotOwner
	}
	if !CanTransition(s.Status, StatusPending) {
		return Submission{}, invalidTransition(s.Status, StatusPending)
	}

	s.GithubURL = ri.GithubURL
	s.DemoURL = ri.DemoURL
	s.Notes = ri.Notes
	s.Status = StatusPending
	s.SubmittedAt = svc.now()
	s, err = svc.repo.UpdateSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	svc.invalidate()
	return s, nil
}

// Review moves a submission along its review workflow.
func (svc *Service) Review(ctx context.Context, reviewerID, id string, ri ReviewInput) (Submission, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if !CanTransition(s.Status, ri.Status) {
		return Submission{}, invalidTransition(s.Status, ri.Status)
	}

	s.Status = ri.Status
	s.ReviewerID = reviewerID
	if ri.Feedback != "" {
		s.Feedback = ri.Feedback
	}
	if ri.Status != StatusInReview {
		now := svc.now()
		s.ReviewedAt = &now
	}
	s, err = svc.repo.UpdateSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	svc.invalidate()
	return s, nil
}

func invalidTransition(from, to string) error {
	msg := fmt.Sprintf("a %s submission cannot be marked %s", from, to)
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "status", Error: msg})
}

// Query lists submissions joined with their student, assignment and track.
func (svc *Service) Query(ctx context.Context, filter Filter) []View {
	views, err := cache.Fetch(svc.cache, filter.key(), svc.ttl.Short, func() ([]View, error) {
		return svc.loadViews(ctx, filter)
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("submission: querying submissions: %v", err), err)
		return []View{}
	}
	return views
}

func (svc *Service) loadViews(ctx context.Context, filter Filter) ([]View, error) {
	var (
		subs        []Submission
		assignments []curriculum.Assignment
		tracks      []curriculum.Track
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subs, err = svc.repo.QuerySubmissions(gctx, filter)
		return errors.Wrap(err, "querying submissions")
	})
	g.Go(func() error {
		assignments = svc.curr.QueryAssignments(gctx, curriculum.AssignmentFilter{TrackID: filter.TrackID})
		return nil
	})
	g.Go(func() error {
		tracks = svc.curr.QueryTracks(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assignmentIdx := core.IndexBy(assignments, func(a curriculum.Assignment) string { return a.ID })
	if filter.TrackID != "" {
		inTrack := subs[:0:0]
		for _, s := range subs {
			if _, ok := assignmentIdx[s.AssignmentID]; ok {
				inTrack = append(inTrack, s)
			}
		}
		subs = inTrack
	}
	if len(subs) == 0 {
		return []View{}, nil
	}

	students, err := svc.dir.StudentsByID(ctx, core.Keys(subs, func(s Submission) string { return s.StudentID })...)
	if err != nil {
		return nil, err
	}
	trackIdx := core.IndexBy(tracks, func(t curriculum.Track) string { return t.ID })

	return core.Attach(subs, func(s Submission) string { return s.StudentID }, students,
		func(s Submission, st enrollment.Student, _ bool) View {
			v := View{
				Submission:     s,
				StudentName:    st.FullName,
				StudentEmail:   st.Email,
				GithubUsername: st.GithubUsername,
			}
			if a, ok := assignmentIdx[s.AssignmentID]; ok {
				v.Assignment = a.Title
				v.TrackID = a.TrackID
				v.Track = trackIdx[a.TrackID].Name
			}
			return v
		}), nil
}

// ExportCSV writes the filtered submissions as CSV.
func (svc *Service) ExportCSV(ctx context.Context, w io.Writer, filter Filter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, v := range svc.Query(ctx, filter) {
		record := []string{
			v.StudentName,
			v.StudentEmail,
			v.Track,
			v.Assignment,
			v.Status,
			v.SubmittedAt.Format("2006-01-02"),
			v.GithubURL,
			v.DemoURL,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
