// Package dashboard computes the admin overview from the cached listings of the other services.
package dashboard

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

var nowFunc = time.Now // mockable

type (
	Catalog interface {
		QueryTracks(ctx context.Context) []curriculum.Track
		QueryCohorts(ctx context.Context) []curriculum.Cohort
		QueryAssignments(ctx context.Context, filter curriculum.AssignmentFilter) []curriculum.Assignment
	}
	Students interface {
		QueryStudents(ctx context.Context, filter enrollment.StudentFilter) []enrollment.StudentView
	}
	Submissions interface {
		Query(ctx context.Context, filter submission.Filter) []submission.View
	}
	Partnerships interface {
		Query(ctx context.Context, filter partnership.Filter) []partnership.View
	}
	ClarityCalls interface {
		Query(ctx context.Context, filter claritycall.Filter) []claritycall.View
	}

	Filter struct {
		TrackID  string `query:"track_id"`
		CohortID string `query:"cohort_id"`
	}

	SubmissionStats struct {
		Total        int     `json:"total"`
		Pending      int     `json:"pending"`
		InReview     int     `json:"in_review"`
		Approved     int     `json:"approved"`
		NeedsChanges int     `json:"needs_changes"`
		ApprovalRate float64 `json:"approval_rate"` // approved / reviewed, 0 when nothing was reviewed
	}

	AssignmentStats struct {
		AssignmentID string  `json:"assignment_id"`
		Title        string  `json:"title"`
		Submitted    int     `json:"submitted"`
		Approved     int     `json:"approved"`
		Completion   float64 `json:"completion"` // approved / enrolled students
	}

	Stats struct {
		Tracks           int               `json:"tracks"`
		Cohorts          int               `json:"cohorts"`
		ActiveCohorts    int               `json:"active_cohorts"`
		Students         int               `json:"students"`
		Partnerships     int               `json:"partnerships"`
		UnpairedStudents int               `json:"unpaired_students"`
		PendingCalls     int               `json:"pending_calls"`
		ScheduledCalls   int               `json:"scheduled_calls"`
		Submissions      SubmissionStats   `json:"submissions"`
		Assignments      []AssignmentStats `json:"assignments"`
	}

	Service struct {
		catalog      Catalog
		students     Students
		submissions  Submissions
		partnerships Partnerships
		calls        ClarityCalls
	}
)

func (f *Filter) Clean() {
	f.TrackID = core.CleanString(f.TrackID)
	f.CohortID = core.CleanString(f.CohortID)
}

func NewService(catalog Catalog, students Students, submissions Submissions, partnerships Partnerships, calls ClarityCalls) *Service {
	return &Service{
		catalog:      catalog,
		students:     students,
		submissions:  submissions,
		partnerships: partnerships,
		calls:        calls,
	}
}

// Stats never fails: every listing it reads degrades to empty on its own.
func (svc *Service) Stats(ctx context.Context, filter Filter) Stats {
	var (
		tracks      []curriculum.Track
		cohorts     []curriculum.Cohort
		assignments []curriculum.Assignment
		students    []enrollment.StudentView
		subs        []submission.View
		partners    []partnership.View
		calls       []claritycall.View
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { tracks = svc.catalog.QueryTracks(gctx); return nil })
	g.Go(func() error { cohorts = svc.catalog.QueryCohorts(gctx); return nil })
	g.Go(func() error {
		assignments = svc.catalog.QueryAssignments(gctx, curriculum.AssignmentFilter{TrackID: filter.TrackID})
		return nil
	})
	g.Go(func() error {
		students = svc.students.QueryStudents(gctx, enrollment.StudentFilter{TrackID: filter.TrackID, CohortID: filter.CohortID})
		return nil
	})
	g.Go(func() error {
		subs = svc.submissions.Query(gctx, submission.Filter{TrackID: filter.TrackID})
		return nil
	})
	g.Go(func() error {
		partners = svc.partnerships.Query(gctx, partnership.Filter{TrackID: filter.TrackID, CohortID: filter.CohortID})
		return nil
	})
	g.Go(func() error {
		calls = svc.calls.Query(gctx, claritycall.Filter{TrackID: filter.TrackID, CohortID: filter.CohortID})
		return nil
	})
	_ = g.Wait()

	st := Stats{Tracks: len(tracks), Cohorts: len(cohorts), Assignments: []AssignmentStats{}}
	now := nowFunc()
	for _, c := range cohorts {
		if c.IsActive(now) {
			st.ActiveCohorts++
		}
	}

	enrolled := make(map[string]struct{}, len(students))
	for _, s := range students {
		enrolled[s.StudentID] = struct{}{}
	}
	st.Students = len(enrolled)

	paired := make(map[string]struct{}, 2*len(partners))
	for _, p := range partners {
		paired[p.StudentAID] = struct{}{}
		paired[p.StudentBID] = struct{}{}
	}
	st.Partnerships = len(partners)
	for id := range enrolled {
		if _, ok := paired[id]; !ok {
			st.UnpairedStudents++
		}
	}

	for _, c := range calls {
		switch c.Status {
		case claritycall.StatusPending:
			st.PendingCalls++
		case claritycall.StatusScheduled:
			st.ScheduledCalls++
		}
	}

	// a cohort filter keeps the submissions of its students on the tracks they take in that cohort
	if filter.CohortID != "" {
		enrollments := core.GroupBy(students, func(s enrollment.StudentView) string { return s.StudentID })
		inCohort := subs[:0:0]
		for _, s := range subs {
			for _, e := range enrollments[s.StudentID] {
				if e.Track.ID == s.TrackID {
					inCohort = append(inCohort, s)
					break
				}
			}
		}
		subs = inCohort
	}

	perAssignment := make(map[string]*AssignmentStats, len(assignments))
	for _, a := range assignments {
		perAssignment[a.ID] = &AssignmentStats{AssignmentID: a.ID, Title: a.Title}
	}
	for _, s := range subs {
		st.Submissions.Total++
		as := perAssignment[s.AssignmentID]
		if as != nil {
			as.Submitted++
		}
		switch s.Status {
		case submission.StatusPending:
			st.Submissions.Pending++
		case submission.StatusInReview:
			st.Submissions.InReview++
		case submission.StatusApproved:
			st.Submissions.Approved++
			if as != nil {
				as.Approved++
			}
		case submission.StatusNeedsChanges:
			st.Submissions.NeedsChanges++
		}
	}
	if reviewed := st.Submissions.Approved + st.Submissions.NeedsChanges; reviewed > 0 {
		st.Submissions.ApprovalRate = float64(st.Submissions.Approved) / float64(reviewed)
	}

	for _, as := range perAssignment {
		if st.Students > 0 {
			as.Completion = float64(as.Approved) / float64(st.Students)
		}
		st.Assignments = append(st.Assignments, *as)
	}
	sort.Slice(st.Assignments, func(i, j int) bool { return st.Assignments[i].Title < st.Assignments[j].Title })
	return st
}
