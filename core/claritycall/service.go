package claritycall

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/enrollment"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("clarity call request not found")
	ErrNotOwner    = core.NewForbiddenError("this clarity call request belongs to another student")
	ErrNotEnrolled = core.NewValidationError(errors.New("you are not enrolled in this track and cohort"))
	ErrInThePast   = core.NewValidationError(
		errors.New("a call cannot be scheduled in the past"),
		core.FieldError{Field: "scheduled_at", Error: "a call cannot be scheduled in the past"},
	)
)

const keyCallsPrefix = "clarity_calls:"

type (
	Repository interface {
		// QueryRequests applies AND on the non-empty filter fields, latest first.
		QueryRequests(ctx context.Context, filter Filter) ([]Request, error)
		GetRequest(ctx context.Context, id string) (Request, error)
		CreateRequest(ctx context.Context, r Request) (Request, error)
		UpdateRequest(ctx context.Context, r Request) (Request, error)
	}

	Roster interface {
		FreshEnrollments(ctx context.Context, trackID, cohortID string) ([]enrollment.Enrollment, error)
		StudentsByID(ctx context.Context, ids ...string) (map[string]enrollment.Student, error)
	}

	Service struct {
		repo    Repository
		roster  Roster
		mailSvc core.EmailService
		cache   *cache.Cache
		ttl     cache.TTLs
		logger  core.Logger
		now     func() time.Time
	}
)

func NewService(repo Repository, roster Roster, mailSvc core.EmailService, c *cache.Cache, ttl cache.TTLs, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		roster:  roster,
		mailSvc: mailSvc,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) invalidate() {
	svc.cache.InvalidatePattern(keyCallsPrefix)
}

// Create files a new request on behalf of studentID, who must be enrolled in the track+cohort.
func (svc *Service) Create(ctx context.Context, studentID string, ri RequestInput) (Request, error) {
	enrs, err := svc.roster.FreshEnrollments(ctx, ri.TrackID, ri.CohortID)
	if err != nil {
		return Request{}, err
	}
	enrolled := false
	for _, e := range enrs {
		if e.StudentID == studentID {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return Request{}, ErrNotEnrolled
	}

	r, err := svc.repo.CreateRequest(ctx, Request{
		ID:        uuid.New().String(),
		StudentID: studentID,
		TrackID:   ri.TrackID,
		CohortID:  ri.CohortID,
		Topic:     ri.Topic,
		Details:   ri.Details,
		Status:    StatusPending,
		CreatedAt: svc.now(),
	})
	if err != nil {
		return Request{}, errors.Wrap(err, "creating clarity call request")
	}
	svc.invalidate()
	return r, nil
}

func (svc *Service) Query(ctx context.Context, filter Filter) []View {
	views, err := cache.Fetch(svc.cache, filter.key(), svc.ttl.Short, func() ([]View, error) {
		reqs, err := svc.repo.QueryRequests(ctx, filter)
		if err != nil {
			return nil, errors.Wrap(err, "querying clarity calls")
		}
		students, err := svc.roster.StudentsByID(ctx, core.Keys(reqs, func(r Request) string { return r.StudentID })...)
		if err != nil {
			return nil, err
		}
		return core.Attach(reqs, func(r Request) string { return r.StudentID }, students,
			func(r Request, s enrollment.Student, _ bool) View {
				return View{Request: r, StudentName: s.FullName, StudentEmail: s.Email}
			}), nil
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("claritycall: querying requests: %v", err), err)
		return []View{}
	}
	return views
}

// Schedule books the call and lets the student know.
func (svc *Service) Schedule(ctx context.Context, id string, si ScheduleInput) (Request, error) {
	if si.ScheduledAt.Before(svc.now()) {
		return Request{}, ErrInThePast
	}
	r, err := svc.transition(ctx, id, StatusScheduled, func(r *Request) {
		at := si.ScheduledAt
		r.ScheduledAt = &at
		r.MeetingURL = si.MeetingURL
	})
	if err != nil {
		return Request{}, err
	}
	svc.sendScheduled(ctx, r)
	return r, nil
}

func (svc *Service) Complete(ctx context.Context, id string) (Request, error) {
	return svc.transition(ctx, id, StatusCompleted, nil)
}

// Cancel can be done by an admin, or by the student who filed the request.
func (svc *Service) Cancel(ctx context.Context, actor core.Identity, id string) (Request, error) {
	r, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if actor.Role != enrollment.RoleAdmin && r.StudentID != actor.ID {
		return Request{}, ErrNotOwner
	}
	return svc.transition(ctx, id, StatusCancelled, nil)
}

func (svc *Service) transition(ctx context.Context, id, to string, mutate func(r *Request)) (Request, error) {
	r, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !CanTransition(r.Status, to) {
		msg := fmt.Sprintf("a %s call cannot be %s", r.Status, to)
		return Request{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "status", Error: msg})
	}
	r.Status = to
	if mutate != nil {
		mutate(&r)
	}
	r, err = svc.repo.UpdateRequest(ctx, r)
	if err != nil {
		return Request{}, errors.Wrap(err, "updating clarity call request")
	}
	svc.invalidate()
	return r, nil
}

func (svc *Service) sendScheduled(ctx context.Context, r Request) {
	if svc.mailSvc == nil || r.ScheduledAt == nil {
		return
	}
	students, err := svc.roster.StudentsByID(ctx, r.StudentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("claritycall: loading student to notify: %v", err), err)
		return
	}
	s, ok := students[r.StudentID]
	if !ok {
		return
	}
	svc.mailSvc.SendMessages(core.NewTemplateMessage(
		mail.Address{Name: s.FullName, Address: s.Email},
		"Your clarity call is scheduled",
		core.TemplateClarityCallScheduled,
		struct{ Name, Topic, ScheduledAt, MeetingURL string }{
			s.DisplayName(), r.Topic, r.ScheduledAt.Format("Mon, 02 Jan 2006 15:04 MST"), r.MeetingURL,
		},
	))
}
