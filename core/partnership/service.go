package partnership

import (
	"context"
	"fmt"
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
	ErrNotFound              = core.NewNotFoundError("partnership not found")
	ErrTrackCohortRequired   = core.NewValidationError(errors.New("select a track and a cohort first"))
	ErrInsufficientStudents  = core.NewValidationError(errors.New("insufficient students: at least 2 students must be enrolled in this track and cohort"))
	ErrNotEnoughUnpaired     = core.NewValidationError(errors.New("not enough unpaired students: every student already has a partner"))
	ErrNoPartnershipsCreated = core.NewUnavailableError("failed to create any partnerships")
	ErrPairingTimeout        = errors.New("auto-pairing timed out, some partnerships may have been created")
	ErrAlreadyPaired         = core.NewConflictError("student already has a partner in this track and cohort")
	ErrNotEnrolled           = core.NewValidationError(errors.New("student is not enrolled in this track and cohort"))
	ErrAlreadyMember         = core.NewValidationError(errors.New("student is already a member of this partnership"))
	ErrSameStudent           = core.NewValidationError(errors.New("a student cannot be partnered with themselves"))
)

const keyPartnershipsPrefix = "partnerships:"

type (
	Repository interface {
		// QueryPartnerships applies AND on the non-empty track/cohort filter fields;
		// StudentID matches either member. Creation order.
		QueryPartnerships(ctx context.Context, filter Filter) ([]Partnership, error)
		GetPartnership(ctx context.Context, id string) (Partnership, error)
		// CreatePartnership may reject the insert with ErrAlreadyPaired when the store supports it.
		CreatePartnership(ctx context.Context, p Partnership) (Partnership, error)
		UpdatePartnership(ctx context.Context, p Partnership) (Partnership, error)
		DeletePartnership(ctx context.Context, id string) error
	}

	Roster interface {
		FreshEnrollments(ctx context.Context, trackID, cohortID string) ([]enrollment.Enrollment, error)
		StudentsByID(ctx context.Context, ids ...string) (map[string]enrollment.Student, error)
	}

	Catalog interface {
		QueryTracks(ctx context.Context) []curriculum.Track
		QueryCohorts(ctx context.Context) []curriculum.Cohort
	}

	Options struct {
		Timeout    time.Duration // bounds an auto-pairing run
		AdminEmail string        // receives the unpaired students notice; empty disables it
	}

	Service struct {
		repo    Repository
		roster  Roster
		catalog Catalog
		mailSvc core.EmailService
		cache   *cache.Cache
		ttl     cache.TTLs
		logger  core.Logger
		opts    Options
	}
)

func NewService(
	repo Repository,
	roster Roster,
	catalog Catalog,
	mailSvc core.EmailService,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
	opts Options,
) *Service {
	return &Service{
		repo:    repo,
		roster:  roster,
		catalog: catalog,
		mailSvc: mailSvc,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
		opts:    opts,
	}
}

func (svc *Service) invalidate() {
	svc.cache.InvalidatePattern(keyPartnershipsPrefix)
}

// AutoPair greedily pairs the unpaired students of a track+cohort, two at a time, in enrollment order.
// A trailing odd student stays unpaired and is reported in the result.
// The run is bounded by Options.Timeout.
func (svc *Service) AutoPair(ctx context.Context, in AutoPairInput) (Result, error) {
	in.Clean()
	if in.TrackID == "" || in.CohortID == "" {
		return Result{}, ErrTrackCohortRequired
	}

	if svc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.opts.Timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.pair(ctx, in.TrackID, in.CohortID)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Result{}, ErrPairingTimeout
			}
			return Result{}, o.err
		}
		svc.notify(context.WithoutCancel(ctx), in, o.res)
		return o.res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			svc.invalidate()
			return Result{}, ErrPairingTimeout
		}
		return Result{}, errors.Wrap(ctx.Err(), "auto-pairing")
	}
}

func (svc *Service) pair(ctx context.Context, trackID, cohortID string) (Result, error) {
	enrs, err := svc.roster.FreshEnrollments(ctx, trackID, cohortID)
	if err != nil {
		return Result{}, errors.Wrap(err, "fetching enrollments")
	}
	if len(enrs) < 2 {
		return Result{}, ErrInsufficientStudents
	}

	existing, err := svc.repo.QueryPartnerships(ctx, Filter{TrackID: trackID, CohortID: cohortID})
	if err != nil {
		return Result{}, errors.Wrap(err, "fetching partnerships")
	}
	paired := make(map[string]struct{}, 2*len(existing))
	for _, p := range existing {
		paired[p.StudentAID] = struct{}{}
		paired[p.StudentBID] = struct{}{}
	}

	unpaired := make([]string, 0, len(enrs))
	for _, id := range core.Keys(enrs, func(e enrollment.Enrollment) string { return e.StudentID }) {
		if _, ok := paired[id]; !ok {
			unpaired = append(unpaired, id)
		}
	}
	if len(unpaired) < 2 {
		return Result{}, ErrNotEnoughUnpaired
	}

	res := Result{Created: []Partnership{}, Unpaired: []string{}}
	for i := 0; i+1 < len(unpaired); i += 2 {
		p, err := svc.repo.CreatePartnership(ctx, Partnership{
			ID:         uuid.New().String(),
			StudentAID: unpaired[i],
			StudentBID: unpaired[i+1],
			TrackID:    trackID,
			CohortID:   cohortID,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("partnership: pairing %s with %s: %v", unpaired[i], unpaired[i+1], err), err)
			continue
		}
		res.Created = append(res.Created, p)
	}
	if len(unpaired)%2 == 1 {
		res.Unpaired = append(res.Unpaired, unpaired[len(unpaired)-1])
	}

	svc.invalidate()
	if len(res.Created) == 0 {
		return Result{}, ErrNoPartnershipsCreated
	}
	return res, nil
}

// CreateManual pairs two students chosen by an admin.
func (svc *Service) CreateManual(ctx context.Context, mi ManualInput) (Partnership, error) {
	enrolled, err := svc.enrolledIDs(ctx, mi.TrackID, mi.CohortID)
	if err != nil {
		return Partnership{}, err
	}
	for _, id := range []string{mi.StudentAID, mi.StudentBID} {
		if _, ok := enrolled[id]; !ok {
			return Partnership{}, ErrNotEnrolled
		}
	}

	existing, err := svc.repo.QueryPartnerships(ctx, Filter{TrackID: mi.TrackID, CohortID: mi.CohortID})
	if err != nil {
		return Partnership{}, errors.Wrap(err, "fetching partnerships")
	}
	for _, p := range existing {
		if p.Has(mi.StudentAID) || p.Has(mi.StudentBID) {
			return Partnership{}, ErrAlreadyPaired
		}
	}

	p, err := svc.repo.CreatePartnership(ctx, Partnership{
		ID:         uuid.New().String(),
		StudentAID: mi.StudentAID,
		StudentBID: mi.StudentBID,
		TrackID:    mi.TrackID,
		CohortID:   mi.CohortID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Partnership{}, errors.Wrap(err, "creating partnership")
	}
	svc.invalidate()
	svc.notify(ctx, AutoPairInput{TrackID: p.TrackID, CohortID: p.CohortID}, Result{Created: []Partnership{p}})
	return p, nil
}

// Reassign replaces one or both members of a partnership.
// Replacements must be enrolled in the same track+cohort and must not already be one of the two members.
func (svc *Service) Reassign(ctx context.Context, id string, ri ReassignInput) (Partnership, error) {
	p, err := svc.repo.GetPartnership(ctx, id)
	if err != nil {
		return Partnership{}, err
	}

	a, b := p.StudentAID, p.StudentBID
	var replacements []string
	if ri.StudentAID != "" && ri.StudentAID != p.StudentAID {
		a = ri.StudentAID
		replacements = append(replacements, a)
	}
	if ri.StudentBID != "" && ri.StudentBID != p.StudentBID {
		b = ri.StudentBID
		replacements = append(replacements, b)
	}
	if len(replacements) == 0 {
		return p, nil
	}
	if a == b {
		return Partnership{}, ErrSameStudent
	}

	enrolled, err := svc.enrolledIDs(ctx, p.TrackID, p.CohortID)
	if err != nil {
		return Partnership{}, err
	}
	for _, sid := range replacements {
		if p.Has(sid) {
			return Partnership{}, ErrAlreadyMember
		}
		if _, ok := enrolled[sid]; !ok {
			return Partnership{}, ErrNotEnrolled
		}
	}

	p.StudentAID, p.StudentBID = a, b
	p, err = svc.repo.UpdatePartnership(ctx, p)
	if err != nil {
		return Partnership{}, errors.Wrap(err, "updating partnership")
	}
	svc.invalidate()
	return p, nil
}

// Candidates lists the students who may replace a member of the partnership.
func (svc *Service) Candidates(ctx context.Context, id string) ([]Candidate, error) {
	p, err := svc.repo.GetPartnership(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		enrs     []enrollment.Enrollment
		existing []Partnership
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		enrs, err = svc.roster.FreshEnrollments(gctx, p.TrackID, p.CohortID)
		return err
	})
	g.Go(func() (err error) {
		existing, err = svc.repo.QueryPartnerships(gctx, Filter{TrackID: p.TrackID, CohortID: p.CohortID})
		return errors.Wrap(err, "fetching partnerships")
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	paired := make(map[string]struct{})
	for _, other := range existing {
		if other.ID == p.ID {
			continue
		}
		paired[other.StudentAID] = struct{}{}
		paired[other.StudentBID] = struct{}{}
	}

	ids := make([]string, 0, len(enrs))
	for _, sid := range core.Keys(enrs, func(e enrollment.Enrollment) string { return e.StudentID }) {
		if !p.Has(sid) {
			ids = append(ids, sid)
		}
	}
	students, err := svc.roster.StudentsByID(ctx, ids...)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, sid := range ids {
		_, isPaired := paired[sid]
		candidates = append(candidates, Candidate{Member: toMember(sid, students), Paired: isPaired})
	}
	return candidates, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeletePartnership(ctx, id); err != nil {
		return errors.Wrap(err, "deleting partnership")
	}
	svc.invalidate()
	return nil
}

func (svc *Service) Get(ctx context.Context, id string) (Partnership, error) {
	return svc.repo.GetPartnership(ctx, id)
}

// Query lists partnerships joined with their members, track and cohort.
func (svc *Service) Query(ctx context.Context, filter Filter) []View {
	views, err := cache.Fetch(svc.cache, filter.key(), svc.ttl.Medium, func() ([]View, error) {
		return svc.loadViews(ctx, filter)
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("partnership: querying partnerships: %v", err), err)
		return []View{}
	}
	return views
}

func (svc *Service) loadViews(ctx context.Context, filter Filter) ([]View, error) {
	ps, err := svc.repo.QueryPartnerships(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying partnerships")
	}
	if len(ps) == 0 {
		return []View{}, nil
	}

	var (
		students map[string]enrollment.Student
		tracks   []curriculum.Track
		cohorts  []curriculum.Cohort
	)
	ids := make([]string, 0, 2*len(ps))
	for _, p := range ps {
		ids = append(ids, p.StudentAID, p.StudentBID)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = svc.roster.StudentsByID(gctx, ids...)
		return err
	})
	g.Go(func() error {
		tracks = svc.catalog.QueryTracks(gctx)
		return nil
	})
	g.Go(func() error {
		cohorts = svc.catalog.QueryCohorts(gctx)
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	trackIdx := core.IndexBy(tracks, func(t curriculum.Track) string { return t.ID })
	cohortIdx := core.IndexBy(cohorts, func(c curriculum.Cohort) string { return c.ID })
	views := make([]View, 0, len(ps))
	for _, p := range ps {
		views = append(views, View{
			Partnership: p,
			StudentA:    toMember(p.StudentAID, students),
			StudentB:    toMember(p.StudentBID, students),
			Track:       trackIdx[p.TrackID].Name,
			Cohort:      cohortIdx[p.CohortID].Name,
		})
	}
	return views, nil
}

func (svc *Service) enrolledIDs(ctx context.Context, trackID, cohortID string) (map[string]struct{}, error) {
	enrs, err := svc.roster.FreshEnrollments(ctx, trackID, cohortID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(enrs))
	for _, e := range enrs {
		ids[e.StudentID] = struct{}{}
	}
	return ids, nil
}

func toMember(id string, students map[string]enrollment.Student) Member {
	s := students[id]
	return Member{ID: id, FullName: s.FullName, Email: s.Email, GithubUsername: s.GithubUsername}
}
