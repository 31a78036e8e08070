package enrollment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/curriculum"
)

var (
	// errors
	ErrStudentNotFound        = core.NewNotFoundError("student not found")
	ErrEnrollmentNotFound     = core.NewNotFoundError("enrollment not found")
	ErrWhitelistEntryNotFound = core.NewNotFoundError("whitelist entry not found")
	ErrNotWhitelisted         = core.NewForbiddenError("this email is not approved to register for the selected track and cohort")
	ErrAlreadyEnrolled        = core.NewConflictError("student is already enrolled in this track and cohort")
	ErrAlreadyWhitelisted     = core.NewConflictError("this email is already whitelisted for this track and cohort")
	ErrAccountExists          = core.NewConflictError("an account with this email already exists")
	ErrNothingWhitelisted     = errors.New("failed to add any whitelist entries")
	ErrInvalidCredentials     = errors.New("invalid email or password")
)

// cache keys
const (
	KeyWhitelist      = "whitelist"
	keyStudentsPrefix = "students:"
)

var csvStudentsHeader = []string{"Name", "Email", "Track", "Cohort", "Enrolled Date"}

type (
	Repository interface {
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents returns the students with the given ids; no ids means every student.
		QueryStudents(ctx context.Context, ids ...string) ([]Student, error)
		CreateStudent(ctx context.Context, s Student) (Student, error)

		// QueryEnrollments applies AND on the non-empty filter fields, in creation order.
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id string) error

		QueryWhitelist(ctx context.Context) ([]WhitelistEntry, error)
		GetWhitelistEntry(ctx context.Context, id string) (WhitelistEntry, error)
		// FindWhitelistEntry does an exact match on (email, trackID, cohortID), whatever the status.
		FindWhitelistEntry(ctx context.Context, email, trackID, cohortID string) (WhitelistEntry, error)
		CreateWhitelistEntry(ctx context.Context, we WhitelistEntry) (WhitelistEntry, error)
		UpdateWhitelistEntry(ctx context.Context, we WhitelistEntry) (WhitelistEntry, error)
		DeleteWhitelistEntry(ctx context.Context, id string) error
	}

	// AuthProvider creates accounts on the third-party auth provider.
	AuthProvider interface {
		// SignUp returns ErrAccountExists when the email is already registered.
		SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (Account, error)
		// SignIn returns ErrInvalidCredentials unless password matches the account of email.
		SignIn(ctx context.Context, email, password string) (Account, error)
	}

	// Catalog serves the curriculum reference data used for joins.
	Catalog interface {
		QueryTracks(ctx context.Context) []curriculum.Track
		QueryCohorts(ctx context.Context) []curriculum.Cohort
	}

	Service struct {
		repo    Repository
		auth    AuthProvider
		catalog Catalog
		mailSvc core.EmailService
		cache   *cache.Cache
		ttl     cache.TTLs
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	auth AuthProvider,
	catalog Catalog,
	mailSvc core.EmailService,
	c *cache.Cache,
	ttl cache.TTLs,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		auth:    auth,
		catalog: catalog,
		mailSvc: mailSvc,
		cache:   c,
		ttl:     ttl,
		logger:  logger,
	}
}

func studentsKey(trackID, cohortID string) string {
	return keyStudentsPrefix + trackID + ":" + cohortID
}

func (svc *Service) invalidateRoster() {
	svc.cache.InvalidatePattern(keyStudentsPrefix)
}

// SignUp registers a student after checking the whitelist gate.
// Nothing is created on the auth provider unless an active whitelist entry matches.
func (svc *Service) SignUp(ctx context.Context, su SignUp) (Profile, error) {
	entry, err := svc.repo.FindWhitelistEntry(ctx, su.Email, su.TrackID, su.CohortID)
	if err != nil {
		if core.IsNotFound(err) {
			return Profile{}, ErrNotWhitelisted
		}
		return Profile{}, errors.Wrap(err, "checking whitelist")
	}
	if !entry.IsActive() {
		return Profile{}, ErrNotWhitelisted
	}

	acct, resumed, err := svc.account(ctx, su)
	if err != nil {
		return Profile{}, err
	}

	now := time.Now().UTC()
	student := Student{
		ID:             acct.ID,
		Email:          su.Email,
		FullName:       su.FullName,
		GithubUsername: su.GithubUsername,
		Role:           RoleStudent,
		CreatedAt:      now,
	}
	if resumed {
		student, err = svc.resumeProfile(ctx, student, su)
	} else {
		student, err = svc.repo.CreateStudent(ctx, student)
		err = errors.Wrap(err, "creating student profile")
	}
	if err != nil {
		return Profile{}, err
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        uuid.New().String(),
		StudentID: student.ID,
		TrackID:   su.TrackID,
		CohortID:  su.CohortID,
		CreatedAt: now,
	})
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating enrollment")
	}
	svc.invalidateRoster()

	views := svc.viewEnrollments(ctx, []Enrollment{enr}, []Student{student})
	svc.sendWelcome(student, views)
	return Profile{Student: student, Enrollments: views}, nil
}

// account creates the provider account. When the email is taken and the password matches,
// it returns that account instead so a sign-up interrupted after the provider call can finish.
func (svc *Service) account(ctx context.Context, su SignUp) (Account, bool, error) {
	acct, err := svc.auth.SignUp(ctx, su.Email, su.Password, map[string]interface{}{
		"full_name": su.FullName,
		"track_id":  su.TrackID,
		"cohort_id": su.CohortID,
	})
	if err == nil {
		return acct, false, nil
	}
	if !errors.Is(err, ErrAccountExists) {
		return Account{}, false, errors.Wrap(err, "creating account")
	}

	acct, err = svc.auth.SignIn(ctx, su.Email, su.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return Account{}, false, ErrAccountExists
		}
		return Account{}, false, errors.Wrap(err, "signing in")
	}
	return acct, true, nil
}

// resumeProfile returns the existing profile of the account, creating it when missing.
// It fails with ErrAccountExists once the account is enrolled in the requested track and cohort.
func (svc *Service) resumeProfile(ctx context.Context, student Student, su SignUp) (Student, error) {
	existing, err := svc.repo.GetStudent(ctx, student.ID)
	switch {
	case core.IsNotFound(err):
		student, err = svc.repo.CreateStudent(ctx, student)
		return student, errors.Wrap(err, "creating student profile")
	case err != nil:
		return Student{}, errors.Wrap(err, "finding student profile")
	}

	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: existing.ID, TrackID: su.TrackID, CohortID: su.CohortID})
	if err != nil {
		return Student{}, errors.Wrap(err, "checking enrollments")
	}
	if len(enrs) > 0 {
		return Student{}, ErrAccountExists
	}
	return existing, nil
}

func (svc *Service) sendWelcome(student Student, views []StudentView) {
	if svc.mailSvc == nil || len(views) == 0 {
		return
	}
	svc.mailSvc.SendMessages(core.NewTemplateMessage(
		mail.Address{Name: student.FullName, Address: student.Email},
		"Welcome to "+views[0].Track.Name,
		core.TemplateWelcome,
		struct{ Name, Track, Cohort string }{student.DisplayName(), views[0].Track.Name, views[0].Cohort.Name},
	))
}

// Me returns the student's profile with every enrollment.
func (svc *Service) Me(ctx context.Context, studentID string) (Profile, error) {
	student, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Profile{}, err
	}
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: studentID})
	if err != nil {
		return Profile{}, errors.Wrap(err, "querying enrollments")
	}
	return Profile{Student: student, Enrollments: svc.viewEnrollments(ctx, enrs, []Student{student})}, nil
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// StudentsByID returns a lookup of the given students. Unknown ids are skipped.
func (svc *Service) StudentsByID(ctx context.Context, ids ...string) (map[string]Student, error) {
	if len(ids) == 0 {
		return map[string]Student{}, nil
	}
	students, err := svc.repo.QueryStudents(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return core.IndexBy(students, func(s Student) string { return s.ID }), nil
}

// FreshEnrollments reads the enrollments of a track+cohort straight from the store.
func (svc *Service) FreshEnrollments(ctx context.Context, trackID, cohortID string) ([]Enrollment, error) {
	enrs, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{TrackID: trackID, CohortID: cohortID})
	return enrs, errors.Wrap(err, "querying enrollments")
}

// QueryStudents lists enrolled students joined with their track and cohort.
func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) []StudentView {
	views, err := cache.Fetch(svc.cache, studentsKey(filter.TrackID, filter.CohortID), svc.ttl.Medium, func() ([]StudentView, error) {
		return svc.loadStudentViews(ctx, filter)
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("enrollment: querying students: %v", err), err)
		return []StudentView{}
	}
	if filter.Search == "" {
		return views
	}
	found := make([]StudentView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.FullName), filter.Search) ||
			strings.Contains(strings.ToLower(v.Email), filter.Search) ||
			strings.Contains(strings.ToLower(v.GithubUsername), filter.Search) {
			found = append(found, v)
		}
	}
	return found
}

func (svc *Service) loadStudentViews(ctx context.Context, filter StudentFilter) ([]StudentView, error) {
	var (
		enrs    []Enrollment
		tracks  []curriculum.Track
		cohorts []curriculum.Cohort
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		enrs, err = svc.repo.QueryEnrollments(gctx, EnrollmentFilter{TrackID: filter.TrackID, CohortID: filter.CohortID})
		return errors.Wrap(err, "querying enrollments")
	})
	g.Go(func() error {
		tracks = svc.catalog.QueryTracks(gctx)
		return nil
	})
	g.Go(func() error {
		cohorts = svc.catalog.QueryCohorts(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(enrs) == 0 {
		return []StudentView{}, nil
	}

	students, err := svc.repo.QueryStudents(ctx, core.Keys(enrs, func(e Enrollment) string { return e.StudentID })...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return joinStudentViews(enrs, students, tracks, cohorts), nil
}

// viewEnrollments joins enrs with the given students and the cached catalog.
func (svc *Service) viewEnrollments(ctx context.Context, enrs []Enrollment, students []Student) []StudentView {
	return joinStudentViews(enrs, students, svc.catalog.QueryTracks(ctx), svc.catalog.QueryCohorts(ctx))
}

func joinStudentViews(enrs []Enrollment, students []Student, tracks []curriculum.Track, cohorts []curriculum.Cohort) []StudentView {
	studentIdx := core.IndexBy(students, func(s Student) string { return s.ID })
	trackIdx := core.IndexBy(tracks, func(t curriculum.Track) string { return t.ID })
	cohortIdx := core.IndexBy(cohorts, func(c curriculum.Cohort) string { return c.ID })

	views := core.Attach(enrs, func(e Enrollment) string { return e.StudentID }, studentIdx,
		func(e Enrollment, s Student, _ bool) StudentView {
			v := StudentView{
				EnrollmentID:   e.ID,
				StudentID:      e.StudentID,
				Email:          s.Email,
				FullName:       s.FullName,
				GithubUsername: s.GithubUsername,
				Track:          Ref{ID: e.TrackID},
				Cohort:         Ref{ID: e.CohortID},
				EnrolledAt:     e.CreatedAt,
			}
			if t, ok := trackIdx[e.TrackID]; ok {
				v.Track.Name = t.Name
			}
			if c, ok := cohortIdx[e.CohortID]; ok {
				v.Cohort.Name = c.Name
			}
			return v
		})
	return views
}

// Enroll is an admin enrolling an existing student. The whitelist only gates self-registration.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetStudent(ctx, ne.StudentID); err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "finding student")
	}
	existing, err := svc.repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: ne.StudentID, TrackID: ne.TrackID, CohortID: ne.CohortID})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "checking enrollment")
	}
	if len(existing) > 0 {
		return Enrollment{}, ErrAlreadyEnrolled
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        uuid.New().String(),
		StudentID: ne.StudentID,
		TrackID:   ne.TrackID,
		CohortID:  ne.CohortID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.invalidateRoster()
	return enr, nil
}

func (svc *Service) Unenroll(ctx context.Context, id string) error {
	if err := svc.repo.DeleteEnrollment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	svc.invalidateRoster()
	return nil
}

// Whitelist

func (svc *Service) QueryWhitelist(ctx context.Context) []WhitelistEntry {
	entries, err := cache.Fetch(svc.cache, KeyWhitelist, svc.ttl.Medium, func() ([]WhitelistEntry, error) {
		return svc.repo.QueryWhitelist(ctx)
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("enrollment: querying whitelist: %v", err), err)
		return []WhitelistEntry{}
	}
	return entries
}

func (svc *Service) AddWhitelistEntry(ctx context.Context, wi WhitelistInput) (WhitelistEntry, error) {
	wi.Clean()
	_, err := svc.repo.FindWhitelistEntry(ctx, wi.Email, wi.TrackID, wi.CohortID)
	switch {
	case err == nil:
		return WhitelistEntry{}, ErrAlreadyWhitelisted
	case !core.IsNotFound(err):
		return WhitelistEntry{}, errors.Wrap(err, "checking whitelist")
	}

	we, err := svc.repo.CreateWhitelistEntry(ctx, WhitelistEntry{
		ID:        uuid.New().String(),
		Email:     wi.Email,
		TrackID:   wi.TrackID,
		CohortID:  wi.CohortID,
		Status:    wi.Status,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return WhitelistEntry{}, errors.Wrap(err, "creating whitelist entry")
	}
	svc.cache.Invalidate(KeyWhitelist)
	return we, nil
}

// BulkAddWhitelist adds every valid entry, best-effort.
// It only fails when not a single entry could be added.
func (svc *Service) BulkAddWhitelist(ctx context.Context, validate *validator.Validate, bw BulkWhitelist) (BulkResult, error) {
	res := BulkResult{Created: []WhitelistEntry{}, Failed: []BulkFailure{}}
	for _, wi := range bw.Entries {
		wi.Clean()
		if err := validate.Struct(&wi); err != nil {
			res.Failed = append(res.Failed, BulkFailure{Email: wi.Email, Error: "invalid entry"})
			continue
		}
		we, err := svc.AddWhitelistEntry(ctx, wi)
		if err != nil {
			if !(core.IsConflict(err) || core.IsNotFound(err)) {
				svc.logger.Warn(fmt.Sprintf("enrollment: bulk whitelist %s: %v", wi.Email, err), err)
			}
			res.Failed = append(res.Failed, BulkFailure{Email: wi.Email, Error: errors.Cause(err).Error()})
			continue
		}
		res.Created = append(res.Created, we)
	}
	if len(res.Created) == 0 {
		return res, core.NewValidationError(ErrNothingWhitelisted)
	}
	return res, nil
}

func (svc *Service) UpdateWhitelistStatus(ctx context.Context, id string, status string) (WhitelistEntry, error) {
	we, err := svc.repo.GetWhitelistEntry(ctx, id)
	if err != nil {
		return WhitelistEntry{}, err
	}
	we.Status = status
	we, err = svc.repo.UpdateWhitelistEntry(ctx, we)
	if err != nil {
		return WhitelistEntry{}, errors.Wrap(err, "updating whitelist entry")
	}
	svc.cache.Invalidate(KeyWhitelist)
	return we, nil
}

func (svc *Service) DeleteWhitelistEntry(ctx context.Context, id string) error {
	if err := svc.repo.DeleteWhitelistEntry(ctx, id); err != nil {
		return errors.Wrap(err, "deleting whitelist entry")
	}
	svc.cache.Invalidate(KeyWhitelist)
	return nil
}

// ExportStudentsCSV writes the student roster as CSV, ordered by track, cohort then name.
func (svc *Service) ExportStudentsCSV(ctx context.Context, w io.Writer, filter StudentFilter) error {
	views := append([]StudentView(nil), svc.QueryStudents(ctx, filter)...)
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Track.Name != views[j].Track.Name {
			return views[i].Track.Name < views[j].Track.Name
		}
		if views[i].Cohort.Name != views[j].Cohort.Name {
			return views[i].Cohort.Name < views[j].Cohort.Name
		}
		return views[i].FullName < views[j].FullName
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvStudentsHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, v := range views {
		record := []string{v.FullName, v.Email, v.Track.Name, v.Cohort.Name, v.EnrolledAt.Format("2006-01-02")}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing csv record")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
