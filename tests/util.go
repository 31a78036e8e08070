package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/cache"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/core/dashboard"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
	emailsvc "github.com/cohortly/lms/services/email"
	inmemdb "github.com/cohortly/lms/storage/database/inmem"
)

// Env wires every service over the in-memory store.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Cache      *cache.Cache
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	CurriculumRepo  curriculum.Repository
	EnrollmentRepo  enrollment.Repository
	SubmissionRepo  submission.Repository
	PartnershipRepo partnership.Repository
	ClarityCallRepo claritycall.Repository

	Curriculum  *curriculum.Service
	Enrollment  *enrollment.Service
	Submission  *submission.Service
	Partnership *partnership.Service
	ClarityCall *claritycall.Service
	Dashboard   *dashboard.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewConfig()
	conf.Pairing.Timeout = 5 * time.Second
	validate, translator := core.NewValidator()
	enrollment.InitValidators(validate, translator)
	enrollment.LoadCommonPasswords(core.NopLogger())

	db := inmemdb.Open()
	env := &Env{
		Conf:            conf,
		DB:              db,
		Cache:           cache.New(),
		Mail:            emailsvc.NewConsoleServiceMock(conf),
		Validate:        validate,
		Translator:      translator,
		CurriculumRepo:  inmemdb.NewCurriculumRepository(db),
		EnrollmentRepo:  inmemdb.NewEnrollmentRepository(db),
		SubmissionRepo:  inmemdb.NewSubmissionRepository(db),
		PartnershipRepo: inmemdb.NewPartnershipRepository(db),
		ClarityCallRepo: inmemdb.NewClarityCallRepository(db),
	}
	env.Wire()
	return env
}

// Wire (re)builds the services from the current repositories; reassign a repository then call Wire to swap it.
func (env *Env) Wire() {
	ttl := cache.DefaultTTLs()
	logger := core.NopLogger()
	env.Curriculum = curriculum.NewService(env.CurriculumRepo, env.Cache, ttl, logger)
	env.Enrollment = enrollment.NewService(
		env.EnrollmentRepo, inmemdb.NewAuthProvider(env.DB), env.Curriculum, env.Mail, env.Cache, ttl, logger,
	)
	env.Submission = submission.NewService(env.SubmissionRepo, env.Curriculum, env.Enrollment, env.Cache, ttl, logger)
	env.Partnership = partnership.NewService(
		env.PartnershipRepo, env.Enrollment, env.Curriculum, env.Mail, env.Cache, ttl, logger,
		partnership.Options{Timeout: env.Conf.Pairing.Timeout, AdminEmail: env.Conf.AdminEmail},
	)
	env.ClarityCall = claritycall.NewService(env.ClarityCallRepo, env.Enrollment, env.Mail, env.Cache, ttl, logger)
	env.Dashboard = dashboard.NewService(env.Curriculum, env.Enrollment, env.Submission, env.Partnership, env.ClarityCall)
}

func CreateTrack(t *testing.T, repo curriculum.Repository, name string) curriculum.Track {
	t.Helper()
	track, err := repo.CreateTrack(context.Background(), curriculum.Track{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err, "CreateTrack()")
	return track
}

// CreateCohort creates a cohort running from a month ago to two months from now.
func CreateCohort(t *testing.T, repo curriculum.Repository, name string) curriculum.Cohort {
	t.Helper()
	now := time.Now().UTC()
	cohort, err := repo.CreateCohort(context.Background(), curriculum.Cohort{
		ID:        uuid.New().String(),
		Name:      name,
		StartDate: now.AddDate(0, -1, 0),
		EndDate:   now.AddDate(0, 2, 0),
		CreatedAt: now,
	})
	require.NoError(t, err, "CreateCohort()")
	return cohort
}

func CreateAssignment(t *testing.T, repo curriculum.Repository, trackID, title string) curriculum.Assignment {
	t.Helper()
	a, err := repo.CreateAssignment(context.Background(), curriculum.Assignment{
		ID:      uuid.New().String(),
		TrackID: trackID,
		Title:   title,
	})
	require.NoError(t, err, "CreateAssignment()")
	return a
}

func CreateStudent(t *testing.T, repo enrollment.Repository, name, email string, role ...string) enrollment.Student {
	t.Helper()
	r := enrollment.RoleStudent
	if len(role) > 0 {
		r = role[0]
	}
	s, err := repo.CreateStudent(context.Background(), enrollment.Student{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  name,
		Role:      r,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err, "CreateStudent()")
	return s
}

func Enroll(t *testing.T, repo enrollment.Repository, studentID, trackID, cohortID string) enrollment.Enrollment {
	t.Helper()
	e, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ID:        uuid.New().String(),
		StudentID: studentID,
		TrackID:   trackID,
		CohortID:  cohortID,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err, "Enroll()")
	return e
}

func Whitelist(t *testing.T, repo enrollment.Repository, email, trackID, cohortID, status string) enrollment.WhitelistEntry {
	t.Helper()
	we, err := repo.CreateWhitelistEntry(context.Background(), enrollment.WhitelistEntry{
		ID:        uuid.New().String(),
		Email:     email,
		TrackID:   trackID,
		CohortID:  cohortID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err, "Whitelist()")
	return we
}

// EnrollMany creates and enrolls n students named S1..Sn, returned in enrollment order.
func EnrollMany(t *testing.T, repo enrollment.Repository, n int, trackID, cohortID string) []enrollment.Student {
	t.Helper()
	students := make([]enrollment.Student, 0, n)
	for i := 1; i <= n; i++ {
		name := "S" + strconv.Itoa(i)
		s := CreateStudent(t, repo, name, uuid.New().String()[:8]+"@test.test")
		Enroll(t, repo, s.ID, trackID, cohortID)
		students = append(students, s)
	}
	return students
}

