package inmemdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/cohortly/lms/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

// Students

func (repo *enrollmentRepository) GetStudent(_ context.Context, id string) (enrollment.Student, error) {
	return repo.db.students.get(id, enrollment.ErrStudentNotFound)
}

func (repo *enrollmentRepository) QueryStudents(_ context.Context, ids ...string) ([]enrollment.Student, error) {
	if len(ids) == 0 {
		return repo.db.students.filter(nil), nil
	}
	match := in(ids)
	return repo.db.students.filter(func(s enrollment.Student) bool { return match(s.ID) }), nil
}

func (repo *enrollmentRepository) CreateStudent(_ context.Context, s enrollment.Student) (enrollment.Student, error) {
	return repo.db.students.insertIf(s, func(rows []enrollment.Student) error {
		for _, row := range rows {
			if row.ID == s.ID || row.Email == s.Email {
				return enrollment.ErrAccountExists
			}
		}
		return nil
	})
}

// Enrollments

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.EnrollmentFilter) ([]enrollment.Enrollment, error) {
	return repo.db.enrollments.filter(func(e enrollment.Enrollment) bool {
		return (filter.StudentID == "" || e.StudentID == filter.StudentID) &&
			(filter.TrackID == "" || e.TrackID == filter.TrackID) &&
			(filter.CohortID == "" || e.CohortID == filter.CohortID)
	}), nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string) (enrollment.Enrollment, error) {
	return repo.db.enrollments.get(id, enrollment.ErrEnrollmentNotFound)
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	return repo.db.enrollments.insertIf(e, func(rows []enrollment.Enrollment) error {
		for _, row := range rows {
			if row.StudentID == e.StudentID && row.TrackID == e.TrackID && row.CohortID == e.CohortID {
				return enrollment.ErrAlreadyEnrolled
			}
		}
		return nil
	})
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, id string) error {
	return repo.db.enrollments.deleteByID(id, enrollment.ErrEnrollmentNotFound)
}

// Whitelist

func (repo *enrollmentRepository) QueryWhitelist(context.Context) ([]enrollment.WhitelistEntry, error) {
	return repo.db.whitelist.filter(nil), nil
}

func (repo *enrollmentRepository) GetWhitelistEntry(_ context.Context, id string) (enrollment.WhitelistEntry, error) {
	return repo.db.whitelist.get(id, enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) FindWhitelistEntry(_ context.Context, email, trackID, cohortID string) (enrollment.WhitelistEntry, error) {
	return repo.db.whitelist.find(func(we enrollment.WhitelistEntry) bool {
		return we.Email == email && we.TrackID == trackID && we.CohortID == cohortID
	}, enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) CreateWhitelistEntry(_ context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	return repo.db.whitelist.insertIf(we, func(rows []enrollment.WhitelistEntry) error {
		for _, row := range rows {
			if row.Email == we.Email && row.TrackID == we.TrackID && row.CohortID == we.CohortID {
				return enrollment.ErrAlreadyWhitelisted
			}
		}
		return nil
	})
}

func (repo *enrollmentRepository) UpdateWhitelistEntry(_ context.Context, we enrollment.WhitelistEntry) (enrollment.WhitelistEntry, error) {
	return repo.db.whitelist.update(we, enrollment.ErrWhitelistEntryNotFound)
}

func (repo *enrollmentRepository) DeleteWhitelistEntry(_ context.Context, id string) error {
	return repo.db.whitelist.deleteByID(id, enrollment.ErrWhitelistEntryNotFound)
}

// authProvider stands in for the third-party auth provider.
type authProvider struct {
	db *DB
}

// account is a provider account with its password hash.
type account struct {
	enrollment.Account
	hash []byte
}

func NewAuthProvider(db *DB) enrollment.AuthProvider {
	return &authProvider{db: db}
}

func (ap *authProvider) SignUp(_ context.Context, email, password string, _ map[string]interface{}) (enrollment.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return enrollment.Account{}, errors.Wrap(err, "hashing password")
	}
	acct := account{Account: enrollment.Account{ID: uuid.New().String(), Email: email}, hash: hash}
	acct, err = ap.db.accounts.insertIf(acct, func(rows []account) error {
		for _, row := range rows {
			if row.Email == email {
				return enrollment.ErrAccountExists
			}
		}
		return nil
	})
	return acct.Account, err
}

func (ap *authProvider) SignIn(_ context.Context, email, password string) (enrollment.Account, error) {
	acct, err := ap.db.accounts.find(func(a account) bool { return a.Email == email }, enrollment.ErrInvalidCredentials)
	if err != nil {
		return enrollment.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return enrollment.Account{}, enrollment.ErrInvalidCredentials
	}
	return acct.Account, nil
}

// Accounts returns how many accounts were created on the provider.
func (db *DB) Accounts() int {
	return len(db.accounts.filter(nil))
}
