package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohortly/lms/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Whitelist statuses
const (
	WhitelistActive   = "active"
	WhitelistInactive = "inactive"
)

var AllRoles = []string{RoleStudent, RoleAdmin}

// Student is the profile row of an account owned by the auth provider.
type Student struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	FullName       string    `json:"full_name" db:"full_name"`
	GithubUsername string    `json:"github_username" db:"github_username"`
	Role           string    `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
}

// DisplayName falls back to the email when no name was given.
func (s Student) DisplayName() string {
	if s.FullName != "" {
		return s.FullName
	}
	return s.Email
}

// Enrollment is a student's membership in one track+cohort.
type Enrollment struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	TrackID   string    `json:"track_id" db:"track_id"`
	CohortID  string    `json:"cohort_id" db:"cohort_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// WhitelistEntry pre-approves an email for self-registration into a track+cohort.
type WhitelistEntry struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	TrackID   string    `json:"track_id" db:"track_id"`
	CohortID  string    `json:"cohort_id" db:"cohort_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

func (we WhitelistEntry) IsActive() bool { return we.Status == WhitelistActive }

type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StudentView is an enrollment joined with its student, track and cohort.
type StudentView struct {
	EnrollmentID   string    `json:"enrollment_id"`
	StudentID      string    `json:"student_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	GithubUsername string    `json:"github_username"`
	Track          Ref       `json:"track"`
	Cohort         Ref       `json:"cohort"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

// Profile is what a signed-in student sees about themselves.
type Profile struct {
	Student     Student       `json:"student"`
	Enrollments []StudentView `json:"enrollments"`
}

// Account is the auth provider's side of a newly registered user.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type EnrollmentFilter struct {
	StudentID string
	TrackID   string
	CohortID  string
}

type StudentFilter struct {
	TrackID  string `query:"track_id"`
	CohortID string `query:"cohort_id"`
	Search   string `query:"search"`
}

func (sf *StudentFilter) Clean() {
	sf.TrackID = core.CleanString(sf.TrackID)
	sf.CohortID = core.CleanString(sf.CohortID)
	sf.Search = core.CleanString(sf.Search, true /* lower */)
}

// SignUp contains information needed to self-register.
type SignUp struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,notblank"`
	GithubUsername  string `json:"github_username" validate:"omitempty,max=39,githubuser"`
	TrackID         string `json:"track_id" validate:"required"`
	CohortID        string `json:"cohort_id" validate:"required"`
}

func (su *SignUp) Validate(validate *validator.Validate) error {
	su.Email = core.CleanString(su.Email, true /* lower */)
	su.FullName = core.CleanString(su.FullName)
	su.GithubUsername = core.CleanString(su.GithubUsername)
	su.TrackID = core.CleanString(su.TrackID)
	su.CohortID = core.CleanString(su.CohortID)
	return validate.Struct(su)
}

// NewEnrollment is an admin enrolling an existing student.
type NewEnrollment struct {
	StudentID string `json:"student_id" validate:"required"`
	TrackID   string `json:"track_id" validate:"required"`
	CohortID  string `json:"cohort_id" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.TrackID = core.CleanString(ne.TrackID)
	ne.CohortID = core.CleanString(ne.CohortID)
	return validate.Struct(ne)
}

type WhitelistInput struct {
	Email    string `json:"email" validate:"required,email"`
	TrackID  string `json:"track_id" validate:"required"`
	CohortID string `json:"cohort_id" validate:"required"`
	Status   string `json:"status" validate:"omitempty,whiteliststatus"`
}

func (wi *WhitelistInput) Clean() {
	wi.Email = core.CleanString(wi.Email, true /* lower */)
	wi.TrackID = core.CleanString(wi.TrackID)
	wi.CohortID = core.CleanString(wi.CohortID)
	wi.Status = core.CleanString(wi.Status, true /* lower */)
	if wi.Status == "" {
		wi.Status = WhitelistActive
	}
}

func (wi *WhitelistInput) Validate(validate *validator.Validate) error {
	wi.Clean()
	return validate.Struct(wi)
}

type BulkWhitelist struct {
	Entries []WhitelistInput `json:"entries" validate:"required,min=1"`
}

// Validate only checks the envelope; entries are validated one by one so a bad row does not fail the batch.
func (bw *BulkWhitelist) Validate(validate *validator.Validate) error {
	return validate.Struct(bw)
}

type WhitelistStatusUpdate struct {
	Status string `json:"status" validate:"required,whiteliststatus"`
}

func (ws *WhitelistStatusUpdate) Validate(validate *validator.Validate) error {
	ws.Status = core.CleanString(ws.Status, true /* lower */)
	return validate.Struct(ws)
}

type BulkFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type BulkResult struct {
	Created []WhitelistEntry `json:"created"`
	Failed  []BulkFailure    `json:"failed"`
}
