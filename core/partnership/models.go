package partnership

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohortly/lms/core"
)

// Partnership is an unordered pair of students keeping each other accountable within one track+cohort.
type Partnership struct {
	ID         string    `json:"id" db:"id"`
	StudentAID string    `json:"student_a_id" db:"student_a_id"`
	StudentBID string    `json:"student_b_id" db:"student_b_id"`
	TrackID    string    `json:"track_id" db:"track_id"`
	CohortID   string    `json:"cohort_id" db:"cohort_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}

// Has reports whether studentID is either member.
func (p Partnership) Has(studentID string) bool {
	return p.StudentAID == studentID || p.StudentBID == studentID
}

// Partner returns the other member, or "" if studentID is not a member.
func (p Partnership) Partner(studentID string) string {
	switch studentID {
	case p.StudentAID:
		return p.StudentBID
	case p.StudentBID:
		return p.StudentAID
	}
	return ""
}

type Member struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	GithubUsername string `json:"github_username"`
}

type View struct {
	Partnership
	StudentA Member `json:"student_a"`
	StudentB Member `json:"student_b"`
	Track    string `json:"track"`
	Cohort   string `json:"cohort"`
}

// Candidate is an enrolled student who may replace a partnership member.
type Candidate struct {
	Member
	Paired bool `json:"paired"` // already in another partnership of the same track+cohort
}

// Result is the outcome of an auto-pairing run.
type Result struct {
	Created  []Partnership `json:"created"`
	Unpaired []string      `json:"unpaired"` // student ids left without a partner
}

type Filter struct {
	TrackID   string `query:"track_id"`
	CohortID  string `query:"cohort_id"`
	StudentID string `query:"student_id"`
}

func (f *Filter) Clean() {
	f.TrackID = core.CleanString(f.TrackID)
	f.CohortID = core.CleanString(f.CohortID)
	f.StudentID = core.CleanString(f.StudentID)
}

func (f Filter) key() string {
	return keyPartnershipsPrefix + f.TrackID + ":" + f.CohortID + ":" + f.StudentID
}

// AutoPairInput is checked by the service itself so the CLI gets the same errors.
type AutoPairInput struct {
	TrackID  string `json:"track_id"`
	CohortID string `json:"cohort_id"`
}

func (ai *AutoPairInput) Clean() {
	ai.TrackID = core.CleanString(ai.TrackID)
	ai.CohortID = core.CleanString(ai.CohortID)
}

type ManualInput struct {
	StudentAID string `json:"student_a_id" validate:"required"`
	StudentBID string `json:"student_b_id" validate:"required,nefield=StudentAID"`
	TrackID    string `json:"track_id" validate:"required"`
	CohortID   string `json:"cohort_id" validate:"required"`
}

func (mi *ManualInput) Validate(validate *validator.Validate) error {
	mi.StudentAID = core.CleanString(mi.StudentAID)
	mi.StudentBID = core.CleanString(mi.StudentBID)
	mi.TrackID = core.CleanString(mi.TrackID)
	mi.CohortID = core.CleanString(mi.CohortID)
	return validate.Struct(mi)
}

// ReassignInput replaces one or both members. Empty fields keep the current member.
type ReassignInput struct {
	StudentAID string `json:"student_a_id" validate:"required_without=StudentBID"`
	StudentBID string `json:"student_b_id"`
}

func (ri *ReassignInput) Validate(validate *validator.Validate) error {
	ri.StudentAID = core.CleanString(ri.StudentAID)
	ri.StudentBID = core.CleanString(ri.StudentBID)
	return validate.Struct(ri)
}
