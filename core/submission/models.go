package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohortly/lms/core"
)

// Statuses
const (
	StatusPending      = "pending"
	StatusInReview     = "in_review"
	StatusApproved     = "approved"
	StatusNeedsChanges = "needs_changes"
)

var AllStatuses = []string{StatusPending, StatusInReview, StatusApproved, StatusNeedsChanges}

// transitions lists, per status, the statuses it may move to.
var transitions = map[string][]string{
	StatusPending:      {StatusInReview, StatusApproved, StatusNeedsChanges},
	StatusInReview:     {StatusApproved, StatusNeedsChanges},
	StatusNeedsChanges: {StatusPending},
}

// CanTransition reports whether a submission in status from may move to status to.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Submission struct {
	ID           string     `json:"id" db:"id"`
	StudentID    string     `json:"student_id" db:"student_id"`
	AssignmentID string     `json:"assignment_id" db:"assignment_id"`
	GithubURL    string     `json:"github_url" db:"github_url"`
	DemoURL      string     `json:"demo_url" db:"demo_url"`
	Notes        string     `json:"notes" db:"notes"`
	Status       string     `json:"status" db:"status"`
	Feedback     string     `json:"feedback" db:"feedback"`
	ReviewerID   string     `json:"reviewer_id,omitempty" db:"reviewer_id"`
	SubmittedAt  time.Time  `json:"submitted_at" db:"submitted_at"` // UTC
	ReviewedAt   *time.Time `json:"reviewed_at" db:"reviewed_at"`
}

// View is a submission joined with its student, assignment and track.
type View struct {
	Submission
	StudentName    string `json:"student_name"`
	StudentEmail   string `json:"student_email"`
	GithubUsername string `json:"github_username"`
	Assignment     string `json:"assignment"`
	TrackID        string `json:"track_id"`
	Track          string `json:"track"`
}

// Filter narrows a submission listing; empty fields match everything.
type Filter struct {
	StudentID    string `query:"student_id"`
	AssignmentID string `query:"assignment_id"`
	TrackID      string `query:"track_id"`
	Status       string `query:"status"`
}

func (f *Filter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.AssignmentID = core.CleanString(f.AssignmentID)
	f.TrackID = core.CleanString(f.TrackID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

func (f Filter) key() string {
	return keySubmissionsPrefix + f.StudentID + ":" + f.AssignmentID + ":" + f.TrackID + ":" + f.Status
}

type SubmitInput struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	GithubURL    string `json:"github_url" validate:"required,url"`
	DemoURL      string `json:"demo_url" validate:"omitempty,url"`
	Notes        string `json:"notes" validate:"max=2000"`
}

func (si *SubmitInput) Validate(validate *validator.Validate) error {
	si.AssignmentID = core.CleanString(si.AssignmentID)
	si.GithubURL = core.CleanString(si.GithubURL)
	si.DemoURL = core.CleanString(si.DemoURL)
	si.Notes = core.CleanString(si.Notes)
	return validate.Struct(si)
}

type ResubmitInput struct {
	GithubURL string `json:"github_url" validate:"required,url"`
	DemoURL   string `json:"demo_url" validate:"omitempty,url"`
	Notes     string `json:"notes" validate:"max=2000"`
}

func (ri *ResubmitInput) Validate(validate *validator.Validate) error {
	ri.GithubURL = core.CleanString(ri.GithubURL)
	ri.DemoURL = core.CleanString(ri.DemoURL)
	ri.Notes = core.CleanString(ri.Notes)
	return validate.Struct(ri)
}

type ReviewInput struct {
	Status   string `json:"status" validate:"required,oneof=in_review approved needs_changes"`
	Feedback string `json:"feedback" validate:"required_if=Status needs_changes,max=5000"`
}

func (ri *ReviewInput) Validate(validate *validator.Validate) error {
	ri.Status = core.CleanString(ri.Status, true /* lower */)
	ri.Feedback = core.CleanString(ri.Feedback)
	return validate.Struct(ri)
}
