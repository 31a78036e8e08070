package claritycall

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohortly/lms/core"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var transitions = map[string][]string{
	StatusPending:   {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Request is a student asking for a one-on-one call to clear up a topic.
type Request struct {
	ID          string     `json:"id" db:"id"`
	StudentID   string     `json:"student_id" db:"student_id"`
	TrackID     string     `json:"track_id" db:"track_id"`
	CohortID    string     `json:"cohort_id" db:"cohort_id"`
	Topic       string     `json:"topic" db:"topic"`
	Details     string     `json:"details" db:"details"`
	Status      string     `json:"status" db:"status"`
	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	MeetingURL  string     `json:"meeting_url" db:"meeting_url"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"` // UTC
}

type View struct {
	Request
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

type Filter struct {
	StudentID string `query:"student_id"`
	TrackID   string `query:"track_id"`
	CohortID  string `query:"cohort_id"`
	Status    string `query:"status"`
}

func (f *Filter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.TrackID = core.CleanString(f.TrackID)
	f.CohortID = core.CleanString(f.CohortID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

func (f Filter) key() string {
	return keyCallsPrefix + f.StudentID + ":" + f.TrackID + ":" + f.CohortID + ":" + f.Status
}

type RequestInput struct {
	TrackID  string `json:"track_id" validate:"required"`
	CohortID string `json:"cohort_id" validate:"required"`
	Topic    string `json:"topic" validate:"required,notblank,max=200"`
	Details  string `json:"details" validate:"max=2000"`
}

func (ri *RequestInput) Validate(validate *validator.Validate) error {
	ri.TrackID = core.CleanString(ri.TrackID)
	ri.CohortID = core.CleanString(ri.CohortID)
	ri.Topic = core.CleanString(ri.Topic)
	ri.Details = core.CleanString(ri.Details)
	return validate.Struct(ri)
}

type ScheduleInput struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	MeetingURL  string    `json:"meeting_url" validate:"required,url"`
}

func (si *ScheduleInput) Validate(validate *validator.Validate) error {
	si.MeetingURL = core.CleanString(si.MeetingURL)
	si.ScheduledAt = si.ScheduledAt.UTC()
	return validate.Struct(si)
}
