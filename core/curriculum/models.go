package curriculum

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohortly/lms/core"
)

// Track is a named curriculum path (e.g. Frontend, Backend).
type Track struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// Cohort is a student intake group.
type Cohort struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// IsActive reports whether t falls within the cohort dates.
func (c Cohort) IsActive(t time.Time) bool {
	return !t.Before(c.StartDate) && !t.After(c.EndDate)
}

type Week struct {
	ID          string `json:"id" db:"id"`
	TrackID     string `json:"track_id" db:"track_id"`
	Number      int    `json:"number" db:"number"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
}

type Lesson struct {
	ID         string `json:"id" db:"id"`
	WeekID     string `json:"week_id" db:"week_id"`
	Title      string `json:"title" db:"title"`
	ContentURL string `json:"content_url" db:"content_url"`
	Position   int    `json:"position" db:"position"`
}

type Assignment struct {
	ID          string     `json:"id" db:"id"`
	TrackID     string     `json:"track_id" db:"track_id"`
	WeekID      string     `json:"week_id" db:"week_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
}

// AssignmentFilter narrows QueryAssignments; empty fields match everything.
type AssignmentFilter struct {
	TrackID string `query:"track_id"`
	WeekID  string `query:"week_id"`
}

func (af *AssignmentFilter) Clean() {
	af.TrackID = core.CleanString(af.TrackID)
	af.WeekID = core.CleanString(af.WeekID)
}

// TrackInput is what may be provided to create or modify a Track.
type TrackInput struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
}

func (ti *TrackInput) Validate(validate *validator.Validate) error {
	ti.Name = core.CleanString(ti.Name)
	ti.Description = core.CleanString(ti.Description)
	return validate.Struct(ti)
}

// CohortInput is what may be provided to create or modify a Cohort.
type CohortInput struct {
	Name      string    `json:"name" validate:"required,notblank"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (ci *CohortInput) Validate(validate *validator.Validate) error {
	ci.Name = core.CleanString(ci.Name)
	ci.StartDate = ci.StartDate.UTC()
	ci.EndDate = ci.EndDate.UTC()
	return validate.Struct(ci)
}

type WeekInput struct {
	TrackID     string `json:"track_id" validate:"required"`
	Number      int    `json:"number" validate:"min=1"`
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
}

func (wi *WeekInput) Validate(validate *validator.Validate) error {
	wi.TrackID = core.CleanString(wi.TrackID)
	wi.Title = core.CleanString(wi.Title)
	wi.Description = core.CleanString(wi.Description)
	return validate.Struct(wi)
}

type LessonInput struct {
	WeekID     string `json:"week_id" validate:"required"`
	Title      string `json:"title" validate:"required,notblank"`
	ContentURL string `json:"content_url" validate:"omitempty,url"`
	Position   int    `json:"position" validate:"min=0"`
}

func (li *LessonInput) Validate(validate *validator.Validate) error {
	li.WeekID = core.CleanString(li.WeekID)
	li.Title = core.CleanString(li.Title)
	li.ContentURL = core.CleanString(li.ContentURL)
	return validate.Struct(li)
}

type AssignmentInput struct {
	TrackID     string     `json:"track_id" validate:"required"`
	WeekID      string     `json:"week_id" validate:"required"`
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

func (ai *AssignmentInput) Validate(validate *validator.Validate) error {
	ai.TrackID = core.CleanString(ai.TrackID)
	ai.WeekID = core.CleanString(ai.WeekID)
	ai.Title = core.CleanString(ai.Title)
	ai.Description = core.CleanString(ai.Description)
	if ai.DueDate != nil {
		due := ai.DueDate.UTC()
		ai.DueDate = &due
	}
	return validate.Struct(ai)
}
