package claritycall_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/tests"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{claritycall.StatusPending, claritycall.StatusScheduled, true},
		{claritycall.StatusPending, claritycall.StatusCancelled, true},
		{claritycall.StatusScheduled, claritycall.StatusCompleted, true},
		{claritycall.StatusScheduled, claritycall.StatusCancelled, true},
		{claritycall.StatusPending, claritycall.StatusCompleted, false},
		{claritycall.StatusCompleted, claritycall.StatusCancelled, false},
		{claritycall.StatusCancelled, claritycall.StatusScheduled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, claritycall.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

type fixture struct {
	env     *testutil.Env
	track   string
	cohort  string
	student enrollment.Student
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	track := testutil.CreateTrack(t, env.CurriculumRepo, "Frontend")
	cohort := testutil.CreateCohort(t, env.CurriculumRepo, "2024-B")
	s := testutil.CreateStudent(t, env.EnrollmentRepo, "Jane Doe", "jane@test.test")
	testutil.Enroll(t, env.EnrollmentRepo, s.ID, track.ID, cohort.ID)
	return fixture{env: env, track: track.ID, cohort: cohort.ID, student: s}
}

func (f fixture) request(t *testing.T) claritycall.Request {
	r, err := f.env.ClarityCall.Create(context.Background(), f.student.ID, claritycall.RequestInput{
		TrackID: f.track, CohortID: f.cohort, Topic: "Closures",
	})
	require.NoError(t, err)
	return r
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	r := f.request(t)
	assert.Equal(t, claritycall.StatusPending, r.Status)
	assert.Equal(t, f.student.ID, r.StudentID)
	assert.Nil(t, r.ScheduledAt)

	outsider := testutil.CreateStudent(t, f.env.EnrollmentRepo, "Out", "out@test.test")
	_, err := f.env.ClarityCall.Create(context.Background(), outsider.ID, claritycall.RequestInput{
		TrackID: f.track, CohortID: f.cohort, Topic: "Closures",
	})
	assert.ErrorIs(t, err, claritycall.ErrNotEnrolled)

	views := f.env.ClarityCall.Query(context.Background(), claritycall.Filter{StudentID: f.student.ID})
	require.Len(t, views, 1)
	assert.Equal(t, "Jane Doe", views[0].StudentName)
	assert.Equal(t, "jane@test.test", views[0].StudentEmail)
}

func TestSchedule(t *testing.T) {
	f := newFixture(t)
	r := f.request(t)
	ctx := context.Background()

	_, err := f.env.ClarityCall.Schedule(ctx, r.ID, claritycall.ScheduleInput{
		ScheduledAt: time.Now().Add(-time.Hour), MeetingURL: "https://meet.example.com/abc",
	})
	assert.ErrorIs(t, err, claritycall.ErrInThePast)
	assert.Empty(t, f.env.Mail.Sent())

	at := time.Now().Add(48 * time.Hour).UTC()
	r, err = f.env.ClarityCall.Schedule(ctx, r.ID, claritycall.ScheduleInput{ScheduledAt: at, MeetingURL: "https://meet.example.com/abc"})
	require.NoError(t, err)
	assert.Equal(t, claritycall.StatusScheduled, r.Status)
	require.NotNil(t, r.ScheduledAt)
	assert.True(t, at.Equal(*r.ScheduledAt))

	sent := f.env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.test", sent[0].To[0].Address)
	assert.Equal(t, core.TemplateClarityCallScheduled, sent[0].TemplateName)
	assert.Contains(t, sent[0].TextContent, "https://meet.example.com/abc")

	r, err = f.env.ClarityCall.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, claritycall.StatusCompleted, r.Status)

	_, err = f.env.ClarityCall.Complete(ctx, r.ID)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.env.ClarityCall.Complete(ctx, "ghost")
	assert.True(t, core.IsNotFound(err))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.request(t)
	_, err := f.env.ClarityCall.Cancel(ctx, core.Identity{ID: "someone-else", Role: enrollment.RoleStudent}, r.ID)
	assert.ErrorIs(t, err, claritycall.ErrNotOwner)

	r, err = f.env.ClarityCall.Cancel(ctx, core.Identity{ID: f.student.ID, Role: enrollment.RoleStudent}, r.ID)
	require.NoError(t, err)
	assert.Equal(t, claritycall.StatusCancelled, r.Status)

	r2 := f.request(t)
	r2, err = f.env.ClarityCall.Cancel(ctx, core.Identity{ID: "admin", Role: enrollment.RoleAdmin}, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, claritycall.StatusCancelled, r2.Status)

	cancelled := f.env.ClarityCall.Query(ctx, claritycall.Filter{Status: claritycall.StatusCancelled})
	assert.Len(t, cancelled, 2)
	assert.Empty(t, f.env.ClarityCall.Query(ctx, claritycall.Filter{Status: claritycall.StatusPending}))
}
