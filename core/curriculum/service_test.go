package curriculum_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/curriculum"
	"github.com/cohortly/lms/tests"
)

// brokenRepo fails every track read.
type brokenRepo struct {
	curriculum.Repository
}

func (brokenRepo) QueryTracks(context.Context) ([]curriculum.Track, error) {
	return nil, errors.New("connection refused")
}

func TestQueryTracks_CachedUntilWrite(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	assert.Empty(t, env.Curriculum.QueryTracks(ctx))

	// written behind the service's back: the cached listing is still served
	testutil.CreateTrack(t, env.CurriculumRepo, "Frontend")
	assert.Empty(t, env.Curriculum.QueryTracks(ctx))

	_, err := env.Curriculum.CreateTrack(ctx, curriculum.TrackInput{Name: "Backend"})
	require.NoError(t, err)
	tracks := env.Curriculum.QueryTracks(ctx)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Backend", tracks[0].Name)
	assert.Equal(t, "Frontend", tracks[1].Name)
}

func TestQueryTracks_Degrades(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CurriculumRepo = brokenRepo{env.CurriculumRepo}
	env.Wire()

	tracks := env.Curriculum.QueryTracks(context.Background())
	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)
	assert.Zero(t, env.Cache.Len())
}

func TestCreateWeek_UnknownTrack(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := env.Curriculum.CreateWeek(context.Background(), curriculum.WeekInput{TrackID: "ghost", Number: 1, Title: "Intro"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "track_id", verr.Fields[0].Field)
	assert.ErrorIs(t, err, curriculum.ErrTrackNotFound)
}

func TestDeleteTrack_Cascades(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	track, err := env.Curriculum.CreateTrack(ctx, curriculum.TrackInput{Name: "Backend"})
	require.NoError(t, err)
	week, err := env.Curriculum.CreateWeek(ctx, curriculum.WeekInput{TrackID: track.ID, Number: 1, Title: "HTTP"})
	require.NoError(t, err)
	_, err = env.Curriculum.CreateLesson(ctx, curriculum.LessonInput{WeekID: week.ID, Title: "Handlers"})
	require.NoError(t, err)
	_, err = env.Curriculum.CreateAssignment(ctx, curriculum.AssignmentInput{TrackID: track.ID, WeekID: week.ID, Title: "API"})
	require.NoError(t, err)

	require.Len(t, env.Curriculum.QueryWeeks(ctx, track.ID), 1)
	require.Len(t, env.Curriculum.QueryLessons(ctx, week.ID), 1)
	require.Len(t, env.Curriculum.QueryAssignments(ctx, curriculum.AssignmentFilter{TrackID: track.ID}), 1)

	require.NoError(t, env.Curriculum.DeleteTrack(ctx, track.ID))
	assert.Empty(t, env.Curriculum.QueryTracks(ctx))
	assert.Empty(t, env.Curriculum.QueryWeeks(ctx, track.ID))
	assert.Empty(t, env.Curriculum.QueryLessons(ctx, week.ID))
	assert.Empty(t, env.Curriculum.QueryAssignments(ctx, curriculum.AssignmentFilter{TrackID: track.ID}))

	_, err = env.Curriculum.GetTrack(ctx, track.ID)
	assert.ErrorIs(t, err, curriculum.ErrTrackNotFound)
}

func TestCohortIsActive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := curriculum.Cohort{StartDate: start, EndDate: start.AddDate(0, 3, 0)}
	assert.True(t, c.IsActive(start))
	assert.True(t, c.IsActive(start.AddDate(0, 1, 0)))
	assert.True(t, c.IsActive(c.EndDate))
	assert.False(t, c.IsActive(start.Add(-time.Second)))
	assert.False(t, c.IsActive(c.EndDate.Add(time.Second)))
}
