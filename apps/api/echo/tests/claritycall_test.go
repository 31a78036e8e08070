package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core/claritycall"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/tests"
)

func Test_clarityCallApi(t *testing.T) {
	app, env := setup(t)
	track := testutil.CreateTrack(t, env.CurriculumRepo, "Backend")
	cohort := testutil.CreateCohort(t, env.CurriculumRepo, "2024-A")

	admin := testutil.CreateStudent(t, env.EnrollmentRepo, "Ada Admin", "ada@test.test", enrollment.RoleAdmin)
	jane := testutil.CreateStudent(t, env.EnrollmentRepo, "Jane Doe", "jane@test.test")
	john := testutil.CreateStudent(t, env.EnrollmentRepo, "John Roe", "john@test.test")
	testutil.Enroll(t, env.EnrollmentRepo, jane.ID, track.ID, cohort.ID)
	adminToken, janeToken, johnToken := getToken(t, env.Conf, admin), getToken(t, env.Conf, jane), getToken(t, env.Conf, john)

	ask := marchallObj(t, claritycall.RequestInput{TrackID: track.ID, CohortID: cohort.ID, Topic: "Goroutine leaks"})
	create := func(token string) claritycall.Request {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/clarity-calls", token, ask)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var r claritycall.Request
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		return r
	}
	call := create(janeToken)
	assert.Equal(t, claritycall.StatusPending, call.Status)
	assert.Equal(t, jane.ID, call.StudentID)

	schedule := func(at time.Time) []byte {
		return marchallObj(t, claritycall.ScheduleInput{ScheduledAt: at, MeetingURL: "https://meet.test/abc"})
	}
	future := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	runHTTPTests(t, app, []httpTest{
		{name: "needs a token", path: "/v1/clarity-calls", wantCode: http.StatusUnauthorized},
		{
			name: "not enrolled", method: http.MethodPost, path: "/v1/clarity-calls", token: johnToken,
			body:     ask,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: claritycall.ErrNotEnrolled.Error()}),
		},
		{
			name: "no topic", method: http.MethodPost, path: "/v1/clarity-calls", token: janeToken,
			body:     marchallObj(t, claritycall.RequestInput{TrackID: track.ID, CohortID: cohort.ID, Topic: "  "}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "scheduling is admin only", method: http.MethodPost, path: "/v1/clarity-calls/" + call.ID + "/schedule", token: janeToken,
			body: schedule(future), wantCode: http.StatusForbidden,
		},
		{
			name: "scheduling in the past", method: http.MethodPost, path: "/v1/clarity-calls/" + call.ID + "/schedule", token: adminToken,
			body:     schedule(time.Now().Add(-time.Hour)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"scheduled_at": "a call cannot be scheduled in the past"}),
		},
		{
			name: "completing a pending call", method: http.MethodPost, path: "/v1/clarity-calls/" + call.ID + "/complete", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "a pending call cannot be completed"}),
		},
		{
			name: "cancelling someone else's", method: http.MethodPost, path: "/v1/clarity-calls/" + call.ID + "/cancel", token: johnToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: claritycall.ErrNotOwner.Error()}),
		},
		{name: "unknown", method: http.MethodPost, path: "/v1/clarity-calls/ghost/complete", token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("schedule then complete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/clarity-calls/"+call.ID+"/schedule", adminToken, schedule(future))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r claritycall.Request
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Equal(t, claritycall.StatusScheduled, r.Status)
		require.NotNil(t, r.ScheduledAt)
		assert.True(t, future.Equal(*r.ScheduledAt))
		assert.Equal(t, "https://meet.test/abc", r.MeetingURL)

		sent := env.Mail.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, jane.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "Goroutine leaks")

		req, rec = newAuthRequest(http.MethodPost, "/v1/clarity-calls/"+call.ID+"/complete", adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodPost, "/v1/clarity-calls/"+call.ID+"/cancel", janeToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("student cancels", func(t *testing.T) {
		other := create(janeToken)
		req, rec := newAuthRequest(http.MethodPost, "/v1/clarity-calls/"+other.ID+"/cancel", janeToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r claritycall.Request
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Equal(t, claritycall.StatusCancelled, r.Status)
	})

	t.Run("listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/clarity-calls", janeToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var views []claritycall.View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		assert.Len(t, views, 2)

		req, rec = newAuthRequest(http.MethodGet, "/v1/clarity-calls", johnToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/clarity-calls?status=completed", adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		require.Len(t, views, 1)
		assert.Equal(t, "Jane Doe", views[0].StudentName)
		assert.Equal(t, claritycall.StatusCompleted, views[0].Status)
	})
}
