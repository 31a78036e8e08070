package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/tests"
)

const goodPwd = "Tr1cky#Horse"

func Test_enrollmentApi_signUp(t *testing.T) {
	app, env := setup(t)
	track := testutil.CreateTrack(t, env.CurriculumRepo, "Backend")
	cohort := testutil.CreateCohort(t, env.CurriculumRepo, "2024-A")
	testutil.Whitelist(t, env.EnrollmentRepo, "jane@test.test", track.ID, cohort.ID, enrollment.WhitelistActive)
	testutil.Whitelist(t, env.EnrollmentRepo, "off@test.test", track.ID, cohort.ID, enrollment.WhitelistInactive)

	body := func(email, pwd string) []byte {
		return marchallObj(t, enrollment.SignUp{
			Email: email, Password: pwd, PasswordConfirm: pwd, FullName: "Jane Doe", TrackID: track.ID, CohortID: cohort.ID,
		})
	}
	notWhitelisted := marchallObj(t, httpErr{Error: enrollment.ErrNotWhitelisted.Error()})

	tests := []httpTest{
		{
			name: "not whitelisted", method: http.MethodPost, path: "/v1/signup", body: body("nope@test.test", goodPwd),
			wantCode: http.StatusForbidden, wantData: notWhitelisted,
		},
		{
			name: "inactive entry", method: http.MethodPost, path: "/v1/signup", body: body("off@test.test", goodPwd),
			wantCode: http.StatusForbidden, wantData: notWhitelisted,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/signup", body: body("jane@test.test", "password"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
			}),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/signup", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":            "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
				"full_name":        "this field is required",
				"track_id":         "this field is required",
				"cohort_id":        "this field is required",
			}),
		},
	}
	runHTTPTests(t, app, tests)
	assert.Zero(t, env.DB.Accounts(), "nothing may reach the auth provider before the whitelist check")

	// whitelisted, with a differently-cased email
	req, rec := newRequest(http.MethodPost, "/v1/signup", body(" JANE@test.test ", goodPwd))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var profile enrollment.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "jane@test.test", profile.Student.Email)
	assert.Equal(t, enrollment.RoleStudent, profile.Student.Role)
	require.Len(t, profile.Enrollments, 1)
	assert.Equal(t, enrollment.Ref{ID: track.ID, Name: "Backend"}, profile.Enrollments[0].Track)
	assert.Equal(t, enrollment.Ref{ID: cohort.ID, Name: "2024-A"}, profile.Enrollments[0].Cohort)
	assert.Equal(t, 1, env.DB.Accounts())

	sent := env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.test", sent[0].To[0].Address)

	// the new student can read their profile
	req, rec = newAuthRequest(http.MethodGet, "/v1/me", getToken(t, env.Conf, profile.Student))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, profile)}, rec)

	// signing up twice
	req, rec = newRequest(http.MethodPost, "/v1/signup", body("jane@test.test", goodPwd))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func Test_enrollmentApi_students(t *testing.T) {
	app, env := setup(t)
	backend := testutil.CreateTrack(t, env.CurriculumRepo, "Backend")
	frontend := testutil.CreateTrack(t, env.CurriculumRepo, "Frontend")
	cohort := testutil.CreateCohort(t, env.CurriculumRepo, "2024-A")
	admin := testutil.CreateStudent(t, env.EnrollmentRepo, "Ada Admin", "ada@test.test", enrollment.RoleAdmin)
	jane := testutil.CreateStudent(t, env.EnrollmentRepo, "Jane Doe", "jane@test.test")
	john := testutil.CreateStudent(t, env.EnrollmentRepo, "John Roe", "john@test.test")
	janeEnr := testutil.Enroll(t, env.EnrollmentRepo, jane.ID, backend.ID, cohort.ID)
	adminToken := getToken(t, env.Conf, admin)

	view := func(s enrollment.Student, e enrollment.Enrollment, trackName string) enrollment.StudentView {
		return enrollment.StudentView{
			EnrollmentID: e.ID, StudentID: s.ID, Email: s.Email, FullName: s.FullName,
			Track: enrollment.Ref{ID: e.TrackID, Name: trackName}, Cohort: enrollment.Ref{ID: cohort.ID, Name: cohort.Name},
			EnrolledAt: e.CreatedAt,
		}
	}

	tests := []httpTest{
		{name: "list", path: "/v1/students", token: adminToken, wantData: marchallList(t, view(jane, janeEnr, "Backend"))},
		{name: "by track", path: "/v1/students?track_id=" + frontend.ID, token: adminToken, wantData: marchallList(t)},
		{name: "search", path: "/v1/students?search=JANE", token: adminToken, wantData: marchallList(t, view(jane, janeEnr, "Backend"))},
		{
			name: "enroll unknown student", method: http.MethodPost, path: "/v1/enrollments", token: adminToken,
			body: []byte(`{"student_id":"ghost","track_id":"` + frontend.ID + `","cohort_id":"` + cohort.ID + `"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "student not found"}),
		},
		{
			name: "enroll twice", method: http.MethodPost, path: "/v1/enrollments", token: adminToken,
			body:     marchallObj(t, enrollment.NewEnrollment{StudentID: jane.ID, TrackID: backend.ID, CohortID: cohort.ID}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: enrollment.ErrAlreadyEnrolled.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	// admins enroll without a whitelist entry
	req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", adminToken,
		marchallObj(t, enrollment.NewEnrollment{StudentID: john.ID, TrackID: frontend.ID, CohortID: cohort.ID}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var johnEnr enrollment.Enrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &johnEnr))

	req, rec = newAuthRequest(http.MethodGet, "/v1/students?track_id="+frontend.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, view(john, johnEnr, "Frontend"))}, rec)

	t.Run("export", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students/export", adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="students.csv"`)

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "Name,Email,Track,Cohort,Enrolled Date", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "Jane Doe,jane@test.test,Backend,2024-A,"), lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "John Roe,john@test.test,Frontend,2024-A,"), lines[2])
	})

	req, rec = newAuthRequest(http.MethodDelete, "/v1/enrollments/"+johnEnr.ID, adminToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/enrollments/"+johnEnr.ID, adminToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_enrollmentApi_whitelist(t *testing.T) {
	app, env := setup(t)
	track := testutil.CreateTrack(t, env.CurriculumRepo, "Backend")
	cohort := testutil.CreateCohort(t, env.CurriculumRepo, "2024-A")
	admin := testutil.CreateStudent(t, env.EnrollmentRepo, "Ada Admin", "ada@test.test", enrollment.RoleAdmin)
	student := testutil.CreateStudent(t, env.EnrollmentRepo, "Jane Doe", "jane@test.test")
	adminToken := getToken(t, env.Conf, admin)

	entry := func(email string) enrollment.WhitelistInput {
		return enrollment.WhitelistInput{Email: email, TrackID: track.ID, CohortID: cohort.ID}
	}

	tests := []httpTest{
		{
			name: "admin only", path: "/v1/whitelist", token: getToken(t, env.Conf, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "empty", path: "/v1/whitelist", token: adminToken, wantData: marchallList(t)},
		{
			name: "bad email", method: http.MethodPost, path: "/v1/whitelist", token: adminToken,
			body: marchallObj(t, entry("not-an-email")), wantCode: http.StatusBadRequest,
		},
		{
			name: "added", method: http.MethodPost, path: "/v1/whitelist", token: adminToken,
			body: marchallObj(t, entry("New@Test.test")), wantCode: http.StatusCreated,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/v1/whitelist", token: adminToken,
			body: marchallObj(t, entry("new@test.test")), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: enrollment.ErrAlreadyWhitelisted.Error()}),
		},
		{
			name: "bulk, partial", method: http.MethodPost, path: "/v1/whitelist/bulk", token: adminToken,
			body: marchallObj(t, enrollment.BulkWhitelist{Entries: []enrollment.WhitelistInput{
				entry("a@test.test"), entry("new@test.test"), entry("broken"),
			}}),
			wantCode: http.StatusMultiStatus,
		},
		{
			name: "bulk, nothing added", method: http.MethodPost, path: "/v1/whitelist/bulk", token: adminToken,
			body:     marchallObj(t, enrollment.BulkWhitelist{Entries: []enrollment.WhitelistInput{entry("a@test.test")}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: enrollment.ErrNothingWhitelisted.Error()}),
		},
		{
			name: "bulk, empty", method: http.MethodPost, path: "/v1/whitelist/bulk", token: adminToken,
			body: []byte(`{"entries":[]}`), wantCode: http.StatusBadRequest,
		},
	}
	runHTTPTests(t, app, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/whitelist", adminToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []enrollment.WhitelistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "new@test.test", entries[0].Email)
	assert.Equal(t, "a@test.test", entries[1].Email)

	req, rec = newAuthRequest(http.MethodPut, "/v1/whitelist/"+entries[0].ID, adminToken, []byte(`{"status":"paused"}`))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"status must be active or inactive"}`, rec.Body.String())

	req, rec = newAuthRequest(http.MethodPut, "/v1/whitelist/"+entries[0].ID, adminToken, []byte(`{"status":"INACTIVE"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated enrollment.WhitelistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.IsActive())

	req, rec = newAuthRequest(http.MethodDelete, "/v1/whitelist/"+entries[1].ID, adminToken)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/v1/whitelist", adminToken)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, updated)}, rec)
}
