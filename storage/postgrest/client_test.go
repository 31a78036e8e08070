package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
	"github.com/cohortly/lms/core/partnership"
	"github.com/cohortly/lms/core/submission"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// fakeStore answers every request with status and body, and records what it got.
type fakeStore struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
}

func (fs *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	fs.mu.Lock()
	fs.requests = append(fs.requests, recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   string(b),
	})
	status, body := fs.status, fs.body
	fs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (fs *fakeStore) reply(status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status, fs.body = status, body
}

func (fs *fakeStore) last(t *testing.T) recorded {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.NotEmpty(t, fs.requests)
	return fs.requests[len(fs.requests)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeStore, *core.Config) {
	t.Helper()
	fs := &fakeStore{}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	conf := &core.Config{Store: core.StoreConfig{RequestTimeout: 5 * time.Second}}
	conf.SetStoreCredentials(srv.URL+"/", "anon-key")
	return NewClient(conf, core.NopLogger()).WithHTTPClient(srv.Client()), fs, conf
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(&core.Config{}, core.NopLogger())
	_, err := NewEnrollmentRepository(client).QueryWhitelist(context.Background())
	assert.ErrorIs(t, err, core.ErrStoreNotConfigured)
}

func TestClient_Select(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusOK, `[{"id":"e1","student_id":"s1","track_id":"t1","cohort_id":"c1","created_at":"2024-02-01T10:00:00+00:00"}]`)

	enrs, err := NewEnrollmentRepository(client).QueryEnrollments(context.Background(), enrollment.EnrollmentFilter{TrackID: "t1", CohortID: "c1"})
	require.NoError(t, err)
	require.Len(t, enrs, 1)
	assert.Equal(t, "s1", enrs[0].StudentID)
	assert.True(t, enrs[0].CreatedAt.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))

	req := fs.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/rest/v1/enrollments", req.Path)
	assert.Equal(t, "eq.t1", req.Query.Get("track_id"))
	assert.Equal(t, "eq.c1", req.Query.Get("cohort_id"))
	assert.NotContains(t, req.Query, "student_id")
	assert.Equal(t, "*", req.Query.Get("select"))
	assert.Equal(t, "created_at.asc", req.Query.Get("order"))
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get("Prefer"))
}

func TestClient_InFilter(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusOK, `[]`)

	students, err := NewEnrollmentRepository(client).QueryStudents(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.NotNil(t, students)
	assert.Empty(t, students)
	assert.Equal(t, `in.("a","b")`, fs.last(t).Query.Get("id"))
}

func TestClient_OrFilter(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusOK, `[]`)

	_, err := NewPartnershipRepository(client).QueryPartnerships(context.Background(), partnership.Filter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, `(student_a_id.eq."s1",student_b_id.eq."s1")`, fs.last(t).Query.Get("or"))

	// reserved characters stay inside the quoted value
	_, err = NewPartnershipRepository(client).QueryPartnerships(context.Background(), partnership.Filter{StudentID: `x,student_a_id.neq."y"`})
	require.NoError(t, err)
	assert.Equal(t, `(student_a_id.eq."x,student_a_id.neq.\"y\"",student_b_id.eq."x,student_a_id.neq.\"y\"")`, fs.last(t).Query.Get("or"))
}

func TestClient_EmptyIDNeverReachesTheStore(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusOK, `[{"id":"s1","student_id":"u1","assignment_id":"a1","status":"pending"}]`)
	ctx := context.Background()

	_, err := NewSubmissionRepository(client).UpdateSubmission(ctx, submission.Submission{Status: submission.StatusApproved})
	assert.ErrorIs(t, err, submission.ErrNotFound)

	err = NewEnrollmentRepository(client).DeleteEnrollment(ctx, "")
	assert.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)

	_, err = NewSubmissionRepository(client).GetSubmission(ctx, "")
	assert.ErrorIs(t, err, submission.ErrNotFound)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Empty(t, fs.requests)
}

func TestClient_Insert(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusCreated, `[{"id":"w1","email":"a@test.test","track_id":"t1","cohort_id":"c1","status":"active"}]`)

	we, err := NewEnrollmentRepository(client).CreateWhitelistEntry(context.Background(), enrollment.WhitelistEntry{
		ID: "w1", Email: "a@test.test", TrackID: "t1", CohortID: "c1", Status: enrollment.WhitelistActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "w1", we.ID)

	req := fs.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "return=representation", req.Header.Get("Prefer"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(req.Body), &sent))
	assert.Equal(t, "a@test.test", sent["email"])
}

func TestClient_ErrorMapping(t *testing.T) {
	client, fs, _ := newTestClient(t)
	repo := NewEnrollmentRepository(client)
	ctx := context.Background()

	fs.reply(http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
	_, err := repo.CreateWhitelistEntry(ctx, enrollment.WhitelistEntry{ID: "w1"})
	assert.ErrorIs(t, err, enrollment.ErrAlreadyWhitelisted)

	fs.reply(http.StatusOK, `[]`)
	_, err = repo.GetStudent(ctx, "ghost")
	assert.ErrorIs(t, err, enrollment.ErrStudentNotFound)

	fs.reply(http.StatusBadRequest, `{"code":"22P02","message":"invalid input syntax for type uuid"}`)
	_, err = repo.GetStudent(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, enrollment.ErrStudentNotFound)

	fs.reply(http.StatusOK, `[]`)
	err = repo.DeleteEnrollment(ctx, "ghost")
	assert.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)

	fs.reply(http.StatusInternalServerError, `boom`)
	_, err = repo.QueryWhitelist(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
	assert.False(t, core.IsNotFound(err))
}

func TestClient_Update(t *testing.T) {
	client, fs, _ := newTestClient(t)
	fs.reply(http.StatusOK, `[{"id":"s1","student_id":"u1","assignment_id":"a1","status":"approved","submitted_at":"2024-02-01T10:00:00Z"}]`)

	s, err := NewSubmissionRepository(client).UpdateSubmission(context.Background(), submission.Submission{ID: "s1", Status: submission.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, submission.StatusApproved, s.Status)

	req := fs.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "eq.s1", req.Query.Get("id"))

	fs.reply(http.StatusOK, `[]`)
	_, err = NewSubmissionRepository(client).UpdateSubmission(context.Background(), submission.Submission{ID: "ghost"})
	assert.ErrorIs(t, err, submission.ErrNotFound)
}

func TestClient_CredentialsReadPerCall(t *testing.T) {
	client, fs, conf := newTestClient(t)
	fs.reply(http.StatusOK, `[]`)
	repo := NewEnrollmentRepository(client)

	_, err := repo.QueryWhitelist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anon-key", fs.last(t).Header.Get("apikey"))

	conf.SetStoreCredentials("", "rotated-key")
	_, err = repo.QueryWhitelist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-key", fs.last(t).Header.Get("apikey"))
}

func TestAuthProvider_SignUp(t *testing.T) {
	client, fs, conf := newTestClient(t)
	auth := NewAuthProvider(client)
	ctx := context.Background()

	fs.reply(http.StatusOK, `{"access_token":"x","user":{"id":"u1","email":"a@test.test"}}`)
	acct, err := auth.SignUp(ctx, "a@test.test", "pwd", map[string]interface{}{"full_name": "A"})
	require.NoError(t, err)
	assert.Equal(t, enrollment.Account{ID: "u1", Email: "a@test.test"}, acct)

	req := fs.last(t)
	assert.Equal(t, signupPath, req.Path)
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
	var sent signupRequest
	require.NoError(t, json.Unmarshal([]byte(req.Body), &sent))
	assert.Equal(t, "A", sent.Data["full_name"])

	// unconfirmed users come back unwrapped
	fs.reply(http.StatusOK, `{"id":"u2","email":"b@test.test"}`)
	acct, err = auth.SignUp(ctx, "b@test.test", "pwd", nil)
	require.NoError(t, err)
	assert.Equal(t, "u2", acct.ID)

	fs.reply(http.StatusUnprocessableEntity, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
	_, err = auth.SignUp(ctx, "a@test.test", "pwd", nil)
	assert.ErrorIs(t, err, enrollment.ErrAccountExists)

	fs.reply(http.StatusBadRequest, `{"code":400,"msg":"Password should be at least 6 characters"}`)
	_, err = auth.SignUp(ctx, "c@test.test", "pwd", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password should be at least 6 characters")

	creds, err := conf.StoreCredentials()
	require.NoError(t, err)
	conf.Auth.SignupURL = creds.URL + "/custom/signup"
	fs.reply(http.StatusOK, `{"id":"u3"}`)
	acct, err = auth.SignUp(ctx, "d@test.test", "pwd", nil)
	require.NoError(t, err)
	assert.Equal(t, "d@test.test", acct.Email)
	assert.Equal(t, "/custom/signup", fs.last(t).Path)
}

func TestAuthProvider_SignIn(t *testing.T) {
	client, fs, _ := newTestClient(t)
	auth := NewAuthProvider(client)
	ctx := context.Background()

	fs.reply(http.StatusOK, `{"access_token":"x","token_type":"bearer","user":{"id":"u1","email":"a@test.test"}}`)
	acct, err := auth.SignIn(ctx, "a@test.test", "pwd")
	require.NoError(t, err)
	assert.Equal(t, enrollment.Account{ID: "u1", Email: "a@test.test"}, acct)

	req := fs.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/auth/v1/token", req.Path)
	assert.Equal(t, "password", req.Query.Get("grant_type"))
	var sent signinRequest
	require.NoError(t, json.Unmarshal([]byte(req.Body), &sent))
	assert.Equal(t, signinRequest{Email: "a@test.test", Password: "pwd"}, sent)

	fs.reply(http.StatusBadRequest, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	_, err = auth.SignIn(ctx, "a@test.test", "wrong")
	assert.ErrorIs(t, err, enrollment.ErrInvalidCredentials)

	fs.reply(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	_, err = auth.SignIn(ctx, "a@test.test", "wrong")
	assert.ErrorIs(t, err, enrollment.ErrInvalidCredentials)

	fs.reply(http.StatusServiceUnavailable, `upstream down`)
	_, err = auth.SignIn(ctx, "a@test.test", "pwd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, enrollment.ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "upstream down")
}
