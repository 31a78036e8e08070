package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
)

const (
	signupPath = "/auth/v1/signup"
	tokenPath  = "/auth/v1/token?grant_type=password"
)

type (
	signupRequest struct {
		Email    string                 `json:"email"`
		Password string                 `json:"password"`
		Data     map[string]interface{} `json:"data,omitempty"`
	}

	signinRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// accountResponse is either the user itself, or a session wrapping it.
	accountResponse struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		User  *struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}

	authError struct {
		Code      int    `json:"code"`
		ErrorCode string `json:"error_code"`
		Error     string `json:"error"`
		Msg       string `json:"msg"`
		Message   string `json:"message"`
		ErrorDesc string `json:"error_description"`
	}

	authProvider struct {
		client *Client
	}
)

func (e authError) message() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	}
	return e.ErrorDesc
}

var _ enrollment.AuthProvider = (*authProvider)(nil) // interface compliance check

// NewAuthProvider signs students up on the GoTrue-style auth provider of the store.
func NewAuthProvider(client *Client) enrollment.AuthProvider {
	return &authProvider{client: client}
}

func (ap *authProvider) signupURL(creds core.StoreCredentials) string {
	if u := strings.TrimSpace(ap.client.conf.Auth.SignupURL); u != "" {
		return u
	}
	return creds.URL + signupPath
}

func (ap *authProvider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (enrollment.Account, error) {
	creds, err := ap.client.conf.StoreCredentials()
	if err != nil {
		return enrollment.Account{}, err
	}
	status, body, err := ap.post(ctx, creds, ap.signupURL(creds), signupRequest{Email: email, Password: password, Data: metadata})
	if err != nil {
		return enrollment.Account{}, errors.Wrap(err, "signing up")
	}
	if status >= 300 {
		ae := parseAuthError(body)
		if ae.ErrorCode == "user_already_exists" || strings.Contains(strings.ToLower(ae.message()), "already registered") {
			return enrollment.Account{}, enrollment.ErrAccountExists
		}
		return enrollment.Account{}, ae.asError(status)
	}
	return decodeAccount(body, email)
}

// SignIn uses the password grant; the session it returns is discarded.
func (ap *authProvider) SignIn(ctx context.Context, email, password string) (enrollment.Account, error) {
	creds, err := ap.client.conf.StoreCredentials()
	if err != nil {
		return enrollment.Account{}, err
	}
	status, body, err := ap.post(ctx, creds, creds.URL+tokenPath, signinRequest{Email: email, Password: password})
	if err != nil {
		return enrollment.Account{}, errors.Wrap(err, "signing in")
	}
	if status >= 300 {
		ae := parseAuthError(body)
		if ae.ErrorCode == "invalid_credentials" || ae.Error == "invalid_grant" {
			return enrollment.Account{}, enrollment.ErrInvalidCredentials
		}
		return enrollment.Account{}, ae.asError(status)
	}
	return decodeAccount(body, email)
}

func (ap *authProvider) post(ctx context.Context, creds core.StoreCredentials, url string, payload interface{}) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, nil, errors.Wrap(err, "building request")
	}
	setAuthHeaders(req, creds)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ap.client.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "calling auth provider")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, nil, errors.Wrap(err, "reading response")
	}
	return resp.StatusCode, body, nil
}

func parseAuthError(body []byte) authError {
	var ae authError
	if err := json.Unmarshal(body, &ae); err != nil || ae.message() == "" {
		ae.Msg = strings.TrimSpace(string(body))
	}
	return ae
}

func (e authError) asError(status int) error {
	return errors.Errorf("auth provider: %d: %s", status, e.message())
}

func decodeAccount(body []byte, email string) (enrollment.Account, error) {
	var ar accountResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return enrollment.Account{}, errors.Wrap(err, "decoding auth response")
	}
	acct := enrollment.Account{ID: ar.ID, Email: ar.Email}
	if ar.User != nil {
		acct = enrollment.Account{ID: ar.User.ID, Email: ar.User.Email}
	}
	if acct.ID == "" {
		return enrollment.Account{}, errors.New("auth provider: response carries no user id")
	}
	if acct.Email == "" {
		acct.Email = email
	}
	return acct, nil
}
