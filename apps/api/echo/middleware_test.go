package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/cohortly/lms/core/enrollment"
)

func TestRequireRole(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	tests := []struct {
		name    string
		claims  *Claims
		roles   []string
		wantErr error
	}{
		{"no claims", nil, []string{enrollment.RoleAdmin}, errUnauthorized},
		{"student on admin route", &Claims{}, []string{enrollment.RoleAdmin}, errHttpForbidden},
		{"admin", &Claims{AppMetadata: AppMetadata{Role: enrollment.RoleAdmin}}, []string{enrollment.RoleAdmin}, nil},
		{"any of roles", &Claims{}, enrollment.AllRoles, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if tc.claims != nil {
				ctx.Set(contextClaimsKey, tc.claims)
			}

			err := requireRole(tc.roles...)(ok)(ctx)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}
