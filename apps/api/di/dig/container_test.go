package dig_container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/cohortly/lms/apps/api/echo"
	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/storage"
)

func TestNew_ResolvesServer(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_STORE_DRIVER", core.StoreDriverInMem)

	c := New()
	err := c.Invoke(func(repos *storage.Repositories, server echoapi.Server) {
		assert.Equal(t, core.StoreDriverInMem, repos.Driver)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}
