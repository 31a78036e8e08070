package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/enrollment"
)

const mimeTextCSV = "text/csv; charset=utf-8"

type enrollmentApi struct {
	svc      *enrollment.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *enrollment.Service, validate *validator.Validate) {
	api := enrollmentApi{svc: svc, validate: validate}
	admin := requireAdmin()

	// un-authed endpoints
	g.POST("/signup", api.signUp)

	// authed endpoints
	ag := g.Group("", jwt)
	ag.GET("/me", api.me)
	ag.GET("/students", api.queryStudents, admin)
	ag.GET("/students/export", api.exportStudents, admin)
	ag.POST("/enrollments", api.enroll, admin)
	ag.DELETE("/enrollments/:id", api.unenroll, admin)

	wg := ag.Group("/whitelist", admin)
	wg.GET("", api.queryWhitelist)
	wg.POST("", api.addWhitelistEntry)
	wg.POST("/bulk", api.bulkAddWhitelist)
	wg.PUT("/:id", api.updateWhitelistStatus)
	wg.DELETE("/:id", api.deleteWhitelistEntry)
}

func (api *enrollmentApi) signUp(ctx echo.Context) error {
	var data enrollment.SignUp
	if err := bindBody(ctx, &data, "SignUp"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	profile, err := api.svc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, profile)
}

func (api *enrollmentApi) me(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	profile, err := api.svc.Me(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "fetching profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *enrollmentApi) queryStudents(ctx echo.Context) error {
	var filter enrollment.StudentFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.QueryStudents(ctx.Request().Context(), filter))
}

func (api *enrollmentApi) exportStudents(ctx echo.Context) error {
	var filter enrollment.StudentFilter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := api.svc.ExportStudentsCSV(ctx.Request().Context(), &buf, filter); err != nil {
		return errors.Wrap(err, "exporting students")
	}
	return attachCSV(ctx, "students.csv", buf.Bytes())
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := bindBody(ctx, &data, "NewEnrollment"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) unenroll(ctx echo.Context) error {
	if err := api.svc.Unenroll(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Whitelist

func (api *enrollmentApi) queryWhitelist(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.QueryWhitelist(ctx.Request().Context()))
}

func (api *enrollmentApi) addWhitelistEntry(ctx echo.Context) error {
	var data enrollment.WhitelistInput
	if err := bindBody(ctx, &data, "WhitelistInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	we, err := api.svc.AddWhitelistEntry(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding whitelist entry")
	}
	return ctx.JSON(http.StatusCreated, we)
}

func (api *enrollmentApi) bulkAddWhitelist(ctx echo.Context) error {
	var data enrollment.BulkWhitelist
	if err := bindBody(ctx, &data, "BulkWhitelist"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	res, err := api.svc.BulkAddWhitelist(ctx.Request().Context(), api.validate, data)
	if err != nil {
		return errors.Wrap(err, "adding whitelist entries")
	}
	code := http.StatusCreated
	if len(res.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	return ctx.JSON(code, res)
}

func (api *enrollmentApi) updateWhitelistStatus(ctx echo.Context) error {
	var data enrollment.WhitelistStatusUpdate
	if err := bindBody(ctx, &data, "WhitelistStatusUpdate"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	we, err := api.svc.UpdateWhitelistStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating whitelist entry")
	}
	return ctx.JSON(http.StatusOK, we)
}

func (api *enrollmentApi) deleteWhitelistEntry(ctx echo.Context) error {
	if err := api.svc.DeleteWhitelistEntry(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting whitelist entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func attachCSV(ctx echo.Context, filename string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return ctx.Blob(http.StatusOK, mimeTextCSV, data)
}
