package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/submission"
)

type submissionApi struct {
	svc      *submission.Service
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *submission.Service, validate *validator.Validate) {
	api := submissionApi{svc: svc, validate: validate}
	admin := requireAdmin()

	sg := g.Group("/submissions", jwt)
	sg.GET("", api.query)
	sg.POST("", api.submit)
	sg.GET("/export", api.export, admin)
	sg.PUT("/:id", api.resubmit)
	sg.POST("/:id/review", api.review, admin)
}

// query lists every submission for admins; students only ever see their own.
func (api *submissionApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var filter submission.Filter
	if err = bindFilter(ctx, &filter); err != nil {
		return err
	}
	if !isAdmin(id) {
		filter.StudentID = id.ID
	}
	return ctx.JSON(http.StatusOK, api.svc.Query(ctx.Request().Context(), filter))
}

func (api *submissionApi) submit(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data submission.SubmitInput
	if err = bindBody(ctx, &data, "SubmitInput"); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Submit(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) resubmit(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data submission.ResubmitInput
	if err = bindBody(ctx, &data, "ResubmitInput"); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Resubmit(ctx.Request().Context(), id.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "resubmitting assignment")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) review(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data submission.ReviewInput
	if err = bindBody(ctx, &data, "ReviewInput"); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Review(ctx.Request().Context(), id.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) export(ctx echo.Context) error {
	var filter submission.Filter
	if err := bindFilter(ctx, &filter); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := api.svc.ExportCSV(ctx.Request().Context(), &buf, filter); err != nil {
		return errors.Wrap(err, "exporting submissions")
	}
	return attachCSV(ctx, "submissions.csv", buf.Bytes())
}
