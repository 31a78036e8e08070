package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/claritycall"
)

type clarityCallApi struct {
	svc      *claritycall.Service
	validate *validator.Validate
}

func registerClarityCallAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *claritycall.Service, validate *validator.Validate) {
	api := clarityCallApi{svc: svc, validate: validate}
	admin := requireAdmin()

	cg := g.Group("/clarity-calls", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.POST("/:id/schedule", api.schedule, admin)
	cg.POST("/:id/complete", api.complete, admin)
	cg.POST("/:id/cancel", api.cancel)
}

func (api *clarityCallApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var filter claritycall.Filter
	if err = bindFilter(ctx, &filter); err != nil {
		return err
	}
	if !isAdmin(id) {
		filter.StudentID = id.ID
	}
	return ctx.JSON(http.StatusOK, api.svc.Query(ctx.Request().Context(), filter))
}

func (api *clarityCallApi) create(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var data claritycall.RequestInput
	if err = bindBody(ctx, &data, "RequestInput"); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.Create(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "requesting clarity call")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *clarityCallApi) schedule(ctx echo.Context) error {
	var data claritycall.ScheduleInput
	if err := bindBody(ctx, &data, "ScheduleInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.Schedule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "scheduling clarity call")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *clarityCallApi) complete(ctx echo.Context) error {
	r, err := api.svc.Complete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing clarity call")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *clarityCallApi) cancel(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.Cancel(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling clarity call")
	}
	return ctx.JSON(http.StatusOK, r)
}
