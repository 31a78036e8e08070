package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/partnership"
)

type partnershipApi struct {
	svc      *partnership.Service
	validate *validator.Validate
}

func registerPartnershipAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *partnership.Service, validate *validator.Validate) {
	api := partnershipApi{svc: svc, validate: validate}
	admin := requireAdmin()

	pg := g.Group("/partnerships", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, admin)
	pg.POST("/auto-pair", api.autoPair, admin)
	pg.PUT("/:id", api.reassign, admin)
	pg.DELETE("/:id", api.destroy, admin)
	pg.GET("/:id/candidates", api.candidates, admin)
}

func (api *partnershipApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	var filter partnership.Filter
	if err = bindFilter(ctx, &filter); err != nil {
		return err
	}
	if !isAdmin(id) {
		filter.StudentID = id.ID
	}
	return ctx.JSON(http.StatusOK, api.svc.Query(ctx.Request().Context(), filter))
}

func (api *partnershipApi) autoPair(ctx echo.Context) error {
	var data partnership.AutoPairInput
	if err := bindBody(ctx, &data, "AutoPairInput"); err != nil {
		return err
	}
	res, err := api.svc.AutoPair(ctx.Request().Context(), data)
	if err != nil {
		if errors.Is(err, partnership.ErrPairingTimeout) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
		}
		return errors.Wrap(err, "auto-pairing")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *partnershipApi) create(ctx echo.Context) error {
	var data partnership.ManualInput
	if err := bindBody(ctx, &data, "ManualInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.CreateManual(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating partnership")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *partnershipApi) reassign(ctx echo.Context) error {
	var data partnership.ReassignInput
	if err := bindBody(ctx, &data, "ReassignInput"); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	p, err := api.svc.Reassign(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reassigning partnership")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *partnershipApi) candidates(ctx echo.Context) error {
	cands, err := api.svc.Candidates(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing candidates")
	}
	return ctx.JSON(http.StatusOK, cands)
}

func (api *partnershipApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting partnership")
	}
	return ctx.NoContent(http.StatusNoContent)
}
