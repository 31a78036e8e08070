package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cohortly/lms/core/dashboard"
)

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service) {
	g.GET("/dashboard", func(ctx echo.Context) error {
		var filter dashboard.Filter
		if err := bindFilter(ctx, &filter); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, svc.Stats(ctx.Request().Context(), filter))
	}, jwt, requireAdmin())
}
