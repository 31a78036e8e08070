package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core/enrollment"
)

// requireRole rejects callers whose identity holds none of roles.
// It must run after the jwt middleware.
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			role := claims.Identity().Role
			for _, r := range roles {
				if r == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func requireAdmin() echo.MiddlewareFunc {
	return requireRole(enrollment.RoleAdmin)
}
