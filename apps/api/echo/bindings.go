package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type cleaner interface {
	Clean()
}

var queryBinder = new(echo.DefaultBinder)

// bindFilter binds the query string onto a listing filter, then cleans it.
func bindFilter(ctx echo.Context, filter cleaner) error {
	if err := queryBinder.BindQueryParams(ctx, filter); err != nil {
		return errors.Wrap(err, "binding query params")
	}
	filter.Clean()
	return nil
}

// bindBody only binds the request body; path and query params never leak into inputs.
func bindBody(ctx echo.Context, data interface{}, what string) error {
	if err := queryBinder.BindBody(ctx, data); err != nil {
		return errors.Wrap(err, "binding to "+what)
	}
	return nil
}
