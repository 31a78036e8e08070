package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errMissingToken  = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken  = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch {
			case core.IsNotFound(err):
				code = http.StatusNotFound
				message = origErr.Error()
			case core.IsConflict(err):
				code = http.StatusConflict
				message = origErr.Error()
			case core.IsForbidden(err):
				code = http.StatusForbidden
				message = origErr.Error()
			case core.IsUnavailable(err):
				code = http.StatusServiceUnavailable
				message = origErr.Error()
				id, _ := getContextIdentity(ctx)
				logger.Error(origErr.Error(), err, id, map[string]interface{}{
					"method": ctx.Request().Method,
					"path":   ctx.Path(),
				})
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				id, _ := getContextIdentity(ctx)
				logger.Error(msg, errors.Wrap(err, msg), id, map[string]interface{}{
					"method": ctx.Request().Method,
					"path":   ctx.Path(),
				})
				if ctx.Echo().Debug {
					message = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
