package ledgerapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHTTPForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHTTPNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func (s *server) httpErrorHandler(err error, c echo.Context) {
	var code int
	var message interface{}

	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			code = http.StatusUnauthorized
			message = cause.Message
			break
		}
		if cause.Internal != nil {
			if herr, ok := cause.Internal.(*echo.HTTPError); ok {
				cause = herr
			}
		}
		code = cause.Code
		message = cause.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string)
		for _, vErr := range cause {
			fldErrs[vErr.Field()] = vErr.Translate(s.deps.Translator)
		}
		code = http.StatusBadRequest
		message = fldErrs
	case *core.ValidationError:
		if cause.Fields != nil {
			fldErrs := make(map[string]string)
			for _, fErr := range cause.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			message = fldErrs
		} else {
			message = cause.Error()
		}
		code = http.StatusBadRequest
	case *core.ConflictError:
		code = http.StatusConflict
		message = cause.Error()
	default:
		switch errors.Cause(err) {
		case change.ErrRequestNotFound, record.ErrNotFound:
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		case change.ErrAlreadyReviewed:
			code = http.StatusConflict
			message = errors.Cause(err).Error()
		case change.ErrNoChanges, change.ErrReviewOwnRequest:
			code = http.StatusBadRequest
			message = errors.Cause(err).Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
		}
	}

	if c.Echo().Debug {
		message = err.Error()
	} else if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	} else if m, ok := message.(map[string]string); ok {
		message = echo.Map{"error": "invalid request", "fields": m}
	}

	// Send response
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}
