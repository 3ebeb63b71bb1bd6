package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/uploadstore/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			// Mostly client disconnections while streaming.
			log.Infof("HTTPErrorHandler: response already committed: %s", err)
			return
		}

		code := http.StatusInternalServerError
		var payload error

		switch err := err.(type) {
		case *echo.HTTPError:
			code = err.Code
			payload = weberror.New(err.Code, http.StatusText(err.Code))
		case *weberror.Error:
			code = err.Code
			payload = err
		default:
			payload = weberror.New(code, err.Error())
		}

		if code >= http.StatusInternalServerError {
			log.Error(err)
		} else {
			log.Debug(err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, payload)
		}
		if err != nil {
			log.Errorf("HTTPErrorHandler: %s", err)
		}
	}
}
