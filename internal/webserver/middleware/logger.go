package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
)

// Logger logs every request once its response is rendered.
func Logger(log logger.Logger) echo.MiddlewareFunc {
	log = log.WithPrefix("[http]")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			method, _ := c.Get("handler_method").(string)
			req := c.Request()
			log.Infof("%s %s %d %s %s",
				req.Method,
				req.RequestURI,
				c.Response().Status,
				time.Since(start).Round(time.Microsecond),
				method,
			)
			return nil
		}
	}
}
