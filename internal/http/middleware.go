package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// requestLogger tags the request context with the request ID and logs
// each request once it completes.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)

			ctx := logging.WithRequestID(req.Context(), reqID)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Render now so the logged status is the one sent.
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Int64("bytes_in", req.ContentLength),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil && c.Response().Status >= http.StatusInternalServerError {
				s.logger.Error(ctx, "http request", append(fields, zap.Error(err))...)
			} else {
				s.logger.Info(ctx, "http request", fields...)
			}
			return nil
		}
	}
}

// bodyLimit rejects declared oversized bodies before they are read. The
// handler also enforces the limit while reading.
func bodyLimit(limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					"upload exceeds "+strconv.FormatInt(limit, 10)+" bytes")
			}
			return next(c)
		}
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
