package http

import (
	"errors"
	"net/http"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var te *orchestrator.TransitionError
	switch {
	case errors.Is(err, ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionActive),
		errors.Is(err, orchestrator.ErrStaleRecording),
		errors.Is(err, orchestrator.ErrDeliveryInProgress),
		errors.Is(err, orchestrator.ErrAlreadyStarted),
		errors.Is(err, orchestrator.ErrNotStarted),
		errors.As(err, &te):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusGone
	case errors.Is(err, orchestrator.ErrNoDelivery):
		return http.StatusNotImplemented
	case errors.Is(err, orchestrator.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrInvalidAngle),
		errors.Is(err, capture.ErrEmptyPayload),
		errors.Is(err, capture.ErrUnsupportedMedia):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders errors as ErrorResponse JSON.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: msg})
}
