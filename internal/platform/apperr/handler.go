package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the JSON body written for every failed request.
type Response struct {
	StatusCode int              `json:"statusCode"`
	Error      string           `json:"error"`
	Message    string           `json:"message"`
	Violations []FieldViolation `json:"violations,omitempty"`
	RequestID  string           `json:"request_id,omitempty"`
}

// ToResponse converts any error into the wire representation. Errors that are
// neither *Error nor *echo.HTTPError are treated as internal.
func ToResponse(err error) Response {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := appErr.Status()
		return Response{
			StatusCode: status,
			Error:      http.StatusText(status),
			Message:    appErr.Message,
			Violations: appErr.Violations,
		}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if httpErr.Message != nil {
			msg = fmt.Sprintf("%v", httpErr.Message)
		}
		return Response{
			StatusCode: httpErr.Code,
			Error:      http.StatusText(httpErr.Code),
			Message:    msg,
		}
	}

	return Response{
		StatusCode: http.StatusInternalServerError,
		Error:      http.StatusText(http.StatusInternalServerError),
		Message:    "internal server error",
	}
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders errors as
// Response and logs server-side failures.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ToResponse(err)
		resp.RequestID, _ = c.Get("request_id").(string)

		if resp.StatusCode >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", resp.RequestID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(resp.StatusCode)
		} else {
			werr = c.JSON(resp.StatusCode, resp)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
