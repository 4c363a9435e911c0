package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/middleware"
)

// HTTPErrorHandler renders every error that reaches echo as a Response
// envelope. Unknown errors are logged and reported as 500 without detail.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"

	logger := middleware.FromContext(c.Request().Context())

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		logger.Error("Internal Server Error (Unhandled)",
			"method", c.Request().Method, "path", c.Path(), "error", err, "stack_trace", string(debug.Stack()))
	} else {
		status = he.Code
		switch {
		case status == http.StatusNotFound && errors.Is(err, echo.ErrNotFound):
			message = "Route not found"
		case status == http.StatusMethodNotAllowed:
			message = "Method not allowed"
		case status >= http.StatusInternalServerError:
			// keep the generic message
		default:
			message = fmt.Sprint(he.Message)
		}
	}

	if he != nil && status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = Fail(c, status, message, nil)
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", "error", writeErr)
	}
}
