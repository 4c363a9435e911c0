package handlers

import (
	"github.com/labstack/echo/v4"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// Success writes a successful envelope.
func Success(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Fail writes a failed envelope. errs may be nil.
func Fail(c echo.Context, status int, message string, errs interface{}) error {
	return c.JSON(status, Response{
		Success: false,
		Message: message,
		Errors:  errs,
	})
}
