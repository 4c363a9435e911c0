package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports that the server is up (GET /health).
func Health(c echo.Context) error {
	return Success(c, http.StatusOK, "Server is running", nil)
}
