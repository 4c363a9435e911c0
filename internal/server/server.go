// Package server wires the HTTP and websocket surface onto echo.
package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/parley/internal/app"
	"github.com/nfrund/parley/internal/handlers"
	"github.com/nfrund/parley/internal/middleware"
)

// Server holds the echo instance and the services its routes call into.
type Server struct {
	E    *echo.Echo
	deps *app.Dependencies
}

// New creates a Server with the middleware chain and error handling set up.
// Routes are added by RegisterRoutes.
func New(deps *app.Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	// Logger reads the request id, so it must run after RequestID.
	e.Use(middleware.Logger)
	e.Use(echomw.CORS())

	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.Validator = handlers.NewValidator(deps.Validate)

	return &Server{E: e, deps: deps}
}
