package server

import (
	"github.com/labstack/echo/v4"

	"github.com/nfrund/parley/internal/handlers"
	"github.com/nfrund/parley/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	authHandler := handlers.NewAuthHandler(s.deps.Accounts)
	historyHandler := handlers.NewHistoryHandler(s.deps.History)
	rateLimiter := middleware.RateLimiter(s.deps.Config.RateLimitPerMinute)
	requireAuth := middleware.Auth(s.deps.Authenticator)

	s.E.GET("/health", handlers.Health)

	// /api/auth is kept for clients built against the older path.
	for _, prefix := range []string{"/auth", "/api/auth"} {
		registerAuthRoutes(s.E.Group(prefix), authHandler, rateLimiter, requireAuth)
	}

	s.E.GET("/rooms/:roomId/messages", historyHandler.List, requireAuth)

	// The session handler authenticates the handshake itself.
	s.E.GET("/ws", s.deps.Sessions.Serve)
}

func registerAuthRoutes(g *echo.Group, h *handlers.AuthHandler, rateLimiter, requireAuth echo.MiddlewareFunc) {
	g.POST("/signup", h.Signup, rateLimiter)
	g.POST("/signin", h.Signin, rateLimiter)
	g.GET("/profile", h.Profile, requireAuth)
}
