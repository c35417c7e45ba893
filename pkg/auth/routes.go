package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all auth routes and returns the middleware the
// rest of the API authenticates with.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config) *Middleware {
	authService := NewService(db, cfg.JWTSecret)
	authMiddleware := NewMiddleware(authService)

	h := &handler{
		authService: authService,
		google:      NewGoogleProvider(cfg),
		frontendURL: strings.TrimSuffix(cfg.FrontendURL, "/"),
	}

	auth := e.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/logout", h.logout)
	auth.GET("/me", h.me, authMiddleware.Authenticate)

	auth.GET("/google/redirect", h.googleRedirect)
	auth.GET("/google/callback", h.googleCallback)

	return authMiddleware
}
