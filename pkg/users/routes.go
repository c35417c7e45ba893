package users

import (
	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the profile routes.
func RegisterRoutes(e *echo.Echo, db *bun.DB, store storage.Store, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db)

	h := &handler{
		userService: userService,
		store:       store,
	}

	profile := e.Group("/profile")
	profile.PATCH("", h.update, authMiddleware.Authenticate)
	profile.GET("/:username", h.show, authMiddleware.AuthenticateOptional)

	return userService
}
