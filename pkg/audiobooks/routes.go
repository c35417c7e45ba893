package audiobooks

import (
	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/ratelimit"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the dashboard, upload, and audiobook routes and
// returns the service so rooms can share the upload and delete flows.
func RegisterRoutes(e *echo.Echo, db *bun.DB, store storage.Store, limiter ratelimit.Limiter, authMiddleware *auth.Middleware) *Service {
	audiobookService := NewService(db, store)

	h := &handler{
		audiobookService: audiobookService,
		store:            store,
		db:               db,
	}

	e.GET("/dashboard", h.dashboard, authMiddleware.Authenticate)
	e.GET("/upload", h.uploadForm, authMiddleware.Authenticate)
	e.POST("/upload", h.upload, authMiddleware.Authenticate)

	g := e.Group("/audiobooks")
	g.GET("/all", h.all)
	g.GET("/search-by-code", h.searchByCode, authMiddleware.Authenticate, ratelimit.Middleware(limiter, "audiobook_code"))
	g.GET("/:id", h.retrieve, authMiddleware.AuthenticateOptional)
	g.PATCH("/:id", h.update, authMiddleware.Authenticate)
	g.DELETE("/:id", h.delete, authMiddleware.Authenticate)
	g.POST("/:id/toggle-favorite", h.toggleFavorite, authMiddleware.Authenticate)
	g.GET("/:id/download", h.download, authMiddleware.AuthenticateOptional)
	g.GET("/:id/covers/:index", h.cover, authMiddleware.AuthenticateOptional)

	return audiobookService
}
