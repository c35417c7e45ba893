package rooms

import (
	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/audiobooks"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/ratelimit"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the room routes. Every route requires a signed-in
// user.
func RegisterRoutes(e *echo.Echo, db *bun.DB, store storage.Store, limiter ratelimit.Limiter, audiobookService *audiobooks.Service, authMiddleware *auth.Middleware) {
	roomService := NewService(db, audiobookService)

	h := &handler{
		roomService:      roomService,
		audiobookService: audiobookService,
		store:            store,
		db:               db,
	}

	g := e.Group("/rooms", authMiddleware.Authenticate)

	g.POST("", h.create)
	g.GET("/mine", h.mine)
	g.POST("/join", h.join, ratelimit.Middleware(limiter, "room_join"))
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/leave", h.leave)
	g.PUT("/:id/members/:userId/role", h.updateMemberRole)

	// Room audiobooks
	g.GET("/:id/audiobooks", h.listAudiobooks)
	g.POST("/:id/audiobooks", h.uploadAudiobook)
	g.GET("/:id/audiobooks/:audiobookId", h.retrieveAudiobook)
	g.POST("/:id/audiobooks/:audiobookId", h.attachAudiobook)
	g.DELETE("/:id/audiobooks/:audiobookId", h.removeAudiobook)
}
