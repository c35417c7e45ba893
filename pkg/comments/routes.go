package comments

import (
	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) {
	h := &handler{
		commentService: NewService(db),
		db:             db,
	}

	g := e.Group("/comments", authMiddleware.Authenticate)
	g.POST("", h.create)
	g.DELETE("/:id", h.delete)
}
