package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/taletunes/taletunes/pkg/audiobooks"
	"github.com/taletunes/taletunes/pkg/auth"
	"github.com/taletunes/taletunes/pkg/binder"
	"github.com/taletunes/taletunes/pkg/comments"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/ratelimit"
	"github.com/taletunes/taletunes/pkg/rooms"
	"github.com/taletunes/taletunes/pkg/storage"
	"github.com/taletunes/taletunes/pkg/testutils"
	"github.com/taletunes/taletunes/pkg/users"
	"github.com/uptrace/bun"
)

// bodyLimit fits ten 50MB covers plus a 50MB audio file and the form
// overhead.
const bodyLimit = "560M"

func New(cfg *config.Config, db *bun.DB, store storage.Store, limiter ratelimit.Limiter) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(bodyLimit))

	health.RegisterRoutes(e)

	// Uploaded files on local disk are served as-is; bucket stores hand out
	// their own URLs.
	if local, ok := store.(*storage.LocalStore); ok {
		e.Static(cfg.StoragePublicPath, local.Root())
	}

	authMiddleware := auth.RegisterRoutes(e, db, cfg)
	users.RegisterRoutes(e, db, store, authMiddleware)
	audiobookService := audiobooks.RegisterRoutes(e, db, store, limiter, authMiddleware)
	rooms.RegisterRoutes(e, db, store, limiter, audiobookService, authMiddleware)
	comments.RegisterRoutes(e, db, authMiddleware)

	if cfg.Environment == config.EnvironmentTest {
		testutils.RegisterRoutes(e, db)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
