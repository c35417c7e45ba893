// Package ratelimit throttles code lookups so that room and audiobook codes
// can't be enumerated.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
)

// Limiter reports whether one more request for key fits in its quota.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// New builds the limiter selected by rate_limit_driver, allowing
// code_lookup_rate_per_minute requests per key.
func New(cfg *config.Config) (Limiter, error) {
	if cfg.RateLimitDriver == config.RateLimitDriverRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return NewRedisLimiter(client, "taletunes:ratelimit", cfg.CodeLookupRatePerMinute, time.Minute)
	}
	return NewMemoryLimiter(cfg.CodeLookupRatePerMinute, time.Minute), nil
}

// Middleware rejects requests over quota with a 429. Signed-in users are
// keyed by ID and everyone else by client IP, within scope.
func Middleware(limiter Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := scope + ":ip:" + c.RealIP()
			if user, ok := c.Get("user").(*models.User); ok && user != nil {
				key = scope + ":user:" + strconv.Itoa(user.ID)
			}

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.FromEchoContext(c).Err(err).Warn("rate limiter unavailable, rejecting request")
			}
			if !allowed {
				return errcodes.TooManyRequests()
			}
			return next(c)
		}
	}
}
