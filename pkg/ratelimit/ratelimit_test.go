package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(2, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "ip-1")
	assert.False(t, ok, "third request in the window should be blocked")

	ok, _ = limiter.Allow(ctx, "ip-2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(30 * time.Second)
	ok, _ = limiter.Allow(ctx, "ip-1")
	assert.True(t, ok, "a token refills after window/limit")
}

func TestMemoryLimiter_Prunes(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(1, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < pruneAt; i++ {
		_, _ = limiter.Allow(ctx, time.Duration(i).String())
	}
	now = now.Add(idleTTL + time.Second)
	_, _ = limiter.Allow(ctx, "fresh")
	assert.Len(t, limiter.entries, 1)
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	limiter, err := NewRedisLimiter(client, "test:ratelimit", 2, time.Minute)
	require.NoError(t, err)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	ok, err := limiter.Allow(ctx, "ip-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "ip-1")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "ip-1")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow(ctx, "ip-1")
	assert.True(t, ok, "next window starts fresh")
}

func TestRedisLimiter_FailsClosed(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	limiter, err := NewRedisLimiter(client, "", 5, time.Minute)
	require.NoError(t, err)
	srv.Close()

	ok, err := limiter.Allow(context.Background(), "ip-1")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisLimiter_RequiresPositiveQuota(t *testing.T) {
	_, err := NewRedisLimiter(nil, "", 0, time.Minute)
	require.Error(t, err)
}

func TestNew_Driver(t *testing.T) {
	cfg := config.NewForTest()
	l, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	srv := miniredis.RunT(t)
	cfg.RateLimitDriver = config.RateLimitDriverRedis
	cfg.RedisAddr = srv.Addr()
	l, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RedisLimiter{}, l)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	limiter := NewMemoryLimiter(1, time.Minute)
	h := Middleware(limiter, "code_lookup")(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	call := func(user *models.User) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		c := e.NewContext(req, httptest.NewRecorder())
		if user != nil {
			c.Set("user", user)
		}
		return h(c)
	}

	require.NoError(t, call(nil))
	err := call(nil)
	var e429 *errcodes.Error
	require.ErrorAs(t, err, &e429)
	assert.Equal(t, http.StatusTooManyRequests, e429.HTTPCode)

	// A signed-in user from the same IP has their own bucket.
	require.NoError(t, call(&models.User{ID: 7}))
	require.Error(t, call(&models.User{ID: 7}))
}
