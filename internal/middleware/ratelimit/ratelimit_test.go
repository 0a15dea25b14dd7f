package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestMiddlewareLimitsPerKey(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 60, Burst: 2})
	defer rl.Stop()
	app := newApp(rl)

	do := func(key string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-API-Key", key)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("a"))
	assert.Equal(t, fiber.StatusOK, do("b"))
}

func TestRejectedRequestSetsRetryAfter(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 1, Burst: 1})
	defer rl.Stop()
	app := newApp(rl)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestAllowRefillsOverTime(t *testing.T) {
	rl := New(Config{RequestsPerMinute: 60, Burst: 1})
	defer rl.Stop()
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("k")
	assert.True(t, ok)
	ok, wait := rl.allow("k")
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	now = now.Add(time.Second)
	ok, _ = rl.allow("k")
	assert.True(t, ok)
}

func TestEvictIdle(t *testing.T) {
	rl := New(Config{IdleTimeout: time.Minute})
	defer rl.Stop()
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.allow("old")
	now = now.Add(2 * time.Minute)
	rl.allow("new")
	rl.evictIdle()

	assert.NotContains(t, rl.clients, "old")
	assert.Contains(t, rl.clients, "new")
}
