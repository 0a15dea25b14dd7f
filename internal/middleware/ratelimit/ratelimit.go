package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu            sync.Mutex
	clients       map[string]*client
	limit         rate.Limit
	burst         int
	idle          time.Duration
	logger        *zap.Logger
	cleanupTicker *time.Ticker
	done          chan struct{}
	now           func() time.Time
}

type Config struct {
	RequestsPerMinute int
	// Burst defaults to RequestsPerMinute.
	Burst int
	// IdleTimeout drops buckets of clients not seen for this long.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		clients:       make(map[string]*client),
		limit:         rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:         cfg.Burst,
		idle:          cfg.IdleTimeout,
		logger:        cfg.Logger,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if apiKey := c.Get("X-API-Key"); apiKey != "" {
			key = "key:" + apiKey
		}

		if ok, retryAfter := rl.allow(key); !ok {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":     "Rate limit exceeded. Please try again later.",
				"retryable": true,
			})
		}

		return c.Next()
	}
}

// allow consumes a token for key, or reports how long until one is free.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.evictIdle()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
	close(rl.done)
}
