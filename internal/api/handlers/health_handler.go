package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 2 * time.Second}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// Ready reports 503 when any dependency fails its ping.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	checks := fiber.Map{}
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": checks,
	})
}
