package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/ingestion"
	"github.com/qanoonai/backend/internal/monitoring"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

type Ingester interface {
	Start(ctx context.Context, raws []ingestion.RawJudgment) (*models.IngestionJob, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error)
	ResolvePending(ctx context.Context) (int, error)
}

type StatsProvider interface {
	GetStats(ctx context.Context) (*monitoring.Stats, error)
}

type CacheClearer interface {
	ClearCache(ctx context.Context) (int, error)
}

// AdminHandler serves ingestion, cache and corpus statistics endpoints.
type AdminHandler struct {
	ingester Ingester
	stats    StatsProvider
	cache    CacheClearer
}

func NewAdminHandler(ingester Ingester, stats StatsProvider, cache CacheClearer) *AdminHandler {
	return &AdminHandler{ingester: ingester, stats: stats, cache: cache}
}

func (h *AdminHandler) StartIngestion(c *fiber.Ctx) error {
	var req struct {
		Judgments []ingestion.RawJudgment `json:"judgments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.Judgments) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "At least one judgment is required"})
	}

	job, err := h.ingester.Start(c.UserContext(), req.Judgments)
	if err != nil {
		return respondError(c, err)
	}

	logger.Info("Ingestion job accepted",
		zap.String("job_id", job.ID.String()),
		zap.Int("judgments", len(req.Judgments)),
	)
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func (h *AdminHandler) GetIngestionJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid job id"})
	}

	job, err := h.ingester.GetJob(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if job == nil {
		return notFound(c)
	}
	return c.JSON(job)
}

func (h *AdminHandler) ResolveCitations(c *fiber.Ctx) error {
	n, err := h.ingester.ResolvePending(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"resolved": n})
}

func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.stats.GetStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) ClearCache(c *fiber.Ctx) error {
	n, err := h.cache.ClearCache(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}
