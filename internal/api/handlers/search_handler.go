package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

// Searcher is the read API served by search.Service.
type Searcher interface {
	Search(ctx context.Context, opts models.SearchOptions) (*models.SearchResponse, error)
	Browse(ctx context.Context, opts models.BrowseOptions) (*models.BrowseResponse, error)
	GetJudgment(ctx context.Context, id uuid.UUID) (*models.JudgmentDetail, error)
	GetCitationGraph(ctx context.Context, id uuid.UUID) (*models.CitationGraph, error)
	GetCitationChain(ctx context.Context, id uuid.UUID, direction models.ChainDirection, depth int) (*models.CitationChain, error)
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var req models.SearchOptions
	if err := c.BodyParser(&req); err != nil {
		logger.Debug("Failed to parse search request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp, err := h.searcher.Search(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

// Browse lists judgments matching query-string filters:
// court_tier, jurisdiction and legal_area (comma separated), court,
// year_from, year_to, limit and offset.
func (h *SearchHandler) Browse(c *fiber.Ctx) error {
	opts, err := browseOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := h.searcher.Browse(c.UserContext(), opts)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(resp)
}

func (h *SearchHandler) GetJudgment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid judgment id"})
	}

	detail, err := h.searcher.GetJudgment(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if detail == nil {
		return notFound(c)
	}
	return c.JSON(detail)
}

func (h *SearchHandler) GetCitations(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid judgment id"})
	}

	graph, err := h.searcher.GetCitationGraph(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if graph == nil {
		return notFound(c)
	}
	return c.JSON(graph)
}

func (h *SearchHandler) GetCitationChain(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid judgment id"})
	}

	direction := models.ChainDirection(strings.ToLower(c.Query("direction")))
	depth := c.QueryInt("depth", 2)

	chain, err := h.searcher.GetCitationChain(c.UserContext(), id, direction, depth)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chain)
}

func browseOptions(c *fiber.Ctx) (models.BrowseOptions, error) {
	var opts models.BrowseOptions
	var err error
	if opts.Limit, err = intQuery(c, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = intQuery(c, "offset"); err != nil {
		return opts, err
	}

	f := &models.SearchFilters{Court: c.Query("court")}
	for _, t := range splitList(c.Query("court_tier")) {
		f.CourtTiers = append(f.CourtTiers, models.CourtTier(t))
	}
	for _, j := range splitList(c.Query("jurisdiction")) {
		f.Jurisdictions = append(f.Jurisdictions, models.Jurisdiction(j))
	}
	f.LegalAreas = splitList(c.Query("legal_area"))

	from, err := intQuery(c, "year_from")
	if err != nil {
		return opts, err
	}
	to, err := intQuery(c, "year_to")
	if err != nil {
		return opts, err
	}
	if from != 0 || to != 0 {
		f.Years = &models.YearRange{From: from, To: to}
	}

	opts.Filters = f
	return opts, nil
}

func intQuery(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be an integer")
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
