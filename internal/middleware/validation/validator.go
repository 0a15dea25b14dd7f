package validation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	// MaxQueryBytes bounds the raw query before the search service
	// applies its character limits.
	MaxQueryBytes   int
	MaxDocumentSize int
	MaxBatchSize    int
	SearchPath      string
	IngestPath      string
	Logger          *zap.Logger
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryBytes == 0 {
		cfg.MaxQueryBytes = 8000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 5 * 1024 * 1024
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 1000
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/api/v1/search"
	}
	if cfg.IngestPath == "" {
		cfg.IngestPath = "/api/v1/ingestion/jobs"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		if len(c.Body()) > 0 && !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		switch c.Path() {
		case cfg.SearchPath:
			return validateSearch(c, cfg)
		case cfg.IngestPath:
			return validateIngest(c, cfg)
		}
		return c.Next()
	}
}

// validateSearch rejects malformed search bodies and rewrites the query
// with NUL bytes removed.
func validateSearch(c *fiber.Ctx, cfg Config) error {
	var req map[string]any
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	query, ok := req["query"].(string)
	if !ok {
		return badRequest(c, "Query is required and must be a string")
	}
	if len(query) > cfg.MaxQueryBytes {
		return badRequest(c, "Query exceeds maximum length")
	}
	if containsXSS(query) {
		cfg.Logger.Warn("Potential XSS attempt",
			zap.String("ip", c.IP()),
			zap.String("query", query),
		)
		return badRequest(c, "Invalid query content")
	}

	if sanitized := sanitizeString(query); sanitized != query {
		req["query"] = sanitized
		body, err := json.Marshal(req)
		if err != nil {
			return badRequest(c, "Invalid JSON format")
		}
		c.Request().SetBody(body)
	}
	return c.Next()
}

func validateIngest(c *fiber.Ctx, cfg Config) error {
	var req struct {
		Judgments []struct {
			Text string `json:"text"`
		} `json:"judgments"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}
	if len(req.Judgments) == 0 {
		return badRequest(c, "At least one judgment is required")
	}
	if len(req.Judgments) > cfg.MaxBatchSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "Too many judgments in one batch",
		})
	}
	for _, j := range req.Judgments {
		if len(j.Text) > cfg.MaxDocumentSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Judgment text exceeds maximum size",
			})
		}
	}
	return c.Next()
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
