package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	echo := func(c *fiber.Ctx) error { return c.Send(c.Body()) }
	app.Post("/api/v1/search", echo)
	app.Post("/api/v1/ingestion/jobs", echo)
	app.Post("/api/v1/ingestion/resolve", echo)
	return app
}

func post(t *testing.T, app *fiber.App, path, body, contentType string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func TestSearchValidation(t *testing.T) {
	app := newApp(Config{MaxQueryBytes: 30})

	tests := []struct {
		name   string
		body   string
		ctype  string
		status int
	}{
		{"valid", `{"query":"bail murder"}`, "application/json", fiber.StatusOK},
		{"legal vocabulary is allowed", `{"query":"select committee union"}`, "application/json", fiber.StatusOK},
		{"charset suffix", `{"query":"bail"}`, "application/json; charset=utf-8", fiber.StatusOK},
		{"wrong content type", `query=bail`, "application/x-www-form-urlencoded", fiber.StatusUnsupportedMediaType},
		{"malformed json", `{"query":`, "application/json", fiber.StatusBadRequest},
		{"missing query", `{"limit":5}`, "application/json", fiber.StatusBadRequest},
		{"non-string query", `{"query":5}`, "application/json", fiber.StatusBadRequest},
		{"too long", `{"query":"` + strings.Repeat("a", 31) + `"}`, "application/json", fiber.StatusBadRequest},
		{"markup", `{"query":"<script>x"}`, "application/json", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := post(t, app, "/api/v1/search", tt.body, tt.ctype)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestSearchQueryIsSanitized(t *testing.T) {
	app := newApp(Config{})
	status, body := post(t, app, "/api/v1/search", `{"query":"  bail\u0000 ","limit":5}`, "application/json")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"query":"bail","limit":5}`, body)
}

func TestIngestValidation(t *testing.T) {
	app := newApp(Config{MaxBatchSize: 2, MaxDocumentSize: 10})

	status, _ := post(t, app, "/api/v1/ingestion/jobs", `{"judgments":[{"text":"short"}]}`, "application/json")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = post(t, app, "/api/v1/ingestion/jobs", `{"judgments":[]}`, "application/json")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = post(t, app, "/api/v1/ingestion/jobs", `{"judgments":[{},{},{}]}`, "application/json")
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)

	status, _ = post(t, app, "/api/v1/ingestion/jobs", `{"judgments":[{"text":"far too long text"}]}`, "application/json")
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)
}

func TestEmptyBodyPassesThrough(t *testing.T) {
	app := newApp(Config{})
	status, _ := post(t, app, "/api/v1/ingestion/resolve", "", "")
	assert.Equal(t, fiber.StatusOK, status)
}
