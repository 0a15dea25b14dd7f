package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoonai/backend/internal/ingestion"
	"github.com/qanoonai/backend/internal/monitoring"
	"github.com/qanoonai/backend/internal/search"
	"github.com/qanoonai/backend/internal/storage/models"
)

type fakeSearcher struct {
	err        error
	lastSearch models.SearchOptions
	lastBrowse models.BrowseOptions
	judgment   *models.JudgmentDetail
	graph      *models.CitationGraph
	chainDepth int
	chainDir   models.ChainDirection
}

func (f *fakeSearcher) Search(_ context.Context, opts models.SearchOptions) (*models.SearchResponse, error) {
	f.lastSearch = opts
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResponse{
		Results:     []models.SearchResult{{Judgment: models.JudgmentSummary{Citation: "PLD 2019 SC 123"}, Score: 81.2}},
		ResultCount: 1,
	}, nil
}

func (f *fakeSearcher) Browse(_ context.Context, opts models.BrowseOptions) (*models.BrowseResponse, error) {
	f.lastBrowse = opts
	if f.err != nil {
		return nil, f.err
	}
	return &models.BrowseResponse{Results: []models.JudgmentSummary{}, Limit: 10}, nil
}

func (f *fakeSearcher) GetJudgment(context.Context, uuid.UUID) (*models.JudgmentDetail, error) {
	return f.judgment, f.err
}

func (f *fakeSearcher) GetCitationGraph(context.Context, uuid.UUID) (*models.CitationGraph, error) {
	return f.graph, f.err
}

func (f *fakeSearcher) GetCitationChain(_ context.Context, id uuid.UUID, direction models.ChainDirection, depth int) (*models.CitationChain, error) {
	f.chainDir, f.chainDepth = direction, depth
	if f.err != nil {
		return nil, f.err
	}
	return &models.CitationChain{Root: id, Direction: direction, Depth: depth, Edges: []models.ChainEdge{}}, nil
}

func (f *fakeSearcher) ClearCache(context.Context) (int, error) {
	return 4, f.err
}

type fakeIngester struct {
	err      error
	job      *models.IngestionJob
	received []ingestion.RawJudgment
}

func (f *fakeIngester) Start(_ context.Context, raws []ingestion.RawJudgment) (*models.IngestionJob, error) {
	f.received = raws
	if f.err != nil {
		return nil, f.err
	}
	return &models.IngestionJob{ID: uuid.New(), Status: models.JobStatusPending}, nil
}

func (f *fakeIngester) GetJob(context.Context, uuid.UUID) (*models.IngestionJob, error) {
	return f.job, f.err
}

func (f *fakeIngester) ResolvePending(context.Context) (int, error) {
	return 2, f.err
}

type fakeStats struct{}

func (fakeStats) GetStats(context.Context) (*monitoring.Stats, error) {
	s := &monitoring.Stats{}
	s.TotalJudgments = 10
	s.EmbeddedJudgments = 8
	s.IndexHealth = models.IndexHealth{Status: models.IndexHealthy}
	return s, nil
}

func newApp(s *fakeSearcher, ing *fakeIngester) *fiber.App {
	app := fiber.New()
	sh := NewSearchHandler(s)
	ah := NewAdminHandler(ing, fakeStats{}, s)

	api := app.Group("/api/v1")
	api.Post("/search", sh.Search)
	api.Get("/judgments", sh.Browse)
	api.Get("/judgments/:id", sh.GetJudgment)
	api.Get("/judgments/:id/citations", sh.GetCitations)
	api.Get("/judgments/:id/citations/chain", sh.GetCitationChain)
	api.Get("/stats", ah.GetStats)
	api.Delete("/cache", ah.ClearCache)
	api.Post("/ingestion/jobs", ah.StartIngestion)
	api.Get("/ingestion/jobs/:id", ah.GetIngestionJob)
	api.Post("/ingestion/resolve", ah.ResolveCitations)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func TestSearch(t *testing.T) {
	s := &fakeSearcher{}
	app := newApp(s, &fakeIngester{})

	status, body := call(t, app, "POST", "/api/v1/search",
		`{"query":"child custody rights","limit":5,"filters":{"court_tiers":["supreme"],"years":{"from":2000}},"weights":{"vector":1,"keyword":0,"recency":0}}`)
	require.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, "child custody rights", s.lastSearch.Query)
	assert.Equal(t, 5, s.lastSearch.Limit)
	assert.Equal(t, []models.CourtTier{models.CourtTierSupreme}, s.lastSearch.Filters.CourtTiers)
	assert.Equal(t, 2000, s.lastSearch.Filters.Years.From)
	assert.Equal(t, 1.0, s.lastSearch.Weights.Vector)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, 1, resp.ResultCount)
	assert.Equal(t, "PLD 2019 SC 123", resp.Results[0].Judgment.Citation)
}

func TestSearchErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"invalid query", fmt.Errorf("%w: query must be at least 3 characters", search.ErrInvalidQuery), fiber.StatusBadRequest, false},
		{"upstream", fmt.Errorf("failed to embed query: %w: %w", search.ErrUpstreamUnavailable, errors.New("timeout")), fiber.StatusServiceUnavailable, true},
		{"unexpected", errors.New("boom"), fiber.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(&fakeSearcher{err: tt.err}, &fakeIngester{})
			status, body := call(t, app, "POST", "/api/v1/search", `{"query":"xy"}`)
			assert.Equal(t, tt.status, status)

			var payload map[string]any
			require.NoError(t, json.Unmarshal([]byte(body), &payload))
			assert.NotEmpty(t, payload["error"])
			if tt.retryable {
				assert.Equal(t, true, payload["retryable"])
			} else {
				assert.NotContains(t, payload, "retryable")
			}
		})
	}
}

func TestSearchRejectsMalformedBody(t *testing.T) {
	app := newApp(&fakeSearcher{}, &fakeIngester{})
	status, _ := call(t, app, "POST", "/api/v1/search", `{"query":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestBrowseParsesQueryString(t *testing.T) {
	s := &fakeSearcher{}
	app := newApp(s, &fakeIngester{})

	status, _ := call(t, app, "GET", "/api/v1/judgments?court_tier=supreme,high&jurisdiction=pk&legal_area=family,%20tax&year_from=1990&year_to=2000&limit=20&offset=40&court=Lahore", "")
	require.Equal(t, fiber.StatusOK, status)

	opts := s.lastBrowse
	assert.Equal(t, 20, opts.Limit)
	assert.Equal(t, 40, opts.Offset)
	assert.Equal(t, []models.CourtTier{"supreme", "high"}, opts.Filters.CourtTiers)
	assert.Equal(t, []models.Jurisdiction{"pk"}, opts.Filters.Jurisdictions)
	assert.Equal(t, []string{"family", "tax"}, opts.Filters.LegalAreas)
	assert.Equal(t, &models.YearRange{From: 1990, To: 2000}, opts.Filters.Years)
	assert.Equal(t, "Lahore", opts.Filters.Court)

	status, _ = call(t, app, "GET", "/api/v1/judgments?limit=ten", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetJudgment(t *testing.T) {
	id := uuid.New()
	s := &fakeSearcher{judgment: &models.JudgmentDetail{Judgment: models.Judgment{ID: id}}}
	app := newApp(s, &fakeIngester{})

	status, body := call(t, app, "GET", "/api/v1/judgments/"+id.String(), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, id.String())

	s.judgment = nil
	status, body = call(t, app, "GET", "/api/v1/judgments/"+id.String(), "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "null", body)

	status, _ = call(t, app, "GET", "/api/v1/judgments/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetCitations(t *testing.T) {
	s := &fakeSearcher{graph: &models.CitationGraph{Outbound: []models.CitationEdge{}, Inbound: []models.InboundCitation{}}}
	app := newApp(s, &fakeIngester{})

	status, _ := call(t, app, "GET", "/api/v1/judgments/"+uuid.NewString()+"/citations", "")
	assert.Equal(t, fiber.StatusOK, status)

	s.graph = nil
	status, body := call(t, app, "GET", "/api/v1/judgments/"+uuid.NewString()+"/citations", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "null", body)
}

func TestGetCitationChain(t *testing.T) {
	s := &fakeSearcher{}
	app := newApp(s, &fakeIngester{})

	status, _ := call(t, app, "GET", "/api/v1/judgments/"+uuid.NewString()+"/citations/chain?direction=Inbound&depth=3", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.ChainInbound, s.chainDir)
	assert.Equal(t, 3, s.chainDepth)

	status, _ = call(t, app, "GET", "/api/v1/judgments/"+uuid.NewString()+"/citations/chain", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 2, s.chainDepth)

	s.err = search.ErrGraphDisabled
	status, _ = call(t, app, "GET", "/api/v1/judgments/"+uuid.NewString()+"/citations/chain", "")
	assert.Equal(t, fiber.StatusNotImplemented, status)
}

func TestStartIngestion(t *testing.T) {
	ing := &fakeIngester{}
	app := newApp(&fakeSearcher{}, ing)

	status, body := call(t, app, "POST", "/api/v1/ingestion/jobs",
		`{"judgments":[{"citation":"PLD 2019 SC 123","text":"Bail is the rule.","format":"text","year":2019}]}`)
	require.Equal(t, fiber.StatusAccepted, status)
	require.Len(t, ing.received, 1)
	assert.Equal(t, "PLD 2019 SC 123", ing.received[0].Citation)
	assert.Equal(t, 2019, ing.received[0].Year)
	assert.Contains(t, body, `"status":"pending"`)

	status, _ = call(t, app, "POST", "/api/v1/ingestion/jobs", `{"judgments":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	ing.err = ingestion.ErrIngestionInProgress
	status, _ = call(t, app, "POST", "/api/v1/ingestion/jobs", `{"judgments":[{"citation":"x","text":"y"}]}`)
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestGetIngestionJob(t *testing.T) {
	job := &models.IngestionJob{ID: uuid.New(), Status: models.JobStatusCompleted, Processed: 3}
	ing := &fakeIngester{job: job}
	app := newApp(&fakeSearcher{}, ing)

	status, body := call(t, app, "GET", "/api/v1/ingestion/jobs/"+job.ID.String(), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"processed":3`)

	ing.job = nil
	status, body = call(t, app, "GET", "/api/v1/ingestion/jobs/"+job.ID.String(), "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "null", body)
}

func TestAdminEndpoints(t *testing.T) {
	app := newApp(&fakeSearcher{}, &fakeIngester{})

	status, body := call(t, app, "POST", "/api/v1/ingestion/resolve", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"resolved":2}`, body)

	status, body = call(t, app, "DELETE", "/api/v1/cache", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"deleted":4}`, body)

	status, body = call(t, app, "GET", "/api/v1/stats", "")
	assert.Equal(t, fiber.StatusOK, status)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 8.0, stats["embedded_judgments"])
	assert.Equal(t, "healthy", stats["index_health"].(map[string]any)["status"])
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	app := fiber.New()
	healthy := NewHealthHandler(map[string]Pinger{"postgres": fakePinger{}})
	broken := NewHealthHandler(map[string]Pinger{"postgres": fakePinger{}, "redis": fakePinger{err: errors.New("refused")}})
	app.Get("/health", healthy.Health)
	app.Get("/ready", healthy.Ready)
	app.Get("/ready-broken", broken.Ready)

	status, _ := call(t, app, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, "GET", "/ready", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, "GET", "/ready-broken", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, body, "refused")
}
