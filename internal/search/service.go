// Package search implements hybrid judgment retrieval and the read APIs
// that back the legal research feature.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/cache"
	"github.com/qanoonai/backend/internal/embedding"
	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

// Store is the judgment store as seen by the read path.
type Store interface {
	HybridSearch(ctx context.Context, q models.HybridQuery) ([]models.ChunkHit, error)
	Browse(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]models.JudgmentSummary, int, error)
	GetJudgment(ctx context.Context, id uuid.UUID) (*models.Judgment, error)
	GetChunks(ctx context.Context, judgmentID uuid.UUID) ([]models.Chunk, error)
	OutboundCitations(ctx context.Context, judgmentID uuid.UUID) ([]models.CitationEdge, error)
	InboundCitations(ctx context.Context, judgmentID uuid.UUID) ([]models.InboundCitation, error)
}

// ChainQuerier walks citations across several hops.
type ChainQuerier interface {
	CitationChain(ctx context.Context, id uuid.UUID, direction models.ChainDirection, depth int) ([]models.ChainEdge, error)
}

const (
	MaxChainDepth = 3
	// Chunks attached to a result when grouping by judgment.
	maxGroupedChunks = 5
)

type Config struct {
	DefaultLimit   int
	MaxLimit       int
	MinQueryLength int
	MaxQueryLength int
	// CandidateLimit is the per-path candidate count requested from the
	// store; it grows with offset+limit for deep pages.
	CandidateLimit int
	EmbedTimeout   time.Duration
	StoreTimeout   time.Duration
	DefaultWeights models.SearchWeights
}

func DefaultConfig() Config {
	return Config{
		DefaultLimit:   10,
		MaxLimit:       100,
		MinQueryLength: 3,
		MaxQueryLength: 1000,
		CandidateLimit: 100,
		EmbedTimeout:   10 * time.Second,
		StoreTimeout:   15 * time.Second,
		DefaultWeights: models.SearchWeights{Vector: 0.7, Keyword: 0.2, Recency: 0.1},
	}
}

type Service struct {
	store    Store
	embedder embedding.Provider
	cache    *cache.Cache
	graph    ChainQuerier
	cfg      Config
	now      func() time.Time
}

// NewService wires the read path. c may be nil to disable caching.
func NewService(store Store, embedder embedding.Provider, c *cache.Cache, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = def.MinQueryLength
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = def.MaxQueryLength
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.DefaultWeights.Total() <= 0 {
		cfg.DefaultWeights = def.DefaultWeights
	}
	return &Service{store: store, embedder: embedder, cache: c, cfg: cfg, now: time.Now}
}

// WithGraph enables multi-hop citation chains.
func (s *Service) WithGraph(g ChainQuerier) *Service {
	s.graph = g
	return s
}

func upstream(what string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", what, ErrUpstreamUnavailable, err)
}

func (s *Service) Search(ctx context.Context, raw models.SearchOptions) (*models.SearchResponse, error) {
	start := s.now()

	opts, err := s.normalizeOptions(raw)
	if err != nil {
		metrics.SearchTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var key string
	if s.cache != nil {
		key = s.cache.Key(opts)
		if resp, ok := s.cache.Get(ctx, key); ok {
			resp.Cached = true
			resp.ResponseTimeMS = s.now().Sub(start).Milliseconds()
			metrics.SearchTotal.WithLabelValues("ok").Inc()
			metrics.SearchDuration.WithLabelValues("true").Observe(s.now().Sub(start).Seconds())
			return resp, nil
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	vector, err := s.embedder.Embed(embedCtx, opts.Query)
	cancel()
	if err == nil && len(vector) == 0 {
		err = embedding.ErrEmptyEmbedding
	}
	if err != nil {
		metrics.SearchTotal.WithLabelValues("upstream_error").Inc()
		logger.Error("Query embedding failed", zap.Error(err))
		return nil, upstream("embed query", err)
	}

	candidates := max(s.cfg.CandidateLimit, 4*(opts.Offset+opts.Limit))
	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	hits, err := s.store.HybridSearch(storeCtx, models.HybridQuery{
		Text:           opts.Query,
		Embedding:      vector,
		Filters:        *opts.Filters,
		CandidateLimit: candidates,
	})
	cancel()
	if err != nil {
		metrics.SearchTotal.WithLabelValues("upstream_error").Inc()
		logger.Error("Hybrid search failed", zap.Error(err))
		return nil, upstream("query judgment store", err)
	}
	observeHits(hits)

	results := s.buildResults(hits, opts)
	page := paginate(results, opts.Offset, opts.Limit)

	resp := &models.SearchResponse{
		Results:        page,
		ResultCount:    len(page),
		ResponseTimeMS: s.now().Sub(start).Milliseconds(),
	}

	if s.cache != nil {
		s.cache.Set(context.WithoutCancel(ctx), key, resp)
	}

	metrics.SearchTotal.WithLabelValues("ok").Inc()
	metrics.SearchResultsCount.Observe(float64(len(page)))
	metrics.SearchDuration.WithLabelValues("false").Observe(s.now().Sub(start).Seconds())
	logger.Debug("Search completed",
		zap.String("query", opts.Query),
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(page)),
		zap.Int64("response_time_ms", resp.ResponseTimeMS),
	)
	return resp, nil
}

func observeHits(hits []models.ChunkHit) {
	byPath := map[models.RetrievalPath]int{}
	for _, h := range hits {
		byPath[h.Path]++
	}
	metrics.CandidateHits.WithLabelValues(string(models.PathVector)).Observe(float64(byPath[models.PathVector]))
	metrics.CandidateHits.WithLabelValues(string(models.PathKeyword)).Observe(float64(byPath[models.PathKeyword]))
}

// buildResults scores every hit, keeps the best per judgment and, when
// grouping, attaches that judgment's other matching chunks.
func (s *Service) buildResults(hits []models.ChunkHit, opts models.SearchOptions) []models.SearchResult {
	currentYear := s.now().Year()
	terms := queryTerms(opts.Query)

	results := make([]models.SearchResult, 0, len(hits))
	chunksByKey := map[string][]models.MatchedChunk{}
	for _, h := range hits {
		score := fuse(h, *opts.Weights, currentYear)
		chunk := models.MatchedChunk{
			ChunkID:  h.ChunkID,
			Position: h.Position,
			Text:     h.Text,
			Label:    h.Label,
			Score:    score,
		}
		key := dedupKey(h.Judgment)
		chunksByKey[key] = append(chunksByKey[key], chunk)

		results = append(results, models.SearchResult{
			Judgment:      h.Judgment,
			Score:         score,
			MatchedChunks: []models.MatchedChunk{chunk},
		})
	}

	kept := DeduplicateResults(results, opts.Offset+opts.Limit)
	for i := range kept {
		r := &kept[i]
		chunks := r.MatchedChunks
		if opts.GroupByJudgment {
			chunks = chunksByKey[dedupKey(r.Judgment)]
			sort.SliceStable(chunks, func(a, b int) bool { return chunks[a].Score > chunks[b].Score })
			if len(chunks) > maxGroupedChunks {
				chunks = chunks[:maxGroupedChunks]
			}
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Text
		}
		r.MatchedKeywords = matchedKeywords(terms, texts...)
		r.MatchedLegalAreas = matchedLegalAreas(r.Judgment.LegalAreas, opts.Filters.LegalAreas, opts.Query)
		if opts.IncludeChunks {
			r.MatchedChunks = chunks
		} else {
			r.MatchedChunks = nil
		}
	}
	return kept
}

func paginate(results []models.SearchResult, offset, limit int) []models.SearchResult {
	if offset >= len(results) {
		return []models.SearchResult{}
	}
	end := min(offset+limit, len(results))
	return results[offset:end]
}

// Browse pages through judgments by filters alone; it never calls the
// embedding provider.
func (s *Service) Browse(ctx context.Context, opts models.BrowseOptions) (*models.BrowseResponse, error) {
	limit, offset, err := s.page(opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(opts.Filters)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	judgments, total, err := s.store.Browse(ctx, *filters, limit, offset)
	if err != nil {
		return nil, upstream("browse judgments", err)
	}
	return &models.BrowseResponse{Results: judgments, Total: total, Limit: limit, Offset: offset}, nil
}

// GetJudgment returns nil, nil for an unknown id.
func (s *Service) GetJudgment(ctx context.Context, id uuid.UUID) (*models.JudgmentDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	j, err := s.store.GetJudgment(ctx, id)
	if err != nil {
		return nil, upstream("get judgment", err)
	}
	if j == nil {
		return nil, nil
	}

	chunks, err := s.store.GetChunks(ctx, id)
	if err != nil {
		return nil, upstream("get chunks", err)
	}
	return &models.JudgmentDetail{Judgment: *j, Chunks: chunks}, nil
}

// GetCitationGraph returns the judgment's outbound and inbound links, or
// nil, nil for an unknown id.
func (s *Service) GetCitationGraph(ctx context.Context, id uuid.UUID) (*models.CitationGraph, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	j, err := s.store.GetJudgment(ctx, id)
	if err != nil {
		return nil, upstream("get judgment", err)
	}
	if j == nil {
		return nil, nil
	}

	outbound, err := s.store.OutboundCitations(ctx, id)
	if err != nil {
		return nil, upstream("get outbound citations", err)
	}
	inbound, err := s.store.InboundCitations(ctx, id)
	if err != nil {
		return nil, upstream("get inbound citations", err)
	}

	return &models.CitationGraph{Judgment: j.Summary(), Outbound: outbound, Inbound: inbound}, nil
}

// GetCitationChain follows citations up to depth hops from id.
func (s *Service) GetCitationChain(ctx context.Context, id uuid.UUID, direction models.ChainDirection, depth int) (*models.CitationChain, error) {
	if s.graph == nil {
		return nil, ErrGraphDisabled
	}
	if depth < 1 || depth > MaxChainDepth {
		return nil, invalid("depth must be between 1 and %d", MaxChainDepth)
	}
	if direction == "" {
		direction = models.ChainOutbound
	}
	if direction != models.ChainOutbound && direction != models.ChainInbound {
		return nil, invalid("unknown direction %q", direction)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	edges, err := s.graph.CitationChain(ctx, id, direction, depth)
	if err != nil {
		return nil, upstream("walk citation chain", err)
	}
	if edges == nil {
		edges = []models.ChainEdge{}
	}
	return &models.CitationChain{Root: id, Direction: direction, Depth: depth, Edges: edges}, nil
}

// ClearCache drops every cached search response.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Clear(ctx)
	if err != nil {
		return n, upstream("clear cache", err)
	}
	return n, nil
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
