// Package cache stores search responses in a shared key-value backend.
// Backend failures are never returned to search callers; they degrade to
// cache misses.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
	"github.com/qanoonai/backend/pkg/utils"
)

const (
	DefaultTTL     = 15 * time.Minute
	DefaultPrefix  = "rag:search:"
	DefaultTimeout = 500 * time.Millisecond
)

// Backend is a key-value store with per-key expiry and prefix deletion.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	ScanDelete(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	TTL     time.Duration
	Prefix  string
	Timeout time.Duration
}

type Cache struct {
	backend Backend
	ttl     time.Duration
	prefix  string
	timeout time.Duration
}

func New(backend Backend, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Cache{backend: backend, ttl: cfg.TTL, prefix: cfg.Prefix, timeout: cfg.Timeout}
}

func (c *Cache) Key(opts models.SearchOptions) string {
	return BuildKey(c.prefix, opts)
}

// Get returns the cached response for key. Any backend or decode error is
// reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*models.SearchResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("search").Inc()
		return nil, false
	}

	var resp models.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("search").Inc()
	return &resp, true
}

// Set writes resp under key with the configured TTL. Failures are logged
// and dropped.
func (c *Cache) Set(ctx context.Context, key string, resp *models.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("Failed to marshal search response for cache", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("Search response cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
}

// Clear removes every entry under this cache's prefix. Unlike reads and
// writes it reports failure, since it is an explicit administrative action.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.backend.ScanDelete(ctx, c.prefix)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("clear").Inc()
		return n, err
	}
	logger.Info("Search cache cleared", zap.Int("deleted", n))
	return n, nil
}

type keyFilters struct {
	CourtTiers    []string `json:"court_tiers"`
	Jurisdictions []string `json:"jurisdictions"`
	YearFrom      int      `json:"year_from"`
	YearTo        int      `json:"year_to"`
	LegalAreas    []string `json:"legal_areas"`
	Court         string   `json:"court"`
}

type keyWeights struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
	Recency float64 `json:"recency"`
}

type keyOptions struct {
	Query           string      `json:"query"`
	Filters         keyFilters  `json:"filters"`
	Limit           int         `json:"limit"`
	Offset          int         `json:"offset"`
	Weights         *keyWeights `json:"weights"`
	IncludeChunks   bool        `json:"include_chunks"`
	GroupByJudgment bool        `json:"group_by_judgment"`
}

// BuildKey hashes a canonical encoding of opts. Filter sets are sorted and
// de-duplicated so the key does not depend on the order values were given.
func BuildKey(prefix string, opts models.SearchOptions) string {
	k := keyOptions{
		Query:           strings.Join(strings.Fields(opts.Query), " "),
		Limit:           opts.Limit,
		Offset:          opts.Offset,
		IncludeChunks:   opts.IncludeChunks,
		GroupByJudgment: opts.GroupByJudgment,
	}
	if f := opts.Filters; f != nil {
		tiers := make([]string, len(f.CourtTiers))
		for i, t := range f.CourtTiers {
			tiers[i] = string(t)
		}
		jurisdictions := make([]string, len(f.Jurisdictions))
		for i, j := range f.Jurisdictions {
			jurisdictions[i] = string(j)
		}
		k.Filters = keyFilters{
			CourtTiers:    canonicalSet(tiers),
			Jurisdictions: canonicalSet(jurisdictions),
			LegalAreas:    canonicalSet(f.LegalAreas),
			Court:         strings.ToLower(strings.TrimSpace(f.Court)),
		}
		if f.Years != nil {
			k.Filters.YearFrom = f.Years.From
			k.Filters.YearTo = f.Years.To
		}
	}
	if w := opts.Weights; w != nil {
		k.Weights = &keyWeights{Vector: w.Vector, Keyword: w.Keyword, Recency: w.Recency}
	}

	// Struct fields marshal in declaration order and cannot fail.
	data, _ := json.Marshal(k)
	return prefix + utils.HashBytes(data)
}

func canonicalSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
