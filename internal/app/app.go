// Package app wires the QanoonAI components from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/cache"
	"github.com/qanoonai/backend/internal/cache/memory"
	"github.com/qanoonai/backend/internal/cache/redis"
	"github.com/qanoonai/backend/internal/chunker"
	"github.com/qanoonai/backend/internal/citation"
	"github.com/qanoonai/backend/internal/embedding"
	"github.com/qanoonai/backend/internal/graph/neo4j"
	"github.com/qanoonai/backend/internal/ingestion"
	"github.com/qanoonai/backend/internal/monitoring"
	"github.com/qanoonai/backend/internal/search"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/internal/storage/postgres"
	"github.com/qanoonai/backend/pkg/config"
	"github.com/qanoonai/backend/pkg/logger"
)

type App struct {
	Store    *postgres.Client
	Redis    *redis.Client
	Graph    *neo4j.Client
	Cache    *cache.Cache
	Search   *search.Service
	Pipeline *ingestion.Pipeline
	Stats    *monitoring.Service
}

// New connects to the store and optional backends and builds the services.
// Redis and Neo4j outages at startup degrade features instead of failing.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := postgres.NewClient(ctx, postgres.Config{
		URL:             cfg.Postgres.URL,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		VectorDim:       cfg.Postgres.VectorDim,
		HNSWM:           cfg.Postgres.HNSWM,
		HNSWEfConstruct: cfg.Postgres.HNSWEfConstruct,
	})
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	a := &App{Store: store}

	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "memory":
		backend = memory.NewLRU(cfg.Cache.MemoryCapacity)
	default:
		a.Redis = redis.NewClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		backend = a.Redis
	}
	a.Cache = cache.New(backend, cache.Config{
		TTL:     cfg.Cache.TTL,
		Prefix:  cfg.Cache.KeyPrefix,
		Timeout: cfg.Cache.Timeout,
	})

	embedder := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
		BatchSize: cfg.Embedding.BatchSize,
	})

	a.Search = search.NewService(store, embedder, a.Cache, search.Config{
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxLimit:       cfg.Search.MaxLimit,
		MinQueryLength: cfg.Search.MinQueryLength,
		MaxQueryLength: cfg.Search.MaxQueryLength,
		CandidateLimit: cfg.Search.CandidateLimit,
		EmbedTimeout:   cfg.Embedding.Timeout,
		StoreTimeout:   cfg.Search.StoreTimeout,
		DefaultWeights: models.SearchWeights{
			Vector:  cfg.Search.VectorWeight,
			Keyword: cfg.Search.KeywordWeight,
			Recency: cfg.Search.RecencyWeight,
		},
	})

	ch := chunker.New(chunker.Config{
		MinTokens:    cfg.Chunker.MinTokens,
		MaxTokens:    cfg.Chunker.MaxTokens,
		OverlapRatio: cfg.Chunker.OverlapRatio,
	}, nil)
	extractor := citation.NewExtractor(cfg.Ingestion.ContextWindow, citation.DefaultMatchers()...)
	a.Pipeline = ingestion.NewPipeline(store, embedder, ch, extractor, ingestion.Config{
		ResolveBatchSize:       cfg.Ingestion.ResolveBatchSize,
		ClearCacheOnComplete:   cfg.Ingestion.ClearCacheOnComplete,
		MaxConsecutiveFailures: cfg.Ingestion.MaxConsecutiveFailures,
	}).WithCache(a.Cache)

	a.Stats = monitoring.NewService(store, cfg.Search.StoreTimeout)

	if cfg.Neo4j.Enabled {
		if err := a.connectGraph(ctx, cfg.Neo4j); err != nil {
			logger.Warn("Citation graph disabled", zap.Error(err))
		}
	}

	return a, nil
}

func (a *App) connectGraph(ctx context.Context, cfg config.Neo4jConfig) error {
	g, err := neo4j.NewClient(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	if err != nil {
		return err
	}
	if err := g.EnsureConstraints(ctx); err != nil {
		g.Close(ctx)
		return fmt.Errorf("failed to create graph constraints: %w", err)
	}
	a.Graph = g
	a.Search.WithGraph(g)
	a.Pipeline.WithGraph(g)
	return nil
}

// Close waits for background ingestion and releases connections.
func (a *App) Close(ctx context.Context) {
	a.Pipeline.Wait()
	if a.Graph != nil {
		if err := a.Graph.Close(ctx); err != nil {
			logger.Warn("Failed to close neo4j driver", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	a.Store.Close()
}
