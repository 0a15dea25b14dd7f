package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/pkg/logger"
)

const hnswIndexName = "idx_chunks_embedding_hnsw"

type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	VectorDim       int
	HNSWM           int
	HNSWEfConstruct int
}

type Client struct {
	pool *pgxpool.Pool
	cfg  Config
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Info("Postgres client initialized",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)

	return &Client{pool: pool, cfg: cfg}, nil
}

func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, schemaSQL(c.cfg)); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info("Postgres schema initialized", zap.Int("vector_dim", c.cfg.VectorDim))
	return nil
}

func schemaSQL(cfg Config) string {
	m, ef := cfg.HNSWM, cfg.HNSWEfConstruct
	if m <= 0 {
		m = 16
	}
	if ef <= 0 {
		ef = 64
	}

	return fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS judgments (
		id UUID PRIMARY KEY,
		case_name TEXT NOT NULL,
		citation TEXT NOT NULL,
		normalized_citation TEXT NOT NULL,
		court TEXT NOT NULL DEFAULT '',
		court_tier TEXT NOT NULL,
		jurisdiction TEXT NOT NULL,
		year INTEGER NOT NULL,
		full_text TEXT NOT NULL,
		embedding vector(%[1]d),
		legal_areas TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (jurisdiction, normalized_citation)
	);
	CREATE INDEX IF NOT EXISTS idx_judgments_normalized_citation ON judgments(normalized_citation);
	CREATE INDEX IF NOT EXISTS idx_judgments_filters ON judgments(jurisdiction, court_tier, year);
	CREATE INDEX IF NOT EXISTS idx_judgments_legal_areas ON judgments USING GIN (legal_areas);

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		judgment_id UUID NOT NULL REFERENCES judgments(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		overlap INTEGER NOT NULL DEFAULT 0,
		embedding vector(%[1]d),
		tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED,
		UNIQUE (judgment_id, position)
	);
	CREATE INDEX IF NOT EXISTS %[2]s ON chunks
		USING hnsw (embedding vector_cosine_ops) WITH (m = %[3]d, ef_construction = %[4]d);
	CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON chunks USING GIN (tsv);

	CREATE TABLE IF NOT EXISTS citation_links (
		id UUID PRIMARY KEY,
		citing_judgment_id UUID NOT NULL REFERENCES judgments(id) ON DELETE CASCADE,
		raw_citation TEXT NOT NULL,
		normalized_citation TEXT NOT NULL,
		target_judgment_id UUID REFERENCES judgments(id) ON DELETE SET NULL,
		context TEXT NOT NULL DEFAULT '',
		mention_count INTEGER NOT NULL DEFAULT 1,
		UNIQUE (citing_judgment_id, normalized_citation)
	);
	CREATE INDEX IF NOT EXISTS idx_citation_links_target ON citation_links(target_judgment_id);
	CREATE INDEX IF NOT EXISTS idx_citation_links_unresolved ON citation_links(normalized_citation)
		WHERE target_judgment_id IS NULL;

	CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		embedded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_started ON ingestion_jobs(started_at DESC);
	`, cfg.VectorDim, hnswIndexName, m, ef)
}
