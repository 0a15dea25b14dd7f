// Package monitoring reports the health and size of the RAG corpus.
package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

type Store interface {
	Stats(ctx context.Context) (*models.StoreStats, error)
	IndexHealth(ctx context.Context) (*models.IndexHealth, error)
	LatestJob(ctx context.Context) (*models.IngestionJob, error)
}

// Stats is the corpus report served by the stats endpoint.
type Stats struct {
	models.StoreStats
	// EmbeddingCoverage is the share of chunks with an embedding, 0-1.
	EmbeddingCoverage float64              `json:"embedding_coverage"`
	LastIngestionJob  *models.IngestionJob `json:"last_ingestion_job"`
	IndexHealth       models.IndexHealth   `json:"index_health"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

type Service struct {
	store   Store
	timeout time.Duration
}

func NewService(store Store, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{store: store, timeout: timeout}
}

// GetStats reads the corpus counts, the vector index state and the latest
// ingestion job, and refreshes the store gauges.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store stats: %w", err)
	}
	health, err := s.store.IndexHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index health: %w", err)
	}
	job, err := s.store.LatestJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest ingestion job: %w", err)
	}

	out := &Stats{
		StoreStats:       *counts,
		LastIngestionJob: job,
		IndexHealth:      *health,
		GeneratedAt:      time.Now().UTC(),
	}
	if counts.TotalChunks > 0 {
		out.EmbeddingCoverage = float64(counts.EmbeddedChunks) / float64(counts.TotalChunks)
	}
	if out.ByJurisdiction == nil {
		out.ByJurisdiction = []models.CountBucket{}
	}
	if out.ByCourtTier == nil {
		out.ByCourtTier = []models.CountBucket{}
	}

	publish(out)
	if health.Status != models.IndexHealthy {
		logger.Warn("Vector index is not healthy",
			zap.String("status", string(health.Status)),
			zap.String("index", health.IndexName),
			zap.String("type", health.IndexType),
		)
	}
	return out, nil
}

func publish(s *Stats) {
	metrics.StoreRecords.WithLabelValues("judgments").Set(float64(s.TotalJudgments))
	metrics.StoreRecords.WithLabelValues("judgments_embedded").Set(float64(s.EmbeddedJudgments))
	metrics.StoreRecords.WithLabelValues("chunks").Set(float64(s.TotalChunks))
	metrics.StoreRecords.WithLabelValues("chunks_embedded").Set(float64(s.EmbeddedChunks))
	metrics.StoreRecords.WithLabelValues("citation_links").Set(float64(s.CitationLinks))
	metrics.CitationGraphEdges.Set(float64(s.ResolvedCitationLinks))
}
