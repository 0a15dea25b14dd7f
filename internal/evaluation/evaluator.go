package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/citation"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

const (
	ClassIrrelevant    = "irrelevant"
	ClassModerate      = "moderate"
	ClassFullyRelevant = "fully_relevant"
)

// Searcher runs the queries being evaluated.
type Searcher interface {
	Search(ctx context.Context, opts models.SearchOptions) (*models.SearchResponse, error)
}

// Evaluator measures retrieval quality against a labelled dataset of
// queries and the judgments a lawyer would expect them to surface.
type Evaluator struct {
	searcher Searcher
	limit    int
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Query string `json:"query"`
	// ExpectedCitations are matched on their normalized form.
	ExpectedCitations []string              `json:"expected_citations"`
	Category          string                `json:"category,omitempty"`
	Filters           *models.SearchFilters `json:"filters,omitempty"`
}

type QueryResult struct {
	QueryID        string
	Query          string
	Category       string
	FirstHitRank   int
	ReciprocalRank float64
	Recall         float64
	Classification string
}

type Report struct {
	TotalQueries            int
	FailedQueries           int
	IrrelevantCount         int
	ModerateCount           int
	FullyRelevantCount      int
	MeanReciprocalRank      float64
	AvgRecall               float64
	HitRate                 float64
	IrrelevantPercentage    float64
	ModeratePercentage      float64
	FullyRelevantPercentage float64
	Results                 []QueryResult
}

// NewEvaluator evaluates the top limit results of each query; zero uses
// the searcher's default page size.
func NewEvaluator(searcher Searcher, limit int) *Evaluator {
	return &Evaluator{
		searcher: searcher,
		limit:    limit,
	}
}

func (e *Evaluator) EvaluateQuery(ctx context.Context, queryID string, item DatasetItem) (*QueryResult, error) {
	resp, err := e.searcher.Search(ctx, models.SearchOptions{
		Query:   item.Query,
		Filters: item.Filters,
		Limit:   e.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	expected := make(map[string]bool, len(item.ExpectedCitations))
	for _, c := range item.ExpectedCitations {
		if norm := citation.Normalize(c); norm != "" {
			expected[norm] = true
		}
	}

	result := &QueryResult{
		QueryID:  queryID,
		Query:    item.Query,
		Category: item.Category,
	}

	found := make(map[string]bool, len(expected))
	for i, r := range resp.Results {
		norm := r.Judgment.NormalizedCitation
		if norm == "" {
			norm = citation.Normalize(r.Judgment.Citation)
		}
		if !expected[norm] || found[norm] {
			continue
		}
		found[norm] = true
		if result.FirstHitRank == 0 {
			result.FirstHitRank = i + 1
			result.ReciprocalRank = 1 / float64(i+1)
		}
	}

	if len(expected) > 0 {
		result.Recall = float64(len(found)) / float64(len(expected))
	}
	result.Classification = classify(len(found), len(expected))

	logger.Debug("Query evaluated",
		zap.String("query_id", queryID),
		zap.String("classification", result.Classification),
		zap.Int("first_hit_rank", result.FirstHitRank),
	)

	return result, nil
}

func classify(found, expected int) string {
	switch {
	case found == 0:
		return ClassIrrelevant
	case found < expected:
		return ClassModerate
	default:
		return ClassFullyRelevant
	}
}

// RunDatasetEvaluation evaluates every item. Failed queries are counted and
// skipped; averages cover the queries that ran.
func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{
		TotalQueries: len(dataset.Items),
	}

	var totalRR, totalRecall float64
	var hits int

	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queryID := fmt.Sprintf("eval_%d", i)
		result, err := e.EvaluateQuery(ctx, queryID, item)
		if err != nil {
			logger.Warn("Failed to evaluate query", zap.String("query_id", queryID), zap.Error(err))
			report.FailedQueries++
			continue
		}

		switch result.Classification {
		case ClassIrrelevant:
			report.IrrelevantCount++
		case ClassModerate:
			report.ModerateCount++
		case ClassFullyRelevant:
			report.FullyRelevantCount++
		}
		if result.FirstHitRank > 0 {
			hits++
		}

		totalRR += result.ReciprocalRank
		totalRecall += result.Recall
		report.Results = append(report.Results, *result)
	}

	if ran := len(report.Results); ran > 0 {
		n := float64(ran)
		report.MeanReciprocalRank = totalRR / n
		report.AvgRecall = totalRecall / n
		report.HitRate = float64(hits) / n

		report.IrrelevantPercentage = float64(report.IrrelevantCount) / n * 100
		report.ModeratePercentage = float64(report.ModerateCount) / n * 100
		report.FullyRelevantPercentage = float64(report.FullyRelevantCount) / n * 100
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("failed", report.FailedQueries),
		zap.Float64("mrr", report.MeanReciprocalRank),
		zap.Float64("hit_rate", report.HitRate),
	)

	return report, nil
}

func LoadDataset(r io.Reader) (*Dataset, error) {
	var dataset Dataset
	if err := json.NewDecoder(r).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &dataset, nil
}

func GenerateReport(report *Report) string {
	return fmt.Sprintf(`
Retrieval Evaluation Report
===========================

Total Queries: %d (failed: %d)

Classifications:
- Irrelevant: %d (%.1f%%)
- Partially Relevant: %d (%.1f%%)
- Fully Relevant: %d (%.1f%%)

Ranking:
- Mean Reciprocal Rank: %.3f
- Average Recall: %.3f
- Hit Rate: %.3f
`,
		report.TotalQueries, report.FailedQueries,
		report.IrrelevantCount, report.IrrelevantPercentage,
		report.ModerateCount, report.ModeratePercentage,
		report.FullyRelevantCount, report.FullyRelevantPercentage,
		report.MeanReciprocalRank,
		report.AvgRecall,
		report.HitRate,
	)
}
