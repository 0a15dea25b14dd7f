package search

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/qanoonai/backend/internal/storage/models"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	dim   int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	dim := f.dim
	if dim == 0 {
		dim = 4
	}
	return make([]float32, dim), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	hits        []models.ChunkHit
	judgments   map[uuid.UUID]*models.Judgment
	chunks      map[uuid.UUID][]models.Chunk
	outbound    map[uuid.UUID][]models.CitationEdge
	inbound     map[uuid.UUID][]models.InboundCitation
	err         error
	searchCalls int
	lastQuery   models.HybridQuery
	lastBrowse  models.SearchFilters
}

func (f *fakeStore) HybridSearch(_ context.Context, q models.HybridQuery) ([]models.ChunkHit, error) {
	f.searchCalls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeStore) Browse(_ context.Context, filters models.SearchFilters, limit, offset int) ([]models.JudgmentSummary, int, error) {
	f.lastBrowse = filters
	if f.err != nil {
		return nil, 0, f.err
	}
	var all []models.JudgmentSummary
	for _, j := range f.judgments {
		all = append(all, j.Summary())
	}
	if offset >= len(all) {
		return []models.JudgmentSummary{}, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

func (f *fakeStore) GetJudgment(_ context.Context, id uuid.UUID) (*models.Judgment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.judgments[id], nil
}

func (f *fakeStore) GetChunks(_ context.Context, id uuid.UUID) ([]models.Chunk, error) {
	return f.chunks[id], nil
}

func (f *fakeStore) OutboundCitations(_ context.Context, id uuid.UUID) ([]models.CitationEdge, error) {
	return f.outbound[id], nil
}

func (f *fakeStore) InboundCitations(_ context.Context, id uuid.UUID) ([]models.InboundCitation, error) {
	return f.inbound[id], nil
}

type fakeGraph struct {
	edges     []models.ChainEdge
	direction models.ChainDirection
	depth     int
}

func (f *fakeGraph) CitationChain(_ context.Context, _ uuid.UUID, direction models.ChainDirection, depth int) ([]models.ChainEdge, error) {
	f.direction, f.depth = direction, depth
	return f.edges, nil
}
