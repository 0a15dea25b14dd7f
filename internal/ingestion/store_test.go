package ingestion

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/qanoonai/backend/internal/storage/models"
)

// memStore is an in-memory Store with the same upsert and job semantics
// as the postgres client.
type memStore struct {
	mu        sync.Mutex
	judgments map[uuid.UUID]*models.Judgment
	chunks    map[uuid.UUID][]models.Chunk
	links     map[uuid.UUID]*models.CitationLink
	jobs      map[uuid.UUID]*models.IngestionJob
	upsertErr error
	jobSaves  int
}

func newMemStore() *memStore {
	return &memStore{
		judgments: map[uuid.UUID]*models.Judgment{},
		chunks:    map[uuid.UUID][]models.Chunk{},
		links:     map[uuid.UUID]*models.CitationLink{},
		jobs:      map[uuid.UUID]*models.IngestionJob{},
	}
}

func (s *memStore) FindByNormalizedCitation(_ context.Context, normalized string) ([]models.JudgmentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JudgmentSummary
	for _, j := range s.judgments {
		if j.NormalizedCitation == normalized {
			out = append(out, j.Summary())
		}
	}
	return out, nil
}

func (s *memStore) UpsertJudgment(_ context.Context, j *models.Judgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for id, existing := range s.judgments {
		if existing.Jurisdiction == j.Jurisdiction && existing.NormalizedCitation == j.NormalizedCitation {
			j.ID = id
		}
	}
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	stored := *j
	stored.Embedding = nil
	s.judgments[j.ID] = &stored
	return nil
}

func (s *memStore) SaveChunks(_ context.Context, judgmentID uuid.UUID, chunks []models.Chunk, doc []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[judgmentID] = append([]models.Chunk(nil), chunks...)
	s.judgments[judgmentID].Embedding = doc
	return nil
}

func (s *memStore) ReplaceCitationLinks(_ context.Context, citingID uuid.UUID, links []models.CitationLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.links {
		if l.CitingJudgmentID == citingID {
			delete(s.links, id)
		}
	}
	for _, l := range links {
		l := l
		s.links[l.ID] = &l
	}
	return nil
}

func (s *memStore) UnresolvedLinks(_ context.Context, after uuid.UUID, limit int) ([]models.PendingLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PendingLink
	for _, l := range s.links {
		if l.TargetJudgmentID == nil && bytes.Compare(l.ID[:], after[:]) > 0 {
			out = append(out, models.PendingLink{Link: *l, Citing: s.judgments[l.CitingJudgmentID].Summary()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Link.ID[:], out[j].Link.ID[:]) < 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SetLinkTarget(_ context.Context, linkID, targetID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[linkID]; ok && l.TargetJudgmentID == nil {
		l.TargetJudgmentID = &targetID
	}
	return nil
}

func (s *memStore) CreateJob(_ context.Context, job *models.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *memStore) UpdateJob(_ context.Context, job *models.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobSaves++
	existing, ok := s.jobs[job.ID]
	if !ok || existing.Status.Terminal() {
		return models.ErrJobTerminal
	}
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (*models.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) ActiveJob(_ context.Context) (*models.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if !j.Status.Terminal() {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

// LatestJob mirrors the store's most-recently-started ordering.
func (s *memStore) LatestJob(_ context.Context) (*models.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.IngestionJob
	for _, j := range s.jobs {
		if latest == nil || j.StartedAt.After(latest.StartedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *memStore) byCitation(normalized string) *models.Judgment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.judgments {
		if j.NormalizedCitation == normalized {
			return j
		}
	}
	return nil
}

func (s *memStore) linksFrom(citingID uuid.UUID) []models.CitationLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CitationLink
	for _, l := range s.links {
		if l.CitingJudgmentID == citingID {
			out = append(out, *l)
		}
	}
	return out
}

func (s *memStore) embeddedJudgments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.judgments {
		if len(j.Embedding) > 0 {
			n++
		}
	}
	return n
}

var errStoreDown = errors.New("connection refused")
