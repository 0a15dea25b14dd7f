// Package ingestion loads raw judgments into the judgment store: it chunks
// and embeds their text, extracts citation links and resolves them against
// judgments already present.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/chunker"
	"github.com/qanoonai/backend/internal/citation"
	"github.com/qanoonai/backend/internal/embedding"
	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/internal/storage/models"
	"github.com/qanoonai/backend/pkg/logger"
)

var ErrIngestionInProgress = errors.New("an ingestion job is already running")

// ErrInvalidJudgment marks a record rejected before anything was written.
// Such records fail individually and never count toward aborting a job.
var ErrInvalidJudgment = errors.New("invalid judgment record")

// Store is the slice of the judgment store the pipeline writes to.
type Store interface {
	citation.Lookup
	UpsertJudgment(ctx context.Context, j *models.Judgment) error
	SaveChunks(ctx context.Context, judgmentID uuid.UUID, chunks []models.Chunk, docEmbedding []float32) error
	ReplaceCitationLinks(ctx context.Context, citingID uuid.UUID, links []models.CitationLink) error
	UnresolvedLinks(ctx context.Context, after uuid.UUID, limit int) ([]models.PendingLink, error)
	SetLinkTarget(ctx context.Context, linkID, targetID uuid.UUID) error
	CreateJob(ctx context.Context, job *models.IngestionJob) error
	UpdateJob(ctx context.Context, job *models.IngestionJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error)
	ActiveJob(ctx context.Context) (*models.IngestionJob, error)
}

// Invalidator drops cached search responses once new judgments land.
type Invalidator interface {
	Clear(ctx context.Context) (int, error)
}

// GraphProjector mirrors judgments and resolved citations into a graph
// database. Projection failures are logged and never fail ingestion.
type GraphProjector interface {
	UpsertJudgment(ctx context.Context, j models.JudgmentSummary) error
	ReplaceCitations(ctx context.Context, citingID uuid.UUID, links []models.CitationLink) error
	AddCitation(ctx context.Context, link models.CitationLink) error
}

// RawJudgment is one input record, typically a line of a JSONL export.
type RawJudgment struct {
	CaseName     string   `json:"case_name"`
	Citation     string   `json:"citation"`
	Court        string   `json:"court"`
	CourtTier    string   `json:"court_tier"`
	Jurisdiction string   `json:"jurisdiction"`
	Year         int      `json:"year"`
	LegalAreas   []string `json:"legal_areas"`
	Text         string   `json:"text"`
	// Format is "text" (default) or "html".
	Format string `json:"format,omitempty"`
}

type Config struct {
	ResolveBatchSize     int
	ClearCacheOnComplete bool
	// MaxConsecutiveFailures aborts the job as failed when that many
	// judgments in a row hit a store or provider error. Invalid records
	// neither count nor reset the streak. Zero disables the check.
	MaxConsecutiveFailures int
}

func DefaultConfig() Config {
	return Config{
		ResolveBatchSize:       500,
		ClearCacheOnComplete:   true,
		MaxConsecutiveFailures: 5,
	}
}

type Pipeline struct {
	store     Store
	embedder  embedding.Provider
	chunker   *chunker.Chunker
	extractor *citation.Extractor
	resolver  *citation.Resolver
	cache     Invalidator
	graph     GraphProjector
	cfg       Config

	mu  sync.Mutex
	wg  sync.WaitGroup
	now func() time.Time
}

func NewPipeline(store Store, embedder embedding.Provider, ch *chunker.Chunker, ex *citation.Extractor, cfg Config) *Pipeline {
	if cfg.ResolveBatchSize <= 0 {
		cfg.ResolveBatchSize = DefaultConfig().ResolveBatchSize
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		chunker:   ch,
		extractor: ex,
		resolver:  citation.NewResolver(store),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (p *Pipeline) WithCache(c Invalidator) *Pipeline {
	p.cache = c
	return p
}

func (p *Pipeline) WithGraph(g GraphProjector) *Pipeline {
	p.graph = g
	return p
}

// Ingest runs a job over raws and returns it in its terminal state. Only
// one job may run at a time.
func (p *Pipeline) Ingest(ctx context.Context, raws []RawJudgment) (*models.IngestionJob, error) {
	job, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	p.run(ctx, job, raws)
	return job, nil
}

// Start creates a job and runs it in the background. The returned job is
// a snapshot in pending state; poll GetJob for progress.
func (p *Pipeline) Start(ctx context.Context, raws []RawJudgment) (*models.IngestionJob, error) {
	job, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := *job

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.mu.Unlock()
		p.run(context.WithoutCancel(ctx), job, raws)
	}()
	return &snapshot, nil
}

// Wait blocks until background jobs have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) GetJob(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error) {
	return p.store.GetJob(ctx, id)
}

// begin takes the in-process lock and records a pending job. The store
// check covers jobs started by another process.
func (p *Pipeline) begin(ctx context.Context) (*models.IngestionJob, error) {
	if !p.mu.TryLock() {
		return nil, ErrIngestionInProgress
	}

	active, err := p.store.ActiveJob(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to check for active ingestion job: %w", err)
	}
	if active != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s", ErrIngestionInProgress, active.ID)
	}

	started := p.now()
	job := &models.IngestionJob{
		ID:        uuid.New(),
		Status:    models.JobStatusPending,
		StartedAt: started,
		UpdatedAt: started,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}
	return job, nil
}

func (p *Pipeline) run(ctx context.Context, job *models.IngestionJob, raws []RawJudgment) {
	// Job bookkeeping outlives cancellation so a cancelled run is still
	// recorded as failed.
	bookkeeping := context.WithoutCancel(ctx)

	job.Status = models.JobStatusRunning
	p.saveJob(bookkeeping, job)

	logger.Info("Ingestion job started",
		zap.String("job_id", job.ID.String()),
		zap.Int("judgments", len(raws)),
	)

	start := time.Now()
	consecutive := 0
	var fault error
	for i := range raws {
		if err := ctx.Err(); err != nil {
			fault = fmt.Errorf("ingestion cancelled: %w", err)
			break
		}

		embedded, err := p.ingestOne(ctx, &raws[i])
		job.Processed++
		if embedded {
			job.Embedded++
		}
		switch {
		case errors.Is(err, ErrInvalidJudgment):
			job.Failed++
			logger.Warn("Judgment record rejected",
				zap.String("job_id", job.ID.String()),
				zap.String("citation", raws[i].Citation),
				zap.Error(err),
			)
		case err != nil:
			job.Failed++
			consecutive++
			logger.Warn("Judgment ingestion failed",
				zap.String("job_id", job.ID.String()),
				zap.String("citation", raws[i].Citation),
				zap.Error(err),
			)
			if p.cfg.MaxConsecutiveFailures > 0 && consecutive >= p.cfg.MaxConsecutiveFailures {
				fault = fmt.Errorf("aborted after %d consecutive failures: %w", consecutive, err)
			}
		default:
			consecutive = 0
		}
		if fault != nil {
			break
		}
		p.saveJob(bookkeeping, job)
	}

	if fault == nil {
		if _, err := p.ResolvePending(ctx); err != nil {
			fault = err
		}
	}

	completed := p.now()
	job.CompletedAt = &completed
	if fault != nil {
		msg := fault.Error()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &msg
	} else {
		job.Status = models.JobStatusCompleted
	}
	p.saveJob(bookkeeping, job)
	metrics.IngestionJobs.WithLabelValues(string(job.Status)).Inc()

	if p.cache != nil && p.cfg.ClearCacheOnComplete && job.Processed > job.Failed {
		if _, err := p.cache.Clear(bookkeeping); err != nil {
			logger.Warn("Failed to clear search cache after ingestion", zap.Error(err))
		}
	}

	logger.Info("Ingestion job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(job.Status)),
		zap.Int("processed", job.Processed),
		zap.Int("embedded", job.Embedded),
		zap.Int("failed", job.Failed),
		zap.Duration("duration", time.Since(start)),
	)
}

func (p *Pipeline) saveJob(ctx context.Context, job *models.IngestionJob) {
	job.UpdatedAt = p.now()
	if err := p.store.UpdateJob(ctx, job); err != nil {
		logger.Error("Failed to update ingestion job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// ingestOne stores one judgment. Metadata, chunks and links are kept even
// when embedding fails, so the judgment stays reachable by keyword and
// citation until it is re-ingested. embedded reports whether the judgment
// ended up with vectors.
func (p *Pipeline) ingestOne(ctx context.Context, raw *RawJudgment) (embedded bool, err error) {
	j, err := p.prepare(raw)
	if err != nil {
		metrics.JudgmentsIngested.WithLabelValues("invalid").Inc()
		return false, fmt.Errorf("%w: %w", ErrInvalidJudgment, err)
	}

	if err := p.store.UpsertJudgment(ctx, j); err != nil {
		metrics.JudgmentsIngested.WithLabelValues("store_error").Inc()
		return false, err
	}
	summary := j.Summary()

	links := p.extractor.Links(j)
	resolved, err := p.resolver.Resolve(ctx, summary, links)
	if err != nil {
		metrics.JudgmentsIngested.WithLabelValues("store_error").Inc()
		return false, err
	}
	if err := p.store.ReplaceCitationLinks(ctx, j.ID, links); err != nil {
		metrics.JudgmentsIngested.WithLabelValues("store_error").Inc()
		return false, err
	}
	metrics.CitationLinks.WithLabelValues("true").Add(float64(resolved))
	metrics.CitationLinks.WithLabelValues("false").Add(float64(len(links) - resolved))

	chunks := p.chunker.ChunkJudgment(j)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, embedErr := p.embedder.EmbedBatch(ctx, texts)
	if embedErr == nil && len(vectors) != len(chunks) {
		embedErr = fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	var doc []float32
	if embedErr == nil {
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		doc = embedding.MeanVector(vectors)
	}

	if err := p.store.SaveChunks(ctx, j.ID, chunks, doc); err != nil {
		metrics.JudgmentsIngested.WithLabelValues("store_error").Inc()
		return false, err
	}

	p.project(ctx, summary, links)

	if embedErr != nil {
		metrics.JudgmentsIngested.WithLabelValues("embedding_error").Inc()
		return false, fmt.Errorf("failed to embed judgment: %w", embedErr)
	}
	metrics.JudgmentsIngested.WithLabelValues("ok").Inc()
	metrics.ChunksEmbedded.Add(float64(len(chunks)))
	logger.Debug("Judgment ingested",
		zap.String("judgment_id", j.ID.String()),
		zap.String("citation", j.Citation),
		zap.Int("chunks", len(chunks)),
		zap.Int("links", len(links)),
		zap.Int("resolved", resolved),
	)
	return true, nil
}

// prepare validates a raw record and turns it into a judgment.
func (p *Pipeline) prepare(raw *RawJudgment) (*models.Judgment, error) {
	text := raw.Text
	caseName := strings.TrimSpace(raw.CaseName)
	switch strings.ToLower(raw.Format) {
	case "", "text":
		text = normalizeText(text)
	case "html":
		cleaned, title, err := cleanHTML(text)
		if err != nil {
			return nil, err
		}
		text = cleaned
		if caseName == "" {
			caseName = title
		}
	default:
		return nil, fmt.Errorf("unknown format %q", raw.Format)
	}

	cite := strings.TrimSpace(raw.Citation)
	normalized := citation.Normalize(cite)
	if normalized == "" {
		return nil, errors.New("citation is required")
	}
	if text == "" {
		return nil, errors.New("judgment text is empty")
	}

	tier, err := models.ParseCourtTier(raw.CourtTier)
	if err != nil {
		return nil, err
	}
	jurisdiction, err := p.jurisdiction(raw.Jurisdiction, cite)
	if err != nil {
		return nil, err
	}

	var areas []string
	for _, a := range raw.LegalAreas {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			areas = append(areas, a)
		}
	}

	return &models.Judgment{
		CaseName:           caseName,
		Citation:           cite,
		NormalizedCitation: normalized,
		Court:              strings.TrimSpace(raw.Court),
		CourtTier:          tier,
		Jurisdiction:       jurisdiction,
		Year:               raw.Year,
		FullText:           text,
		LegalAreas:         areas,
	}, nil
}

// jurisdiction parses an explicit value or infers it from the citation
// format.
func (p *Pipeline) jurisdiction(value, cite string) (models.Jurisdiction, error) {
	if strings.TrimSpace(value) != "" {
		return models.ParseJurisdiction(value)
	}
	if found := p.extractor.Extract(cite); len(found) > 0 && found[0].Jurisdiction != "" {
		return found[0].Jurisdiction, nil
	}
	return models.JurisdictionOther, nil
}

func (p *Pipeline) project(ctx context.Context, j models.JudgmentSummary, links []models.CitationLink) {
	if p.graph == nil {
		return
	}
	if err := p.graph.UpsertJudgment(ctx, j); err != nil {
		logger.Warn("Failed to project judgment to graph", zap.String("judgment_id", j.ID.String()), zap.Error(err))
		return
	}
	if err := p.graph.ReplaceCitations(ctx, j.ID, links); err != nil {
		logger.Warn("Failed to project citations to graph", zap.String("judgment_id", j.ID.String()), zap.Error(err))
	}
}
