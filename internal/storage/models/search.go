package models

import (
	"github.com/google/uuid"
)

type YearRange struct {
	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`
}

type SearchFilters struct {
	CourtTiers    []CourtTier    `json:"court_tiers,omitempty"`
	Jurisdictions []Jurisdiction `json:"jurisdictions,omitempty"`
	Years         *YearRange     `json:"years,omitempty"`
	// LegalAreas must all be present on a judgment for it to match.
	LegalAreas []string `json:"legal_areas,omitempty"`
	Court      string   `json:"court,omitempty"`
}

type SearchWeights struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
	Recency float64 `json:"recency"`
}

func (w SearchWeights) Total() float64 {
	return w.Vector + w.Keyword + w.Recency
}

type SearchOptions struct {
	Query           string         `json:"query"`
	Filters         *SearchFilters `json:"filters,omitempty"`
	Limit           int            `json:"limit,omitempty"`
	Offset          int            `json:"offset,omitempty"`
	Weights         *SearchWeights `json:"weights,omitempty"`
	IncludeChunks   bool           `json:"include_chunks,omitempty"`
	GroupByJudgment bool           `json:"group_by_judgment,omitempty"`
}

type BrowseOptions struct {
	Filters *SearchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

type MatchedChunk struct {
	ChunkID  uuid.UUID `json:"chunk_id"`
	Position int       `json:"position"`
	Text     string    `json:"text"`
	Label    string    `json:"label,omitempty"`
	Score    float64   `json:"score"`
}

type SearchResult struct {
	Judgment          JudgmentSummary `json:"judgment"`
	Score             float64         `json:"score"`
	MatchedChunks     []MatchedChunk  `json:"matched_chunks,omitempty"`
	MatchedKeywords   []string        `json:"matched_keywords"`
	MatchedLegalAreas []string        `json:"matched_legal_areas"`
}

type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	ResultCount    int            `json:"result_count"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	Cached         bool           `json:"cached"`
}

// RetrievalPath records which leg of the hybrid query produced a hit.
type RetrievalPath string

const (
	PathVector  RetrievalPath = "vector"
	PathKeyword RetrievalPath = "keyword"
)

// HybridQuery is the store-level request built by the search service.
type HybridQuery struct {
	Text           string
	Embedding      []float32
	Filters        SearchFilters
	CandidateLimit int
}

// ChunkHit is one candidate row of the hybrid query.
type ChunkHit struct {
	Judgment         JudgmentSummary
	ChunkID          uuid.UUID
	Position         int
	Text             string
	Label            string
	VectorSimilarity float64
	KeywordRank      float64
	Path             RetrievalPath
}

type JudgmentDetail struct {
	Judgment Judgment `json:"judgment"`
	Chunks   []Chunk  `json:"chunks"`
}

type CitationEdge struct {
	Link     CitationLink     `json:"link"`
	Resolved bool             `json:"resolved"`
	Target   *JudgmentSummary `json:"target,omitempty"`
}

type InboundCitation struct {
	Link   CitationLink    `json:"link"`
	Citing JudgmentSummary `json:"citing"`
}

type CitationGraph struct {
	Judgment JudgmentSummary   `json:"judgment"`
	Outbound []CitationEdge    `json:"outbound"`
	Inbound  []InboundCitation `json:"inbound"`
}

type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type IndexHealthStatus string

const (
	IndexHealthy IndexHealthStatus = "healthy"
	IndexLegacy  IndexHealthStatus = "legacy"
	IndexMissing IndexHealthStatus = "missing"
)

type IndexHealth struct {
	Status    IndexHealthStatus `json:"status"`
	IndexName string            `json:"index_name,omitempty"`
	IndexType string            `json:"index_type,omitempty"`
}

type StoreStats struct {
	TotalJudgments        int64         `json:"total_judgments"`
	EmbeddedJudgments     int64         `json:"embedded_judgments"`
	TotalChunks           int64         `json:"total_chunks"`
	EmbeddedChunks        int64         `json:"embedded_chunks"`
	CitationLinks         int64         `json:"citation_links"`
	ResolvedCitationLinks int64         `json:"resolved_citation_links"`
	ByJurisdiction        []CountBucket `json:"by_jurisdiction"`
	ByCourtTier           []CountBucket `json:"by_court_tier"`
	MinYear               int           `json:"min_year"`
	MaxYear               int           `json:"max_year"`
}

type BrowseResponse struct {
	Results []JudgmentSummary `json:"results"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

type ChainDirection string

const (
	ChainOutbound ChainDirection = "outbound"
	ChainInbound  ChainDirection = "inbound"
)

// ChainEdge is one CITES hop in a multi-hop citation walk.
type ChainEdge struct {
	FromID       uuid.UUID `json:"from_id"`
	FromCitation string    `json:"from_citation"`
	ToID         uuid.UUID `json:"to_id"`
	ToCitation   string    `json:"to_citation"`
	ToCaseName   string    `json:"to_case_name"`
	// Citation is the cited text as it appears in the citing judgment.
	Citation     string `json:"citation"`
	MentionCount int    `json:"mention_count"`
}

type CitationChain struct {
	Root      uuid.UUID      `json:"root"`
	Direction ChainDirection `json:"direction"`
	Depth     int            `json:"depth"`
	Edges     []ChainEdge    `json:"edges"`
}
