package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CourtTier string

const (
	CourtTierSupreme  CourtTier = "supreme"
	CourtTierHigh     CourtTier = "high"
	CourtTierDistrict CourtTier = "district"
	CourtTierTribunal CourtTier = "tribunal"
	CourtTierOther    CourtTier = "other"
)

func ParseCourtTier(s string) (CourtTier, error) {
	switch t := CourtTier(strings.ToLower(strings.TrimSpace(s))); t {
	case CourtTierSupreme, CourtTierHigh, CourtTierDistrict, CourtTierTribunal, CourtTierOther:
		return t, nil
	case "":
		return CourtTierOther, nil
	default:
		return "", fmt.Errorf("unknown court tier %q", s)
	}
}

type Jurisdiction string

const (
	JurisdictionPakistan Jurisdiction = "pakistan"
	JurisdictionUK       Jurisdiction = "uk"
	JurisdictionIndia    Jurisdiction = "india"
	JurisdictionOther    Jurisdiction = "other"
)

func ParseJurisdiction(s string) (Jurisdiction, error) {
	switch j := Jurisdiction(strings.ToLower(strings.TrimSpace(s))); j {
	case JurisdictionPakistan, JurisdictionUK, JurisdictionIndia, JurisdictionOther:
		return j, nil
	case "pk":
		return JurisdictionPakistan, nil
	case "united kingdom", "gb", "england":
		return JurisdictionUK, nil
	case "in":
		return JurisdictionIndia, nil
	default:
		return "", fmt.Errorf("unknown jurisdiction %q", s)
	}
}

type Judgment struct {
	ID                 uuid.UUID    `json:"id"`
	CaseName           string       `json:"case_name"`
	Citation           string       `json:"citation"`
	NormalizedCitation string       `json:"normalized_citation"`
	Court              string       `json:"court"`
	CourtTier          CourtTier    `json:"court_tier"`
	Jurisdiction       Jurisdiction `json:"jurisdiction"`
	Year               int          `json:"year"`
	FullText           string       `json:"full_text,omitempty"`
	Embedding          []float32    `json:"-"`
	LegalAreas         []string     `json:"legal_areas"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// JudgmentSummary is the projection carried by search results and graph views.
type JudgmentSummary struct {
	ID                 uuid.UUID    `json:"id"`
	CaseName           string       `json:"case_name"`
	Citation           string       `json:"citation"`
	NormalizedCitation string       `json:"normalized_citation"`
	Court              string       `json:"court"`
	CourtTier          CourtTier    `json:"court_tier"`
	Jurisdiction       Jurisdiction `json:"jurisdiction"`
	Year               int          `json:"year"`
	LegalAreas         []string     `json:"legal_areas"`
}

func (j *Judgment) Summary() JudgmentSummary {
	return JudgmentSummary{
		ID:                 j.ID,
		CaseName:           j.CaseName,
		Citation:           j.Citation,
		NormalizedCitation: j.NormalizedCitation,
		Court:              j.Court,
		CourtTier:          j.CourtTier,
		Jurisdiction:       j.Jurisdiction,
		Year:               j.Year,
		LegalAreas:         j.LegalAreas,
	}
}

type Chunk struct {
	ID         uuid.UUID `json:"id"`
	JudgmentID uuid.UUID `json:"judgment_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	Label      string    `json:"label,omitempty"`
	// Overlap is the byte length of the leading text repeated from the
	// previous chunk; Text[Overlap:] are the chunk's own bytes.
	Overlap   int       `json:"overlap"`
	Embedding []float32 `json:"-"`
}

type CitationLink struct {
	ID                 uuid.UUID  `json:"id"`
	CitingJudgmentID   uuid.UUID  `json:"citing_judgment_id"`
	RawCitation        string     `json:"raw_citation"`
	NormalizedCitation string     `json:"normalized_citation"`
	TargetJudgmentID   *uuid.UUID `json:"target_judgment_id"`
	Context            string     `json:"context"`
	MentionCount       int        `json:"mention_count"`
}

func (l *CitationLink) Resolved() bool {
	return l.TargetJudgmentID != nil
}

type IngestionJobStatus string

const (
	JobStatusPending   IngestionJobStatus = "pending"
	JobStatusRunning   IngestionJobStatus = "running"
	JobStatusCompleted IngestionJobStatus = "completed"
	JobStatusFailed    IngestionJobStatus = "failed"
)

func (s IngestionJobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type IngestionJob struct {
	ID           uuid.UUID          `json:"id"`
	Status       IngestionJobStatus `json:"status"`
	Processed    int                `json:"processed"`
	Embedded     int                `json:"embedded"`
	Failed       int                `json:"failed"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// ErrJobTerminal is returned when updating an ingestion job that has
// already completed or failed.
var ErrJobTerminal = errors.New("ingestion job already in a terminal state")

// PendingLink is an unresolved citation link with the judgment that cites it.
type PendingLink struct {
	Link   CitationLink
	Citing JudgmentSummary
}
