package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceType classifies a legal source document
type SourceType string

const (
	SourceStatute          SourceType = "statute"
	SourceJudicialDecision SourceType = "judicial_decision"
	SourceRegulation       SourceType = "regulation"
	SourceCommentary       SourceType = "commentary"
)

// LegalSource represents an indexed legal source document
type LegalSource struct {
	ID              uuid.UUID  `json:"id"`
	OrgID           *uuid.UUID `json:"org_id,omitempty"` // nil for the shared corpus
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	SourceType      SourceType `json:"source_type"`
	TrustTier       TrustTier  `json:"trust_tier"`
	Jurisdiction    string     `json:"jurisdiction"`
	ELI             *string    `json:"eli,omitempty"`
	ECLI            *string    `json:"ecli,omitempty"`
	BindingLanguage *string    `json:"binding_language,omitempty"`
	ResidencyZone   *string    `json:"residency_zone,omitempty"`
	ArticleCount    *int       `json:"article_count,omitempty"`
	CourtRank       *int       `json:"court_rank,omitempty"` // 1 = supreme, larger = lower
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	RemoteFileID    *string    `json:"remote_file_id,omitempty"` // opaque id in the remote search back-end
	CreatedAt       time.Time  `json:"created_at"`
}

// SourceChunk represents one embedded fragment of a legal source
type SourceChunk struct {
	ID         uuid.UUID    `json:"id"`
	SourceID   uuid.UUID    `json:"source_id"`
	ChunkIndex int          `json:"chunk_index"`
	Text       string       `json:"text"`
	Distance   float64      `json:"distance,omitempty"` // vector similarity distance
	Source     *LegalSource `json:"source,omitempty"`   // joined source metadata
}

// QuerySynonym represents a learned lexical expansion for retrieval queries
type QuerySynonym struct {
	ID           uuid.UUID `json:"id"`
	Jurisdiction string    `json:"jurisdiction"`
	Term         string    `json:"term"`
	Expansion    string    `json:"expansion"`
	CreatedAt    time.Time `json:"created_at"`
}
