package models

import "github.com/google/uuid"

// TrustTier represents a coarse reliability classification of a legal source
type TrustTier string

const (
	TierT1 TrustTier = "T1" // official consolidated texts (Légifrance, EUR-Lex)
	TierT2 TrustTier = "T2" // supreme and appellate court publications
	TierT3 TrustTier = "T3" // lower-court and regional publications
	TierT4 TrustTier = "T4" // secondary commentary
)

// SnippetOrigin identifies which search back-end produced a snippet
type SnippetOrigin string

const (
	OriginLocal  SnippetOrigin = "local"
	OriginRemote SnippetOrigin = "remote"
)

// HybridSnippet represents one retrieved legal-source fragment after ranking.
// Ephemeral per run; raw content is never persisted for confidential runs.
type HybridSnippet struct {
	Content         string        `json:"content"`
	Similarity      float64       `json:"similarity"` // [0,1]
	Weight          float64       `json:"weight"`     // > 0
	Origin          SnippetOrigin `json:"origin"`
	SourceID        *uuid.UUID    `json:"source_id,omitempty"`
	SourceURL       string        `json:"source_url,omitempty"`
	TrustTier       TrustTier     `json:"trust_tier"`
	ELI             *string       `json:"eli,omitempty"`
	ECLI            *string       `json:"ecli,omitempty"`
	BindingLanguage *string       `json:"binding_language,omitempty"`
	ResidencyZone   *string       `json:"residency_zone,omitempty"`
	ArticleCount    *int          `json:"article_count,omitempty"`
}
