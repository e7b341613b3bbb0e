package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QualityAxis identifies one of the eight case-quality scoring axes
type QualityAxis string

const (
	AxisTrustTier        QualityAxis = "trust_tier"
	AxisCourtRank        QualityAxis = "court_rank"
	AxisJurisdictionFit  QualityAxis = "jurisdiction_fit"
	AxisPoliticalRisk    QualityAxis = "political_risk"
	AxisBindingLanguage  QualityAxis = "binding_language"
	AxisRecency          QualityAxis = "recency"
	AxisTreatment        QualityAxis = "treatment"
	AxisStatuteAlignment QualityAxis = "statute_alignment"
)

// AxisScores maps each quality axis to its 0-100 sub-score
type AxisScores map[QualityAxis]float64

// Value implements driver.Valuer for JSONB
func (a AxisScores) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB
func (a *AxisScores) Scan(value interface{}) error {
	if value == nil {
		*a = make(AxisScores)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*a = make(AxisScores)
		return nil
	}

	if len(bytes) == 0 {
		*a = make(AxisScores)
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// CaseTreatment represents a citing-court treatment signal for a decision
type CaseTreatment struct {
	ID        uuid.UUID `json:"id"`
	SourceID  uuid.UUID `json:"source_id"`
	Signal    string    `json:"signal"` // "followed", "distinguished", "criticized", "overruled"
	CitedBy   string    `json:"cited_by"`
	NotedAt   time.Time `json:"noted_at"`
	Reference string    `json:"reference,omitempty"`
}

// StatuteAlignment represents a link between a decision and a statutory provision
type StatuteAlignment struct {
	ID         uuid.UUID `json:"id"`
	SourceID   uuid.UUID `json:"source_id"`
	StatuteRef string    `json:"statute_ref"` // ELI or article reference
	Confidence float64   `json:"confidence"`  // [0,1]
}

// RiskSignal represents a political/institutional risk flag on a source
type RiskSignal struct {
	ID       uuid.UUID `json:"id"`
	SourceID uuid.UUID `json:"source_id"`
	Kind     string    `json:"kind"` // "political_pressure", "contested_bench", "pending_review"
	Severity string    `json:"severity"`
	Note     string    `json:"note,omitempty"`
}

// ScoreOverride represents a persisted manual correction to a case score
type ScoreOverride struct {
	SourceID  uuid.UUID `json:"source_id"`
	Score     *float64  `json:"score,omitempty"` // replaces the computed score when set
	HardBlock bool      `json:"hard_block"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// CaseQualitySummary represents the scored quality of one cited judicial decision.
// Re-derived on every run that cites the source; every evaluation persists a new
// version row so the history stays auditable.
type CaseQualitySummary struct {
	SourceID          uuid.UUID          `json:"source_id"`
	URL               string             `json:"url"`
	Score             float64            `json:"score"` // [0,100]
	HardBlock         bool               `json:"hard_block"`
	Version           int                `json:"version"`
	Notes             []string           `json:"notes,omitempty"`
	AxisScores        AxisScores         `json:"axis_scores"`
	Treatments        []CaseTreatment    `json:"treatments,omitempty"`
	StatuteAlignments []StatuteAlignment `json:"statute_alignments,omitempty"`
	RiskSignals       []RiskSignal       `json:"risk_signals,omitempty"`
	EvaluatedAt       time.Time          `json:"evaluated_at"`
}
