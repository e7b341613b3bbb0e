package models

import (
	"database/sql/driver"
	"encoding/json"
)

// FriaAssessment represents the fundamental-rights impact assessment requirement
type FriaAssessment struct {
	Required bool     `json:"required"`
	Reasons  []string `json:"reasons,omitempty"`
}

// CepejAssessment represents the CEPEJ ethical-charter principle checks
type CepejAssessment struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// StatuteAssessment represents the statute-first alignment check
type StatuteAssessment struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// DisclosureState represents required consent and disclosure acknowledgements
type DisclosureState struct {
	ConsentSatisfied bool     `json:"consent_satisfied"`
	CouncilSatisfied bool     `json:"council_satisfied"`
	Missing          []string `json:"missing,omitempty"`
}

// ComplianceAssessment represents jurisdiction-specific compliance posture for a run
type ComplianceAssessment struct {
	Fria        FriaAssessment    `json:"fria"`
	Cepej       CepejAssessment   `json:"cepej"`
	Statute     StatuteAssessment `json:"statute"`
	Disclosures DisclosureState   `json:"disclosures"`
}

// Value implements driver.Valuer for JSONB
func (c ComplianceAssessment) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *ComplianceAssessment) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// CitationStats summarizes the allowlist posture of a payload's citations
type CitationStats struct {
	Total          int      `json:"total"`
	Allowlisted    int      `json:"allowlisted"`
	AllowlistRatio float64  `json:"allowlist_ratio"`
	NonAllowlisted []string `json:"non_allowlisted,omitempty"`
	TopHosts       []string `json:"top_hosts,omitempty"`
}

// RetrievalStats summarizes retrieval provenance for a run
type RetrievalStats struct {
	LocalCount       int      `json:"local_count"`
	RemoteCount      int      `json:"remote_count"`
	EliCoverage      int      `json:"eli_coverage"`  // snippets carrying an ELI
	EcliCoverage     int      `json:"ecli_coverage"` // snippets carrying an ECLI
	ResidencyZones   []string `json:"residency_zones,omitempty"`
	BindingLanguages []string `json:"binding_languages,omitempty"`
}

// CaseQualityStats summarizes case-law quality across a run's citations
type CaseQualityStats struct {
	ScoredCases      int      `json:"scored_cases"`
	MinScore         float64  `json:"min_score"`
	MaxScore         float64  `json:"max_score"`
	HardBlockedCases int      `json:"hard_blocked_cases"`
	TreatmentSignals []string `json:"treatment_signals,omitempty"`
	StatuteRefs      []string `json:"statute_refs,omitempty"`
	RiskSignalKinds  []string `json:"risk_signal_kinds,omitempty"`
}

// TrustPanel is the client-facing trust summary for one run. It is a pure
// aggregation view, always rebuilt from source rows, never persisted on its own.
type TrustPanel struct {
	Citations    CitationStats        `json:"citations"`
	Retrieval    RetrievalStats       `json:"retrieval"`
	CaseQuality  CaseQualityStats     `json:"case_quality"`
	Verification VerificationResult   `json:"verification"`
	Compliance   ComplianceAssessment `json:"compliance"`
	ForceHitl    bool                 `json:"force_hitl"`
}

// Value implements driver.Valuer for JSONB
func (t TrustPanel) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB
func (t *TrustPanel) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, t)
}
