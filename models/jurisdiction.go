package models

// JurisdictionHint represents one scored jurisdiction candidate for a question
type JurisdictionHint struct {
	Country     string  `json:"country"` // ISO 3166-1 alpha-2, or "OHADA" for the regional order
	EuMember    bool    `json:"eu_member"`
	OhadaMember bool    `json:"ohada_member"`
	Confidence  float64 `json:"confidence"` // [0,1]
	Rationale   string  `json:"rationale"`
}

// RoutingResult represents the outcome of jurisdiction routing for one run
type RoutingResult struct {
	Primary    *JurisdictionHint  `json:"primary,omitempty"` // candidates[0], nil when no rule matched
	Candidates []JurisdictionHint `json:"candidates"`        // descending by confidence, rule-table order on ties
	Warnings   []string           `json:"warnings,omitempty"`
}
