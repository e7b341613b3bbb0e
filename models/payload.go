package models

import (
	"database/sql/driver"
	"encoding/json"
)

// RiskLevel represents the model's own risk assessment of an answer
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank orders risk levels so escalation can only move upward
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	}
	return 0
}

// AtLeast returns the higher of the two risk levels
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if floor.rank() > r.rank() {
		return floor
	}
	return r
}

// Citation represents a single cited legal source in an answer
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Binding bool   `json:"binding"` // cites the legally authoritative text
	Note    string `json:"note,omitempty"`
}

// RiskAssessment represents the risk posture attached to an answer
type RiskAssessment struct {
	Level        RiskLevel `json:"level"`
	HitlRequired bool      `json:"hitl_required"`
	Reasons      []string  `json:"reasons,omitempty"`
}

// AnswerPayload is the structured legal analysis produced by the model.
// The four IRAC sections must all be non-empty for the answer to pass guardrails.
type AnswerPayload struct {
	Issue        string         `json:"issue"`
	Rules        []string       `json:"rules"`
	Application  string         `json:"application"`
	Conclusion   string         `json:"conclusion"`
	Citations    []Citation     `json:"citations"`
	Risk         RiskAssessment `json:"risk"`
	Jurisdiction string         `json:"jurisdiction,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (p AnswerPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB
func (p *AnswerPayload) Scan(value interface{}) error {
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

	return json.Unmarshal(bytes, p)
}
