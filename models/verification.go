package models

import (
	"database/sql/driver"
	"encoding/json"
)

// NoteSeverity represents the severity of a verification finding
type NoteSeverity string

const (
	SeverityInfo     NoteSeverity = "info"
	SeverityWarning  NoteSeverity = "warning"
	SeverityCritical NoteSeverity = "critical"
)

// VerificationStatus represents the outcome of the post-hoc verification pass
type VerificationStatus string

const (
	VerificationPassed    VerificationStatus = "passed"
	VerificationEscalated VerificationStatus = "hitl_escalated"
)

// VerificationNote represents one severity-tagged verification finding
type VerificationNote struct {
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Severity NoteSeverity `json:"severity"`
}

// VerificationResult represents the outcome of verifying a produced payload.
// Any critical note forces hitl_escalated.
type VerificationResult struct {
	Status              VerificationStatus `json:"status"`
	Notes               []VerificationNote `json:"notes,omitempty"`
	AllowlistViolations []string           `json:"allowlist_violations,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (v VerificationResult) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan implements sql.Scanner for JSONB
func (v *VerificationResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, v)
}
