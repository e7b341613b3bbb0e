package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle status of a research run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunEscalated RunStatus = "hitl_escalated"
	RunFailed    RunStatus = "failed"
)

// AgentSettings represents per-run agent profile overrides
type AgentSettings map[string]interface{}

// Value implements driver.Valuer for JSONB
func (a AgentSettings) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB
func (a *AgentSettings) Scan(value interface{}) error {
	if value == nil {
		*a = make(AgentSettings)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*a = make(AgentSettings)
		return nil
	}

	if len(bytes) == 0 {
		*a = make(AgentSettings)
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// AccessContext represents the identity component's view of the caller.
// Consumed, not computed, by the pipeline.
type AccessContext struct {
	OrgID                 uuid.UUID `json:"org_id"`
	UserID                uuid.UUID `json:"user_id"`
	Entitlements          []string  `json:"entitlements,omitempty"`
	ConsentVersion        string    `json:"consent_version"`
	CouncilDisclosureAck  bool      `json:"council_disclosure_ack"`
	ConfidentialityPolicy string    `json:"confidentiality_policy,omitempty"`
}

// ResearchRun represents one persisted run of the orchestration pipeline
type ResearchRun struct {
	ID           uuid.UUID             `json:"id"`
	OrgID        uuid.UUID             `json:"org_id"`
	UserID       uuid.UUID             `json:"user_id"`
	Fingerprint  string                `json:"fingerprint"`
	Question     string                `json:"question"`
	Context      *string               `json:"context,omitempty"`
	Confidential bool                  `json:"confidential"`
	AgentCode    *string               `json:"agent_code,omitempty"`
	Settings     AgentSettings         `json:"agent_settings,omitempty"`
	Jurisdiction *string               `json:"jurisdiction,omitempty"`
	Status       RunStatus             `json:"status"`
	Payload      *AnswerPayload        `json:"payload,omitempty"`
	Plan         PlanSteps             `json:"plan"`
	Verification *VerificationResult   `json:"verification,omitempty"`
	Compliance   *ComplianceAssessment `json:"compliance,omitempty"`
	Panel        *TrustPanel           `json:"trust_panel,omitempty"`
	ForceHitl    bool                  `json:"force_hitl"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ToolInvocation represents one logged capability call made during a run
type ToolInvocation struct {
	ID        uuid.UUID `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Tool      string    `json:"tool"`
	Arguments string    `json:"arguments,omitempty"`
	Succeeded bool      `json:"succeeded"`
	CalledAt  time.Time `json:"called_at"`
}

// HitlEntry represents a queued human-in-the-loop review item
type HitlEntry struct {
	ID        uuid.UUID  `json:"id"`
	RunID     uuid.UUID  `json:"run_id"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"` // "open", "claimed", "resolved"
	CreatedAt time.Time  `json:"created_at"`
	ClaimedBy *uuid.UUID `json:"claimed_by,omitempty"`
}
