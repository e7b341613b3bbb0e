package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PlanStepStatus represents the terminal status of a recorded pipeline step
type PlanStepStatus string

const (
	StepSuccess PlanStepStatus = "success"
	StepFailed  PlanStepStatus = "failed"
	StepSkipped PlanStepStatus = "skipped"
)

// PlanStep represents one recorded stage of a run's execution trace
type PlanStep struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Status      PlanStepStatus         `json:"status"`
	Attempts    int                    `json:"attempts"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

// PlanSteps represents a run's full execution trace
type PlanSteps []PlanStep

// Value implements driver.Valuer for JSONB
func (p PlanSteps) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB
func (p *PlanSteps) Scan(value interface{}) error {
	if value == nil {
		*p = make(PlanSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = make(PlanSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*p = make(PlanSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, p)
}
