package service

import (
	"time"

	"lexflow-backend/models"
)

// PlanRecorder turns the run's ordinary call sequence into an auditable,
// client-visible execution trace. Each invocation of Record appends exactly
// one step; steps are never mutated afterwards except through Amend, which
// only the guardrail path uses to correct attempt counts on its own step.
type PlanRecorder struct {
	steps models.PlanSteps
	now   func() time.Time
}

// NewPlanRecorder creates an empty recorder for one run
func NewPlanRecorder() *PlanRecorder {
	return &PlanRecorder{now: time.Now}
}

type recordConfig struct {
	optional bool
	detailFn func(interface{}) map[string]interface{}
}

// RecordOption configures a single Record call
type RecordOption func(*recordConfig)

// RecordOptional marks the step as skippable: a failure appends a skipped
// step and returns nil instead of propagating the error
func RecordOptional() RecordOption {
	return func(c *recordConfig) { c.optional = true }
}

// RecordDetail derives the success step's detail from the work result
func RecordDetail(fn func(interface{}) map[string]interface{}) RecordOption {
	return func(c *recordConfig) { c.detailFn = fn }
}

// Record executes work and appends one step describing its outcome. On
// success the step detail comes from the RecordDetail function when set; on
// failure the error message is captured under detail.error.
func (p *PlanRecorder) Record(
	id, name, description string,
	work func() (interface{}, error),
	opts ...RecordOption,
) (interface{}, error) {
	cfg := &recordConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	step := models.PlanStep{
		ID:          id,
		Name:        name,
		Description: description,
		StartedAt:   p.now(),
		Attempts:    1,
	}

	result, err := work()
	step.FinishedAt = p.now()

	if err != nil {
		step.Detail = map[string]interface{}{"error": err.Error()}
		if cfg.optional {
			step.Status = models.StepSkipped
			p.steps = append(p.steps, step)
			return nil, nil
		}
		step.Status = models.StepFailed
		p.steps = append(p.steps, step)
		return nil, err
	}

	step.Status = models.StepSuccess
	if cfg.detailFn != nil {
		step.Detail = cfg.detailFn(result)
	}
	p.steps = append(p.steps, step)
	return result, nil
}

// Amend corrects an already recorded step by id. Reserved for the guardrail
// path, which updates its own step's attempt count and detail after retries.
func (p *PlanRecorder) Amend(id string, attempts int, detail map[string]interface{}) {
	for i := range p.steps {
		if p.steps[i].ID != id {
			continue
		}
		if attempts > 0 {
			p.steps[i].Attempts = attempts
		}
		if detail != nil {
			if p.steps[i].Detail == nil {
				p.steps[i].Detail = make(map[string]interface{})
			}
			for k, v := range detail {
				p.steps[i].Detail[k] = v
			}
		}
		return
	}
}

// Steps returns the recorded trace
func (p *PlanRecorder) Steps() models.PlanSteps {
	return p.steps
}
