package service

import (
	"context"
	"testing"

	"lexflow-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() *models.AnswerPayload {
	return &models.AnswerPayload{
		Issue:       "Validité d'une clause de non-concurrence",
		Rules:       []string{"Article L1121-1 du Code du travail"},
		Application: "La clause doit être limitée dans le temps et l'espace.",
		Conclusion:  "La clause est valable sous conditions.",
		Citations: []models.Citation{
			{URL: "https://www.legifrance.gouv.fr/codes/article_lc/LEGIARTI000006900785", Binding: true},
		},
		Risk:         models.RiskAssessment{Level: models.RiskLow},
		Jurisdiction: "FR",
	}
}

func TestAllowlistViolationsDetectsForeignHosts(t *testing.T) {
	rules := DefaultRuleSet()
	citations := []models.Citation{
		{URL: "https://www.legifrance.gouv.fr/eli/loi/2024/1"},
		{URL: "https://blog.example.com/analyse"},
		{URL: "https://blog.example.com/autre"},
		{URL: "://not a url"},
	}

	violations := AllowlistViolations(rules, citations)

	assert.ElementsMatch(t, []string{"blog.example.com", "://not a url"}, violations)
}

func TestAllowlistViolationsAcceptsSubdomains(t *testing.T) {
	rules := DefaultRuleSet()
	citations := []models.Citation{
		{URL: "https://juricaf.org/arret/123"},
		{URL: "https://www.courdecassation.fr/decision/456"},
	}

	assert.Empty(t, AllowlistViolations(rules, citations))
}

func TestEvaluateGuardrailsPassesValidPayload(t *testing.T) {
	assert.Nil(t, EvaluateGuardrails(DefaultRuleSet(), validPayload()))
}

func TestEvaluateGuardrailsAllowlistFirst(t *testing.T) {
	payload := validPayload()
	payload.Citations = append(payload.Citations, models.Citation{URL: "https://forum.example.org/post"})
	payload.Issue = "" // structure also broken, but the allowlist check wins

	violation := EvaluateGuardrails(DefaultRuleSet(), payload)

	require.NotNil(t, violation)
	assert.Equal(t, GuardrailCitationAllowlist, violation.Kind)
	assert.Contains(t, violation.Domains, "forum.example.org")
}

func TestEvaluateGuardrailsBindingLanguage(t *testing.T) {
	payload := validPayload()
	payload.Jurisdiction = "MA"
	payload.Citations = []models.Citation{
		{URL: "https://www.sgg.gov.ma/BulletinOfficiel.aspx", Binding: true},
	}

	violation := EvaluateGuardrails(DefaultRuleSet(), payload)

	require.NotNil(t, violation)
	assert.Equal(t, GuardrailBindingLanguage, violation.Kind)
	assert.Contains(t, violation.Message, "MA")
}

func TestEvaluateGuardrailsBindingLanguageInferredFromCitations(t *testing.T) {
	// The payload does not declare a jurisdiction; the Moroccan gazette
	// citation alone triggers the binding-language rule
	payload := validPayload()
	payload.Jurisdiction = ""
	payload.Citations = []models.Citation{
		{URL: "https://www.sgg.gov.ma/BulletinOfficiel.aspx", Binding: true},
	}

	violation := EvaluateGuardrails(DefaultRuleSet(), payload)

	require.NotNil(t, violation)
	assert.Equal(t, GuardrailBindingLanguage, violation.Kind)
}

func TestEvaluateGuardrailsBindingLanguageSatisfiedByHitl(t *testing.T) {
	payload := validPayload()
	payload.Jurisdiction = "MA"
	payload.Citations = []models.Citation{
		{URL: "https://www.sgg.gov.ma/BulletinOfficiel.aspx", Binding: true},
	}
	payload.Risk.HitlRequired = true

	assert.Nil(t, EvaluateGuardrails(DefaultRuleSet(), payload))
}

func TestEvaluateGuardrailsStructure(t *testing.T) {
	payload := validPayload()
	payload.Application = "   "

	violation := EvaluateGuardrails(DefaultRuleSet(), payload)

	require.NotNil(t, violation)
	assert.Equal(t, GuardrailStructure, violation.Kind)
}

func TestEvaluateGuardrailsRiskFlag(t *testing.T) {
	payload := validPayload()
	payload.Risk = models.RiskAssessment{Level: models.RiskHigh, HitlRequired: false}

	violation := EvaluateGuardrails(DefaultRuleSet(), payload)

	require.NotNil(t, violation)
	assert.Equal(t, GuardrailRiskFlag, violation.Kind)
}

func TestOnlyAllowlistIsRetriable(t *testing.T) {
	assert.True(t, GuardrailCitationAllowlist.Retriable())
	assert.False(t, GuardrailBindingLanguage.Retriable())
	assert.False(t, GuardrailStructure.Retriable())
	assert.False(t, GuardrailRiskFlag.Retriable())
	assert.False(t, GuardrailToolBudget.Retriable())
	assert.False(t, GuardrailModelFailure.Retriable())
}

func TestDriveSucceedsFirstAttempt(t *testing.T) {
	model := &fakeModelClient{payloads: []*models.AnswerPayload{validPayload()}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.Escalated)
	assert.Nil(t, result.Violation)
	require.NotNil(t, result.Payload)
	assert.Equal(t, "Validité d'une clause de non-concurrence", result.Payload.Issue)
}

func TestDriveRetriesAllowlistTripOnce(t *testing.T) {
	bad := validPayload()
	bad.Citations = []models.Citation{{URL: "https://blog.example.com/article"}}

	model := &fakeModelClient{payloads: []*models.AnswerPayload{bad, validPayload()}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.Equal(t, 2, result.Attempts)
	assert.False(t, result.Escalated)
	assert.Contains(t, result.AllowlistViolations, "blog.example.com")

	// The retry prompt names the allowed domains
	require.Len(t, model.requests, 2)
	assert.Contains(t, model.requests[1].Instructions, "legifrance.gouv.fr")
	assert.NotContains(t, model.requests[0].Instructions, "RAPPEL")
}

func TestDriveEscalatesAfterSecondAllowlistTrip(t *testing.T) {
	bad1 := validPayload()
	bad1.Citations = []models.Citation{{URL: "https://blog.example.com/a"}}
	bad2 := validPayload()
	bad2.Citations = []models.Citation{{URL: "https://autre.example.net/b"}}

	model := &fakeModelClient{payloads: []*models.AnswerPayload{bad1, bad2}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.Equal(t, maxModelAttempts, result.Attempts)
	assert.True(t, result.Escalated)
	require.NotNil(t, result.Violation)
	assert.Equal(t, GuardrailCitationAllowlist, result.Violation.Kind)
	assert.ElementsMatch(t, []string{"blog.example.com", "autre.example.net"}, result.AllowlistViolations)

	// The synthesized payload is terminal and reviewable
	require.NotNil(t, result.Payload)
	assert.Equal(t, models.RiskHigh, result.Payload.Risk.Level)
	assert.True(t, result.Payload.Risk.HitlRequired)
}

func TestDriveNonRetriableTripEscalatesImmediately(t *testing.T) {
	bad := validPayload()
	bad.Risk = models.RiskAssessment{Level: models.RiskHigh}

	model := &fakeModelClient{payloads: []*models.AnswerPayload{bad, validPayload()}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.Equal(t, 1, result.Attempts)
	assert.True(t, result.Escalated)
	assert.Equal(t, GuardrailRiskFlag, result.Violation.Kind)
	assert.Equal(t, 1, model.calls)
}

func TestDriveBindingLanguageSynthesizesGazetteCitation(t *testing.T) {
	bad := validPayload()
	bad.Jurisdiction = "MA"
	bad.Citations = []models.Citation{{URL: "https://www.sgg.gov.ma/BulletinOfficiel.aspx"}}

	model := &fakeModelClient{payloads: []*models.AnswerPayload{bad}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.True(t, result.Escalated)
	require.NotNil(t, result.Payload)
	require.Len(t, result.Payload.Citations, 1)
	assert.Contains(t, result.Payload.Citations[0].URL, "sgg.gov.ma")
	assert.True(t, result.Payload.Citations[0].Binding)
	assert.Contains(t, result.Payload.Citations[0].Note, "arabe")
	assert.True(t, result.Payload.Risk.HitlRequired)
}

func TestDriveBudgetErrorEscalatesAsToolBudget(t *testing.T) {
	model := &fakeModelClient{errs: []error{&ToolBudgetExceededError{Tool: ToolWebSearch, Allowed: 0}}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.True(t, result.Escalated)
	require.NotNil(t, result.Violation)
	assert.Equal(t, GuardrailToolBudget, result.Violation.Kind)
	assert.Contains(t, result.Payload.Risk.Reasons, string(GuardrailToolBudget))
}

func TestDriveModelErrorEscalatesAsModelFailure(t *testing.T) {
	model := &fakeModelClient{errs: []error{ErrModelExhausted}}
	controller := NewGuardrailController(DefaultRuleSet(), model)

	result := controller.Drive(context.Background(), ModelRequest{Instructions: "question"})

	assert.True(t, result.Escalated)
	assert.Equal(t, GuardrailModelFailure, result.Violation.Kind)
	assert.True(t, result.Payload.Risk.HitlRequired)
}
