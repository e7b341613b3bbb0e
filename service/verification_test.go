package service

import (
	"testing"

	"lexflow-backend/models"

	"github.com/stretchr/testify/assert"
)

func frRouting() models.RoutingResult {
	hint := models.JurisdictionHint{Country: "FR", EuMember: true, Confidence: 0.6}
	return models.RoutingResult{Primary: &hint, Candidates: []models.JurisdictionHint{hint}}
}

func noteCodes(result models.VerificationResult) []string {
	codes := make([]string, 0, len(result.Notes))
	for _, n := range result.Notes {
		codes = append(codes, n.Code)
	}
	return codes
}

func TestVerifyCleanPayloadPasses(t *testing.T) {
	payload := validPayload()

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationPassed, result.Status)
	assert.Empty(t, result.Notes)
	assert.Equal(t, models.RiskLow, payload.Risk.Level)
	assert.False(t, payload.Risk.HitlRequired)
}

func TestVerifyAnyNonAllowlistedCitationEscalates(t *testing.T) {
	payload := validPayload()
	payload.Citations = append(payload.Citations, models.Citation{URL: "https://blog.example.com/note"})

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationEscalated, result.Status)
	assert.Contains(t, noteCodes(result), "non_allowlisted_citation")
	assert.Contains(t, result.AllowlistViolations, "blog.example.com")
	assert.True(t, payload.Risk.HitlRequired)
}

func TestVerifyAllCitationsOffAllowlistIsExhaustive(t *testing.T) {
	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: "https://blog.example.com/note"},
		{URL: "https://blog.example.com/autre"},
		{URL: "https://forum.example.org/fil"},
	}

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationEscalated, result.Status)
	assert.Contains(t, noteCodes(result), "no_allowlisted_citations")
	assert.NotContains(t, noteCodes(result), "non_allowlisted_citation")
	assert.ElementsMatch(t, []string{"blog.example.com", "forum.example.org"}, result.AllowlistViolations)
}

func TestVerifyNoCitationsIsCritical(t *testing.T) {
	payload := validPayload()
	payload.Citations = nil

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationEscalated, result.Status)
	assert.Contains(t, noteCodes(result), "no_citations")
}

func TestVerifyEmptyRulesIsCritical(t *testing.T) {
	payload := validPayload()
	payload.Rules = []string{"  ", ""}

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationEscalated, result.Status)
	assert.Contains(t, noteCodes(result), "empty_rules")
}

func TestVerifyWarningsRaiseRiskWithoutCritical(t *testing.T) {
	payload := validPayload()
	payload.Conclusion = ""

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	// A lone warning does not escalate, but it does force review
	assert.Equal(t, models.VerificationPassed, result.Status)
	assert.Contains(t, noteCodes(result), "missing_conclusion")
	assert.Equal(t, models.RiskMedium, payload.Risk.Level)
	assert.True(t, payload.Risk.HitlRequired)
}

func TestVerifyNeverDowngradesHighRisk(t *testing.T) {
	payload := validPayload()
	payload.Risk = models.RiskAssessment{Level: models.RiskHigh, HitlRequired: true}
	payload.Conclusion = ""

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Equal(t, models.VerificationEscalated, result.Status)
	assert.Equal(t, models.RiskHigh, payload.Risk.Level)
}

func TestVerifyNoBindingCitationWarns(t *testing.T) {
	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: "https://www.legifrance.gouv.fr/eli/loi/2024/1", Binding: false},
	}

	result := VerifyPayload(DefaultRuleSet(), payload, frRouting())

	assert.Contains(t, noteCodes(result), "no_binding_citations")
}

func TestVerifyUnresolvedJurisdictionWarns(t *testing.T) {
	payload := validPayload()
	payload.Jurisdiction = ""

	routing := models.RoutingResult{Warnings: []string{"no jurisdiction rule matched"}}
	result := VerifyPayload(DefaultRuleSet(), payload, routing)

	assert.Contains(t, noteCodes(result), "unresolved_jurisdiction")
}

func TestVerifyDeclaredJurisdictionSuppressesWarning(t *testing.T) {
	payload := validPayload() // declares FR

	routing := models.RoutingResult{}
	result := VerifyPayload(DefaultRuleSet(), payload, routing)

	assert.NotContains(t, noteCodes(result), "unresolved_jurisdiction")
}
