package service

import (
	"testing"

	"lexflow-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compliantAccess() models.AccessContext {
	return models.AccessContext{
		ConsentVersion:       "consent-v3",
		CouncilDisclosureAck: true,
	}
}

func TestComplianceGateCleanPayloadPasses(t *testing.T) {
	payload := validPayload()
	routing := frRouting()

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, routing, compliantAccess(), nil)

	assert.False(t, assessment.Fria.Required)
	assert.True(t, assessment.Cepej.Passed)
	assert.True(t, assessment.Statute.Passed)
	assert.True(t, assessment.Disclosures.ConsentSatisfied)
	assert.True(t, assessment.Disclosures.CouncilSatisfied)
	assert.Empty(t, notices)
	assert.Equal(t, models.RiskLow, payload.Risk.Level)
	assert.False(t, payload.Risk.HitlRequired)
}

func TestComplianceGateFriaRequiredForHighRiskInEu(t *testing.T) {
	payload := validPayload()
	payload.Risk.Level = models.RiskHigh
	routing := frRouting()

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, routing, compliantAccess(), nil)

	assert.True(t, assessment.Fria.Required)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "FRIA")
	// FRIA alone is a notice, not a failure
	assert.False(t, payload.Risk.HitlRequired)
}

func TestComplianceGateFriaRequiredOnHitlEvenAtLowRisk(t *testing.T) {
	payload := validPayload()
	payload.Risk.HitlRequired = true

	assessment, _ := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), nil)

	assert.True(t, assessment.Fria.Required)
}

func TestComplianceGateNoFriaOutsideEu(t *testing.T) {
	payload := validPayload()
	payload.Risk.Level = models.RiskHigh
	routing := models.RoutingResult{
		Primary: &models.JurisdictionHint{Country: "MA", Confidence: 0.8},
	}

	assessment, _ := ApplyComplianceGate(DefaultRuleSet(), payload, routing, compliantAccess(), nil)

	assert.False(t, assessment.Fria.Required)
}

func TestComplianceGateCepejViolationsEscalate(t *testing.T) {
	payload := validPayload()
	payload.Citations = nil
	payload.Rules = nil

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), nil)

	assert.False(t, assessment.Cepej.Passed)
	assert.Len(t, assessment.Cepej.Violations, 2)
	assert.Equal(t, models.RiskMedium, payload.Risk.Level)
	assert.True(t, payload.Risk.HitlRequired)

	require.Len(t, notices, 2)
	assert.Contains(t, notices[0], "CEPEJ: ")
	assert.Contains(t, notices[1], "CEPEJ: ")
}

func TestComplianceGateStatuteFirstRequiresAnchor(t *testing.T) {
	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: "https://www.courdecassation.fr/decision/123"},
	}
	summaries := []models.CaseQualitySummary{{URL: payload.Citations[0].URL, Score: 90}}

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), summaries)

	assert.False(t, assessment.Statute.Passed)
	assert.True(t, payload.Risk.HitlRequired)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "Alignement légal: ")
}

func TestComplianceGateStatuteFirstSatisfiedByStatutoryCitation(t *testing.T) {
	payload := validPayload()
	payload.Citations = append(payload.Citations, models.Citation{
		URL: "https://www.courdecassation.fr/decision/123",
	})
	summaries := []models.CaseQualitySummary{{URL: "https://www.courdecassation.fr/decision/123", Score: 90}}

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), summaries)

	assert.True(t, assessment.Statute.Passed)
	assert.Empty(t, notices)
}

func TestComplianceGateStatuteFirstSkippedWithoutCaseLaw(t *testing.T) {
	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: "https://www.courdecassation.fr/decision/123"},
	}

	assessment, _ := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), nil)

	assert.True(t, assessment.Statute.Passed)
}

func TestComplianceGateStaleConsentEscalates(t *testing.T) {
	payload := validPayload()
	access := compliantAccess()
	access.ConsentVersion = "consent-v2"

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), access, nil)

	assert.False(t, assessment.Disclosures.ConsentSatisfied)
	assert.Contains(t, assessment.Disclosures.Missing, "consent:consent-v3")
	assert.True(t, payload.Risk.HitlRequired)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "Acquittement manquant: consent:consent-v3")
}

func TestComplianceGateMissingCouncilDisclosureEscalates(t *testing.T) {
	payload := validPayload()
	access := compliantAccess()
	access.CouncilDisclosureAck = false

	assessment, notices := ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), access, nil)

	assert.False(t, assessment.Disclosures.CouncilSatisfied)
	assert.Contains(t, assessment.Disclosures.Missing, "council_disclosure")
	assert.True(t, payload.Risk.HitlRequired)
	assert.Contains(t, notices[len(notices)-1], "council_disclosure")
}

func TestComplianceGateNeverLowersExistingRisk(t *testing.T) {
	payload := validPayload()
	payload.Risk.Level = models.RiskHigh
	payload.Citations = nil

	ApplyComplianceGate(DefaultRuleSet(), payload, frRouting(), compliantAccess(), nil)

	assert.Equal(t, models.RiskHigh, payload.Risk.Level)
}
