package service

import (
	"lexflow-backend/models"
)

// ApplyComplianceGate folds the jurisdiction-specific legal obligations and
// disclosure state into the payload. Any failed check forces escalation on the
// payload and produces user-visible notices; the assessment itself is
// persisted alongside the run.
func ApplyComplianceGate(
	rules *RuleSet,
	payload *models.AnswerPayload,
	routing models.RoutingResult,
	access models.AccessContext,
	caseSummaries []models.CaseQualitySummary,
) (models.ComplianceAssessment, []string) {
	var notices []string
	assessment := models.ComplianceAssessment{
		Cepej:   models.CepejAssessment{Passed: true},
		Statute: models.StatuteAssessment{Passed: true},
	}

	// FRIA: EU deployments of high-risk legal assistance require a
	// fundamental-rights impact assessment follow-up
	if routing.Primary != nil && routing.Primary.EuMember {
		if payload.Risk.Level == models.RiskHigh || payload.Risk.HitlRequired {
			assessment.Fria.Required = true
			assessment.Fria.Reasons = append(assessment.Fria.Reasons,
				"réponse à risque dans une juridiction de l'Union européenne")
			notices = append(notices, "Une analyse d'impact sur les droits fondamentaux (FRIA) est requise pour ce dossier.")
		}
	}

	// CEPEJ ethical-charter principles
	if len(payload.Citations) == 0 {
		assessment.Cepej.Passed = false
		assessment.Cepej.Violations = append(assessment.Cepej.Violations,
			"transparence: la réponse ne cite aucune source vérifiable")
	}
	if len(payload.Rules) == 0 {
		assessment.Cepej.Passed = false
		assessment.Cepej.Violations = append(assessment.Cepej.Violations,
			"qualité: la réponse n'expose aucune règle de droit")
	}

	// Statute-first: cited case law must rest on a statutory anchor
	if len(caseSummaries) > 0 && !hasStatutoryAnchor(rules, payload.Citations) {
		assessment.Statute.Passed = false
		assessment.Statute.Violations = append(assessment.Statute.Violations,
			"la jurisprudence citée n'est adossée à aucun texte de loi")
	}

	// Consent and professional-body disclosure acknowledgements
	assessment.Disclosures.ConsentSatisfied = access.ConsentVersion == rules.ConsentVersion
	assessment.Disclosures.CouncilSatisfied = access.CouncilDisclosureAck
	if !assessment.Disclosures.ConsentSatisfied {
		assessment.Disclosures.Missing = append(assessment.Disclosures.Missing, "consent:"+rules.ConsentVersion)
	}
	if !assessment.Disclosures.CouncilSatisfied {
		assessment.Disclosures.Missing = append(assessment.Disclosures.Missing, "council_disclosure")
	}

	failed := !assessment.Cepej.Passed || !assessment.Statute.Passed || len(assessment.Disclosures.Missing) > 0
	if failed {
		payload.Risk.Level = payload.Risk.Level.AtLeast(models.RiskMedium)
		payload.Risk.HitlRequired = true
		for _, violation := range assessment.Cepej.Violations {
			notices = append(notices, "CEPEJ: "+violation)
		}
		for _, violation := range assessment.Statute.Violations {
			notices = append(notices, "Alignement légal: "+violation)
		}
		for _, missing := range assessment.Disclosures.Missing {
			notices = append(notices, "Acquittement manquant: "+missing)
		}
	}

	return assessment, notices
}

// hasStatutoryAnchor reports whether at least one citation resolves to a
// statutory/consolidated-text publisher
func hasStatutoryAnchor(rules *RuleSet, citations []models.Citation) bool {
	for _, citation := range citations {
		host := citationHost(citation.URL)
		if host == "" {
			continue
		}
		for _, domain := range rules.StatuteDomains {
			if hostMatchesDomain(host, domain) {
				return true
			}
		}
	}
	return false
}
