package service

import (
	"strings"

	"lexflow-backend/models"
)

// VerifyPayload runs the post-hoc verification pass over a successfully
// produced payload. It checks structural completeness and citation compliance,
// collecting severity-tagged notes. Any critical note, or a payload already at
// HIGH risk or marked for human review, sets hitl_escalated. Any non-info note
// raises the payload's risk to at least MEDIUM and marks it for human review:
// verification can only escalate, never downgrade.
func VerifyPayload(rules *RuleSet, payload *models.AnswerPayload, routing models.RoutingResult) models.VerificationResult {
	result := models.VerificationResult{Status: models.VerificationPassed}

	note := func(code, message string, severity models.NoteSeverity) {
		result.Notes = append(result.Notes, models.VerificationNote{
			Code:     code,
			Message:  message,
			Severity: severity,
		})
	}

	if strings.TrimSpace(payload.Issue) == "" {
		note("missing_issue", "the answer states no legal issue", models.SeverityWarning)
	}
	if len(payload.Rules) == 0 || allBlank(payload.Rules) {
		note("empty_rules", "the answer cites no legal rules", models.SeverityCritical)
	}
	if strings.TrimSpace(payload.Application) == "" {
		note("missing_application", "the answer contains no application of the rules to the facts", models.SeverityWarning)
	}
	if strings.TrimSpace(payload.Conclusion) == "" {
		note("missing_conclusion", "the answer reaches no conclusion", models.SeverityWarning)
	}

	violations := AllowlistViolations(rules, payload.Citations)
	result.AllowlistViolations = violations

	switch {
	case len(payload.Citations) == 0:
		note("no_citations", "the answer carries no citations", models.SeverityCritical)
	case countAllowlisted(rules, payload.Citations) == 0:
		note("no_allowlisted_citations", "none of the citations resolve to an allow-listed domain", models.SeverityCritical)
	case len(violations) > 0:
		note("non_allowlisted_citation",
			"citations resolve outside the official allowlist: "+strings.Join(violations, ", "),
			models.SeverityCritical)
	}

	if len(payload.Citations) > 0 && countBinding(payload.Citations) == 0 {
		note("no_binding_citations", "no citation points at a legally authoritative text", models.SeverityWarning)
	}

	if routing.Primary == nil && payload.Jurisdiction == "" {
		note("unresolved_jurisdiction", "no jurisdiction could be resolved for the question", models.SeverityWarning)
	}

	escalate := payload.Risk.Level == models.RiskHigh || payload.Risk.HitlRequired
	for _, n := range result.Notes {
		if n.Severity == models.SeverityCritical {
			escalate = true
		}
		if n.Severity != models.SeverityInfo {
			payload.Risk.Level = payload.Risk.Level.AtLeast(models.RiskMedium)
			payload.Risk.HitlRequired = true
		}
	}

	if escalate {
		result.Status = models.VerificationEscalated
	}

	return result
}

func allBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// countAllowlisted counts the citations whose host resolves to an
// allow-listed domain.
func countAllowlisted(rules *RuleSet, citations []models.Citation) int {
	n := 0
	for _, c := range citations {
		host := citationHost(c.URL)
		if host == "" {
			continue
		}
		for _, domain := range rules.AllowedDomains {
			if hostMatchesDomain(host, domain) {
				n++
				break
			}
		}
	}
	return n
}

func countBinding(citations []models.Citation) int {
	n := 0
	for _, c := range citations {
		if c.Binding {
			n++
		}
	}
	return n
}
