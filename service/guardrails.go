package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lexflow-backend/models"
)

// GuardrailKind tags which rule a candidate output tripped. Guardrails are
// identified by tagged variants, never by parsing error text.
type GuardrailKind string

const (
	GuardrailCitationAllowlist GuardrailKind = "citation_allowlist"
	GuardrailBindingLanguage   GuardrailKind = "binding_language"
	GuardrailStructure         GuardrailKind = "structure"
	GuardrailRiskFlag          GuardrailKind = "risk_flag"
	GuardrailToolBudget        GuardrailKind = "tool_budget"
	GuardrailModelFailure      GuardrailKind = "model_failure"
)

// Retriable reports whether a trip of this kind may be retried with an
// adjusted prompt. Only citation-allowlist trips are recoverable: the model
// can be told the allowed domains and asked again.
func (k GuardrailKind) Retriable() bool {
	return k == GuardrailCitationAllowlist
}

// GuardrailViolation describes one tripped guardrail
type GuardrailViolation struct {
	Kind    GuardrailKind
	Message string
	Domains []string // offending citation hosts, for allowlist trips
}

func hostMatchesDomain(host, domain string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// citationHost extracts the lowercased host of a citation URL, empty when the
// URL does not parse
func citationHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// AllowlistViolations returns the hosts of citations that do not resolve to an
// allow-listed domain
func AllowlistViolations(rules *RuleSet, citations []models.Citation) []string {
	var violations []string
	seen := make(map[string]bool)
	for _, citation := range citations {
		host := citationHost(citation.URL)
		if host == "" {
			if !seen[citation.URL] {
				seen[citation.URL] = true
				violations = append(violations, citation.URL)
			}
			continue
		}
		allowed := false
		for _, domain := range rules.AllowedDomains {
			if hostMatchesDomain(host, domain) {
				allowed = true
				break
			}
		}
		if !allowed && !seen[host] {
			seen[host] = true
			violations = append(violations, host)
		}
	}
	return violations
}

// bindingJurisdiction resolves which jurisdiction's binding-language rule
// applies to a payload: its declared jurisdiction first, else the publisher
// of its citations.
func bindingJurisdiction(rules *RuleSet, payload *models.AnswerPayload) (string, bool) {
	if payload.Jurisdiction != "" {
		if _, ok := rules.BindingRuleFor(payload.Jurisdiction); ok {
			return payload.Jurisdiction, true
		}
	}
	for _, citation := range payload.Citations {
		host := citationHost(citation.URL)
		if host == "" {
			continue
		}
		if country, ok := rules.CountryForHost(host); ok {
			if rule, ok := rules.BindingRuleFor(country); ok && rule.RequiresOriginalConsult {
				return country, true
			}
		}
	}
	return "", false
}

// EvaluateGuardrails runs the four post-generation checks over a candidate
// payload and returns the first violation, or nil when all pass
func EvaluateGuardrails(rules *RuleSet, payload *models.AnswerPayload) *GuardrailViolation {
	if domains := AllowlistViolations(rules, payload.Citations); len(domains) > 0 {
		return &GuardrailViolation{
			Kind:    GuardrailCitationAllowlist,
			Message: fmt.Sprintf("citations resolve outside the allowlist: %s", strings.Join(domains, ", ")),
			Domains: domains,
		}
	}

	if country, ok := bindingJurisdiction(rules, payload); ok {
		if rule, found := rules.BindingRuleFor(country); found && rule.RequiresOriginalConsult && !payload.Risk.HitlRequired {
			return &GuardrailViolation{
				Kind:    GuardrailBindingLanguage,
				Message: fmt.Sprintf("jurisdiction %s binds in %q; the original text must be consulted under human review", country, rule.Language),
			}
		}
	}

	if strings.TrimSpace(payload.Issue) == "" ||
		len(payload.Rules) == 0 ||
		strings.TrimSpace(payload.Application) == "" ||
		strings.TrimSpace(payload.Conclusion) == "" {
		return &GuardrailViolation{
			Kind:    GuardrailStructure,
			Message: "answer is missing one or more structural sections (issue, rules, application, conclusion)",
		}
	}

	if payload.Risk.Level == models.RiskHigh && !payload.Risk.HitlRequired {
		return &GuardrailViolation{
			Kind:    GuardrailRiskFlag,
			Message: "HIGH risk answers must carry hitl_required",
		}
	}

	return nil
}

// maxModelAttempts bounds the retry state machine
const maxModelAttempts = 2

// DriveResult is the terminal outcome of the guardrail-controlled model drive.
// The controller always yields a valid structured payload: terminal guardrail
// trips synthesize an escalation payload instead of propagating a failure.
type DriveResult struct {
	Payload             *models.AnswerPayload
	Attempts            int
	Escalated           bool
	Violation           *GuardrailViolation
	AllowlistViolations []string
}

// GuardrailController drives the language-model execution under the four
// guardrails with bounded retries
type GuardrailController struct {
	model ModelClient
	rules *RuleSet
}

// NewGuardrailController creates a controller over a model client
func NewGuardrailController(rules *RuleSet, model ModelClient) *GuardrailController {
	return &GuardrailController{model: model, rules: rules}
}

// driveState is the explicit attempt state machine:
// attempting(n) -> succeeded | attempting(n+1) | escalated
type driveState int

const (
	stateAttempting driveState = iota
	stateSucceeded
	stateEscalated
)

// Drive runs the model up to maxModelAttempts times. A retriable trip
// augments the prompt with the allowed domains and re-enters attempting;
// anything else transitions to escalated and synthesizes a terminal payload.
func (g *GuardrailController) Drive(ctx context.Context, req ModelRequest) *DriveResult {
	result := &DriveResult{}
	instructions := req.Instructions

	state := stateAttempting
	for state == stateAttempting {
		result.Attempts++

		attempt := req
		attempt.Instructions = instructions
		payload, err := g.model.Execute(ctx, attempt)

		if err != nil {
			var budgetErr *ToolBudgetExceededError
			kind := GuardrailModelFailure
			if errors.As(err, &budgetErr) {
				kind = GuardrailToolBudget
			}
			result.Violation = &GuardrailViolation{Kind: kind, Message: err.Error()}
			state = stateEscalated
			continue
		}

		violation := EvaluateGuardrails(g.rules, payload)
		if violation == nil {
			result.Payload = payload
			state = stateSucceeded
			continue
		}

		result.Violation = violation
		if violation.Kind == GuardrailCitationAllowlist {
			result.AllowlistViolations = appendUnique(result.AllowlistViolations, violation.Domains)
		}

		if violation.Kind.Retriable() && result.Attempts < maxModelAttempts {
			instructions = instructions + "\n\n" + allowlistReminder(g.rules)
			continue // stays in stateAttempting
		}

		state = stateEscalated
	}

	if state == stateEscalated {
		result.Escalated = true
		result.Payload = g.synthesizeEscalation(result.Violation)
	}

	return result
}

func appendUnique(existing []string, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range more {
		if !seen[v] {
			seen[v] = true
			existing = append(existing, v)
		}
	}
	return existing
}

func allowlistReminder(rules *RuleSet) string {
	return fmt.Sprintf(
		"RAPPEL: chaque citation doit pointer vers un domaine officiel autorisé. Domaines autorisés: %s. Remplacez toute citation hors liste.",
		strings.Join(rules.AllowedDomains, ", "),
	)
}

// synthesizeEscalation builds the terminal escalation payload for a guardrail
// trip that cannot be retried. The run still completes with a structured,
// explainable answer.
func (g *GuardrailController) synthesizeEscalation(violation *GuardrailViolation) *models.AnswerPayload {
	payload := &models.AnswerPayload{
		Application: "La génération automatique a été interrompue par un garde-fou. Le dossier est transmis à la file de revue humaine.",
		Conclusion:  "Réponse suspendue dans l'attente d'une revue humaine.",
		Risk: models.RiskAssessment{
			Level:        models.RiskHigh,
			HitlRequired: true,
			Reasons:      []string{string(violation.Kind)},
		},
	}

	switch violation.Kind {
	case GuardrailCitationAllowlist:
		payload.Issue = "Les citations produites ne se rattachent pas toutes à des sources officielles autorisées."
		payload.Rules = []string{"Chaque citation doit résoudre vers un domaine de publication officiel de la liste autorisée."}
		if len(violation.Domains) > 0 {
			payload.Issue += " Domaines en cause: " + strings.Join(violation.Domains, ", ") + "."
		}
	case GuardrailBindingLanguage:
		payload.Issue = "La juridiction visée publie son texte faisant foi dans une langue autre que le français."
		payload.Rules = []string{"Lorsque le texte faisant foi n'est pas en français, l'original doit être consulté avant toute conclusion."}
		payload.Citations = []models.Citation{{
			URL:     "https://www.sgg.gov.ma/BulletinOfficiel.aspx",
			Title:   "Bulletin officiel du Royaume du Maroc",
			Binding: true,
			Note:    "La version arabe du Bulletin officiel fait foi; la traduction française est indicative.",
		}}
	case GuardrailStructure:
		payload.Issue = "La réponse générée est structurellement incomplète."
		payload.Rules = []string{"Une analyse doit comporter les quatre sections: question, règles, application, conclusion."}
	case GuardrailRiskFlag:
		payload.Issue = "La réponse a été évaluée à risque élevé sans marquage de revue humaine."
		payload.Rules = []string{"Toute réponse à risque élevé doit être marquée pour revue humaine."}
	case GuardrailToolBudget:
		payload.Issue = "Le budget d'outils de l'exécution a été dépassé."
		payload.Rules = []string{"Chaque exécution dispose d'un budget borné d'appels d'outils; son dépassement interrompt la tentative."}
	default:
		payload.Issue = "L'exécution du modèle a échoué avant de produire une réponse conforme."
		payload.Rules = []string{"Une exécution doit toujours se terminer par une réponse structurée; à défaut, elle est escaladée."}
	}

	if violation.Message != "" {
		payload.Risk.Reasons = append(payload.Risk.Reasons, violation.Message)
	}

	return payload
}
