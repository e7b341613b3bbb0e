package service

import (
	"sort"
	"strings"

	"lexflow-backend/models"
)

// ohadaMemberStates are the member-state names the regional rule also matches
var ohadaMemberStates = []string{
	"Bénin",
	"Burkina Faso",
	"Cameroun",
	"République centrafricaine",
	"Centrafrique",
	"Comores",
	"Congo",
	"République démocratique du Congo",
	"Côte d'Ivoire",
	"Gabon",
	"Guinée",
	"Guinée-Bissau",
	"Guinée équatoriale",
	"Mali",
	"Niger",
	"Sénégal",
	"Tchad",
	"Togo",
}

func defaultJurisdictionRules() []JurisdictionRule {
	ohadaPatterns := []string{
		`\bohada\b`,
		`acte\s+uniforme`,
		`\bccja\b`,
	}
	for _, state := range ohadaMemberStates {
		ohadaPatterns = append(ohadaPatterns, `\b`+strings.ToLower(state)+`\b`)
	}

	return []JurisdictionRule{
		{
			Country:   "FR",
			EuMember:  true,
			Rationale: "références au droit français",
			Patterns: compileAll(
				`\bfrance\b`,
				`\bfrançais(e|es)?\b`,
				`\bcode civil\b`,
				`cour de cassation`,
				`conseil d'[ée]tat`,
				`l[ée]gifrance`,
			),
		},
		{
			Country:   "BE",
			EuMember:  true,
			Rationale: "références au droit belge",
			Patterns: compileAll(
				`\bbelgique\b`,
				`\bbelge(s)?\b`,
				`moniteur belge`,
			),
		},
		{
			Country:   "LU",
			EuMember:  true,
			Rationale: "références au droit luxembourgeois",
			Patterns: compileAll(
				`\bluxembourg\b`,
				`\bluxembourgeois(e)?\b`,
				`\bl[ée]gilux\b`,
			),
		},
		{
			Country:   "CH",
			Rationale: "références au droit suisse",
			Patterns: compileAll(
				`\bsuisse\b`,
				`tribunal f[ée]d[ée]ral`,
				`code des obligations`,
			),
		},
		{
			Country:   "MA",
			Rationale: "références au droit marocain",
			Patterns: compileAll(
				`\bmaroc\b`,
				`\bmarocain(e)?\b`,
				`bulletin officiel`,
				`\bdahir\b`,
			),
		},
		{
			Country:   "TN",
			Rationale: "références au droit tunisien",
			Patterns: compileAll(
				`\btunisie\b`,
				`\btunisien(ne)?\b`,
				`\bjort\b`,
			),
		},
		{
			Country:   "EU",
			EuMember:  true,
			Rationale: "références au droit de l'Union européenne",
			Patterns: compileAll(
				`union europ[ée]enne`,
				`\bdirective\b`,
				`r[èe]glement \(ue\)`,
				`\brgpd\b`,
				`\bcjue\b`,
				`eur-lex`,
			),
		},
		{
			Country:     "OHADA",
			OhadaMember: true,
			Rationale:   "références au droit uniforme OHADA ou à un État membre",
			Patterns:    compileAll(ohadaPatterns...),
		},
	}
}

func defaultOhadaTopics() []OhadaTopicRule {
	return []OhadaTopicRule{
		{
			Pattern:   compileAll(`\bgage\b|\bnantissement\b|\bhypoth[èe]que\b|\bcautionnement\b|\bs[ûu]ret[ée]s?\b`)[0],
			Reference: "Acte uniforme portant organisation des sûretés (AUS)",
		},
		{
			Pattern:   compileAll(`\bsoci[ée]t[ée]s?\b|\bsarl\b|\bgie\b|\bstatuts\b`)[0],
			Reference: "Acte uniforme relatif au droit des sociétés commerciales et du GIE (AUSCGIE)",
		},
		{
			Pattern:   compileAll(`\bcommer[cç]ant\b|bail commercial|fonds de commerce|vente commerciale`)[0],
			Reference: "Acte uniforme portant sur le droit commercial général (AUDCG)",
		},
		{
			Pattern:   compileAll(`\brecouvrement\b|\bsaisie\b|injonction de payer`)[0],
			Reference: "Acte uniforme portant organisation des procédures simplifiées de recouvrement et des voies d'exécution (AUPSRVE)",
		},
		{
			Pattern:   compileAll(`\bfaillite\b|\bliquidation\b|redressement|proc[ée]dures? collectives?`)[0],
			Reference: "Acte uniforme portant organisation des procédures collectives d'apurement du passif (AUPC)",
		},
		{
			Pattern:   compileAll(`\barbitrage\b`)[0],
			Reference: "Acte uniforme relatif au droit de l'arbitrage (AUA)",
		},
	}
}

// RouteJurisdiction scores a question against the fixed rule table and returns
// ranked jurisdiction hints. Pure: no rule matching is a valid outcome, not an
// error.
func RouteJurisdiction(rules *RuleSet, question, supplemental string) models.RoutingResult {
	text := question
	if supplemental != "" {
		text += "\n" + supplemental
	}

	var candidates []models.JurisdictionHint
	for _, rule := range rules.Jurisdictions {
		matches := 0
		for _, pattern := range rule.Patterns {
			if pattern.MatchString(text) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		confidence := 0.4 + 0.2*float64(matches)
		if confidence > 1 {
			confidence = 1
		}

		candidates = append(candidates, models.JurisdictionHint{
			Country:     rule.Country,
			EuMember:    rule.EuMember,
			OhadaMember: rule.OhadaMember,
			Confidence:  confidence,
			Rationale:   rule.Rationale,
		})
	}

	// Stable sort keeps rule-table order on equal confidence
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	result := models.RoutingResult{Candidates: candidates}
	if len(candidates) > 0 {
		result.Primary = &candidates[0]
	} else {
		result.Warnings = append(result.Warnings, "no jurisdiction rule matched; answering without a binding jurisdiction")
	}

	return result
}

// ResolveOhadaTopic maps question vocabulary to the governing OHADA uniform act
func ResolveOhadaTopic(rules *RuleSet, question string) (string, bool) {
	for _, topic := range rules.OhadaTopics {
		if topic.Pattern.MatchString(question) {
			return topic.Reference, true
		}
	}
	return "", false
}
