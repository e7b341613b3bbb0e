package service

import (
	"regexp"

	"lexflow-backend/models"
)

// BindingLanguageRule describes the legally authoritative language of a
// jurisdiction's official texts
type BindingLanguageRule struct {
	Language                string
	RequiresOriginalConsult bool // binding text is not French; the original must be consulted
}

// JurisdictionRule is one entry of the fixed routing rule table
type JurisdictionRule struct {
	Country     string
	EuMember    bool
	OhadaMember bool
	Rationale   string
	Patterns    []*regexp.Regexp
}

// OhadaTopicRule maps question vocabulary to the governing uniform act
type OhadaTopicRule struct {
	Pattern   *regexp.Regexp
	Reference string
}

// RuleSet is the immutable, versioned configuration every run executes against.
// Loaded once at process start and passed by reference; never mutated.
type RuleSet struct {
	PolicyVersion    string
	ConsentVersion   string
	AllowedDomains   []string
	StatuteDomains   []string
	DomainCountries  map[string]string
	Jurisdictions    []JurisdictionRule
	OhadaTopics      []OhadaTopicRule
	BindingLanguages map[string]BindingLanguageRule
	ToolAllowances   map[string]int
	TierWeights      map[models.TrustTier]float64
}

// Tool names the pipeline can declare to the model
const (
	ToolVectorSearch   = "vector_search"
	ToolDocSearch      = "doc_search"
	ToolWebSearch      = "web_search"
	ToolCaseTreatments = "case_treatments"
	ToolOhadaTopic     = "ohada_topic"
)

// defaultAllowance applies to tools introduced by an agent profile that have
// no entry in the default table
const defaultAllowance = 2

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile("(?i)"+p))
	}
	return compiled
}

// DefaultRuleSet builds the process-wide rule configuration
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		PolicyVersion:  "2026-02",
		ConsentVersion: "consent-v3",

		AllowedDomains: []string{
			"legifrance.gouv.fr",
			"courdecassation.fr",
			"conseil-etat.fr",
			"conseil-constitutionnel.fr",
			"eur-lex.europa.eu",
			"curia.europa.eu",
			"ejustice.just.fgov.be",
			"legilux.public.lu",
			"fedlex.admin.ch",
			"ohada.org",
			"juricaf.org",
			"sgg.gov.ma",
			"iort.gov.tn",
		},

		// Statutory/consolidated-text publishers, used by the statute-first check
		StatuteDomains: []string{
			"legifrance.gouv.fr",
			"eur-lex.europa.eu",
			"ejustice.just.fgov.be",
			"legilux.public.lu",
			"fedlex.admin.ch",
			"sgg.gov.ma",
			"iort.gov.tn",
		},

		DomainCountries: map[string]string{
			"legifrance.gouv.fr":         "FR",
			"courdecassation.fr":         "FR",
			"conseil-etat.fr":            "FR",
			"conseil-constitutionnel.fr": "FR",
			"eur-lex.europa.eu":          "EU",
			"curia.europa.eu":            "EU",
			"ejustice.just.fgov.be":      "BE",
			"legilux.public.lu":          "LU",
			"fedlex.admin.ch":            "CH",
			"ohada.org":                  "OHADA",
			"juricaf.org":                "FR",
			"sgg.gov.ma":                 "MA",
			"iort.gov.tn":                "TN",
		},

		Jurisdictions: defaultJurisdictionRules(),
		OhadaTopics:   defaultOhadaTopics(),

		BindingLanguages: map[string]BindingLanguageRule{
			"FR":    {Language: "fr"},
			"BE":    {Language: "fr"},
			"LU":    {Language: "fr"},
			"CH":    {Language: "fr"},
			"EU":    {Language: "fr"}, // all EU language versions are equally authentic
			"OHADA": {Language: "fr"},
			"MA":    {Language: "ar", RequiresOriginalConsult: true},
			"TN":    {Language: "ar", RequiresOriginalConsult: true},
			"DZ":    {Language: "ar", RequiresOriginalConsult: true},
		},

		ToolAllowances: map[string]int{
			ToolVectorSearch:   6,
			ToolDocSearch:      4,
			ToolWebSearch:      2,
			ToolCaseTreatments: 4,
			ToolOhadaTopic:     2,
		},

		TierWeights: map[models.TrustTier]float64{
			models.TierT1: 1.0,
			models.TierT2: 0.85,
			models.TierT3: 0.7,
			models.TierT4: 0.5,
		},
	}
}

// BindingRuleFor resolves the binding-language rule for a country code
func (rs *RuleSet) BindingRuleFor(country string) (BindingLanguageRule, bool) {
	rule, ok := rs.BindingLanguages[country]
	return rule, ok
}

// CountryForHost maps a citation host to the jurisdiction that publishes it
func (rs *RuleSet) CountryForHost(host string) (string, bool) {
	for domain, country := range rs.DomainCountries {
		if hostMatchesDomain(host, domain) {
			return country, true
		}
	}
	return "", false
}
