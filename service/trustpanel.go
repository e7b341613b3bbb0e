package service

import (
	"sort"

	"lexflow-backend/models"
)

// BuildTrustPanel assembles the client-facing trust summary for one run. It
// only aggregates facts already computed upstream; nothing is re-derived.
func BuildTrustPanel(
	rules *RuleSet,
	payload *models.AnswerPayload,
	snippets []models.HybridSnippet,
	caseSummaries []models.CaseQualitySummary,
	verification models.VerificationResult,
	compliance models.ComplianceAssessment,
	forceHitl bool,
) models.TrustPanel {
	panel := models.TrustPanel{
		Verification: verification,
		Compliance:   compliance,
		ForceHitl:    forceHitl,
	}

	panel.Citations = citationStats(payload.Citations, verification.AllowlistViolations)
	panel.Retrieval = retrievalStats(snippets)
	panel.CaseQuality = caseQualityStats(caseSummaries)

	return panel
}

func citationStats(citations []models.Citation, violations []string) models.CitationStats {
	stats := models.CitationStats{
		Total:          len(citations),
		NonAllowlisted: violations,
	}
	stats.Allowlisted = stats.Total - len(violations)
	if stats.Allowlisted < 0 {
		stats.Allowlisted = 0
	}
	if stats.Total > 0 {
		stats.AllowlistRatio = float64(stats.Allowlisted) / float64(stats.Total)
	}

	counts := make(map[string]int)
	for _, citation := range citations {
		if host := citationHost(citation.URL); host != "" {
			counts[host]++
		}
	}
	hosts := make([]string, 0, len(counts))
	for host := range counts {
		hosts = append(hosts, host)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if counts[hosts[i]] != counts[hosts[j]] {
			return counts[hosts[i]] > counts[hosts[j]]
		}
		return hosts[i] < hosts[j]
	})
	if len(hosts) > 5 {
		hosts = hosts[:5]
	}
	stats.TopHosts = hosts

	return stats
}

func retrievalStats(snippets []models.HybridSnippet) models.RetrievalStats {
	stats := models.RetrievalStats{}
	zones := make(map[string]bool)
	languages := make(map[string]bool)

	for _, snippet := range snippets {
		switch snippet.Origin {
		case models.OriginLocal:
			stats.LocalCount++
		case models.OriginRemote:
			stats.RemoteCount++
		}
		if snippet.ELI != nil {
			stats.EliCoverage++
		}
		if snippet.ECLI != nil {
			stats.EcliCoverage++
		}
		if snippet.ResidencyZone != nil {
			zones[*snippet.ResidencyZone] = true
		}
		if snippet.BindingLanguage != nil {
			languages[*snippet.BindingLanguage] = true
		}
	}

	stats.ResidencyZones = sortedKeys(zones)
	stats.BindingLanguages = sortedKeys(languages)
	return stats
}

func caseQualityStats(summaries []models.CaseQualitySummary) models.CaseQualityStats {
	stats := models.CaseQualityStats{ScoredCases: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}

	stats.MinScore = summaries[0].Score
	stats.MaxScore = summaries[0].Score
	signals := make(map[string]bool)
	statutes := make(map[string]bool)
	risks := make(map[string]bool)

	for _, summary := range summaries {
		if summary.Score < stats.MinScore {
			stats.MinScore = summary.Score
		}
		if summary.Score > stats.MaxScore {
			stats.MaxScore = summary.Score
		}
		if summary.HardBlock {
			stats.HardBlockedCases++
		}
		for _, treatment := range summary.Treatments {
			signals[treatment.Signal] = true
		}
		for _, alignment := range summary.StatuteAlignments {
			statutes[alignment.StatuteRef] = true
		}
		for _, risk := range summary.RiskSignals {
			risks[risk.Kind] = true
		}
	}

	stats.TreatmentSignals = sortedKeys(signals)
	stats.StatuteRefs = sortedKeys(statutes)
	stats.RiskSignalKinds = sortedKeys(risks)
	return stats
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
