package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lexflow-backend/models"

	"github.com/google/uuid"
)

// forceHitlThreshold: any cited case scoring below this forces human review
const forceHitlThreshold = 55

// axisWeights combine the eight sub-scores into the 0-100 case score
var axisWeights = map[models.QualityAxis]float64{
	models.AxisTrustTier:        0.20,
	models.AxisCourtRank:        0.15,
	models.AxisJurisdictionFit:  0.15,
	models.AxisPoliticalRisk:    0.10,
	models.AxisBindingLanguage:  0.10,
	models.AxisRecency:          0.10,
	models.AxisTreatment:        0.10,
	models.AxisStatuteAlignment: 0.10,
}

// CaseQualityOutcome is the run-level result of scoring all cited case law
type CaseQualityOutcome struct {
	Summaries []models.CaseQualitySummary
	ForceHitl bool
}

// CaseQualityAggregator scores cited judicial decisions along eight axes,
// folds in persisted overrides and historical hard blocks, and persists a new
// version row per evaluation. Independent of, and composable with, the
// verification engine's own escalation.
type CaseQualityAggregator struct {
	sources SourceStore
	scores  CaseScoreStore
	rules   *RuleSet
	now     func() time.Time
}

// NewCaseQualityAggregator creates an aggregator over the source and score stores
func NewCaseQualityAggregator(rules *RuleSet, sources SourceStore, scores CaseScoreStore) *CaseQualityAggregator {
	return &CaseQualityAggregator{
		sources: sources,
		scores:  scores,
		rules:   rules,
		now:     time.Now,
	}
}

// caseSignals bundles the four per-case signal sets fetched concurrently
type caseSignals struct {
	treatments []models.CaseTreatment
	alignments []models.StatuteAlignment
	risks      []models.RiskSignal
	override   *models.ScoreOverride
	latest     *models.CaseQualitySummary
}

func (a *CaseQualityAggregator) fetchSignals(ctx context.Context, sourceID uuid.UUID) (*caseSignals, error) {
	signals := &caseSignals{}
	var wg sync.WaitGroup
	errs := make([]error, 5)

	wg.Add(5)
	go func() {
		defer wg.Done()
		signals.treatments, errs[0] = a.scores.Treatments(ctx, sourceID)
	}()
	go func() {
		defer wg.Done()
		signals.alignments, errs[1] = a.scores.StatuteAlignments(ctx, sourceID)
	}()
	go func() {
		defer wg.Done()
		signals.risks, errs[2] = a.scores.RiskSignals(ctx, sourceID)
	}()
	go func() {
		defer wg.Done()
		signals.override, errs[3] = a.scores.Override(ctx, sourceID)
	}()
	go func() {
		defer wg.Done()
		signals.latest, errs[4] = a.scores.Latest(ctx, sourceID)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return signals, nil
}

// Evaluate scores every cited URL that resolves to a judicial decision and
// persists a new score version per case. ForceHitl is raised when any cited
// case is hard-blocked or scores below the threshold, regardless of the
// model's own risk assessment.
func (a *CaseQualityAggregator) Evaluate(
	ctx context.Context,
	payload *models.AnswerPayload,
	hint *models.JurisdictionHint,
) (*CaseQualityOutcome, error) {
	outcome := &CaseQualityOutcome{}
	scored := make(map[uuid.UUID]bool)

	for _, citation := range payload.Citations {
		source, err := a.sources.GetByURL(ctx, citation.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cited source %s: %w", citation.URL, err)
		}
		if source == nil || source.SourceType != models.SourceJudicialDecision || scored[source.ID] {
			continue
		}
		scored[source.ID] = true

		signals, err := a.fetchSignals(ctx, source.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load quality signals for %s: %w", citation.URL, err)
		}

		summary := a.score(source, signals, hint)
		if err := a.scores.InsertVersion(ctx, &summary); err != nil {
			return nil, fmt.Errorf("failed to persist case score for %s: %w", citation.URL, err)
		}

		if summary.HardBlock || summary.Score < forceHitlThreshold {
			outcome.ForceHitl = true
		}
		outcome.Summaries = append(outcome.Summaries, summary)
	}

	return outcome, nil
}

func (a *CaseQualityAggregator) score(
	source *models.LegalSource,
	signals *caseSignals,
	hint *models.JurisdictionHint,
) models.CaseQualitySummary {
	axes := models.AxisScores{
		models.AxisTrustTier:        trustTierScore(source.TrustTier),
		models.AxisCourtRank:        courtRankScore(source.CourtRank),
		models.AxisJurisdictionFit:  jurisdictionFitScore(source, hint),
		models.AxisPoliticalRisk:    politicalRiskScore(signals.risks),
		models.AxisBindingLanguage:  bindingLanguageScore(source),
		models.AxisRecency:          recencyScore(source.DecidedAt, a.now()),
		models.AxisTreatment:        treatmentScore(signals.treatments),
		models.AxisStatuteAlignment: statuteAlignmentScore(signals.alignments),
	}

	score := 0.0
	for axis, sub := range axes {
		score += sub * axisWeights[axis]
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	summary := models.CaseQualitySummary{
		SourceID:          source.ID,
		URL:               source.URL,
		Score:             score,
		AxisScores:        axes,
		Treatments:        signals.treatments,
		StatuteAlignments: signals.alignments,
		RiskSignals:       signals.risks,
		EvaluatedAt:       a.now(),
		Version:           1,
	}

	if signals.latest != nil {
		summary.Version = signals.latest.Version + 1
		if signals.latest.HardBlock {
			summary.HardBlock = true
			summary.Notes = append(summary.Notes, "hard block carried over from a prior evaluation")
		}
	}

	for _, treatment := range signals.treatments {
		if treatment.Signal == "overruled" {
			summary.HardBlock = true
			summary.Notes = append(summary.Notes, "decision overruled by "+treatment.CitedBy)
		}
	}

	if signals.override != nil {
		if signals.override.Score != nil {
			summary.Score = *signals.override.Score
			summary.Notes = append(summary.Notes, "score overridden: "+signals.override.Reason)
		}
		if signals.override.HardBlock {
			summary.HardBlock = true
			summary.Notes = append(summary.Notes, "hard block override: "+signals.override.Reason)
		}
	}

	return summary
}

func trustTierScore(tier models.TrustTier) float64 {
	switch tier {
	case models.TierT1:
		return 100
	case models.TierT2:
		return 85
	case models.TierT3:
		return 65
	case models.TierT4:
		return 40
	}
	return 40
}

func courtRankScore(rank *int) float64 {
	if rank == nil {
		return 50
	}
	switch *rank {
	case 1:
		return 100
	case 2:
		return 80
	case 3:
		return 60
	}
	return 45
}

func jurisdictionFitScore(source *models.LegalSource, hint *models.JurisdictionHint) float64 {
	if hint == nil {
		return 50
	}
	if source.Jurisdiction == hint.Country {
		return 100
	}
	if hint.EuMember && source.Jurisdiction == "EU" {
		return 80
	}
	if hint.OhadaMember && source.Jurisdiction == "OHADA" {
		return 80
	}
	return 40
}

func politicalRiskScore(risks []models.RiskSignal) float64 {
	score := 100.0
	for _, risk := range risks {
		if risk.Severity == "critical" {
			score -= 40
		} else {
			score -= 20
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func bindingLanguageScore(source *models.LegalSource) float64 {
	if source.BindingLanguage == nil {
		return 70
	}
	if *source.BindingLanguage == "fr" {
		return 100
	}
	return 55
}

func recencyScore(decidedAt *time.Time, now time.Time) float64 {
	if decidedAt == nil {
		return 60
	}
	age := now.Sub(*decidedAt)
	switch {
	case age < 5*365*24*time.Hour:
		return 100
	case age < 10*365*24*time.Hour:
		return 85
	case age < 20*365*24*time.Hour:
		return 70
	}
	return 50
}

func treatmentScore(treatments []models.CaseTreatment) float64 {
	score := 70.0
	for _, treatment := range treatments {
		switch treatment.Signal {
		case "followed":
			score += 10
		case "distinguished":
			score -= 5
		case "criticized":
			score -= 15
		case "overruled":
			return 0
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func statuteAlignmentScore(alignments []models.StatuteAlignment) float64 {
	if len(alignments) == 0 {
		return 50
	}
	total := 0.0
	for _, alignment := range alignments {
		total += alignment.Confidence
	}
	return total / float64(len(alignments)) * 100
}
