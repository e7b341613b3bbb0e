package service

import (
	"context"
	"testing"
	"time"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func supremeDecision() *models.LegalSource {
	rank := 1
	lang := "fr"
	decided := time.Now().Add(-2 * 365 * 24 * time.Hour)
	return &models.LegalSource{
		ID:              uuid.New(),
		URL:             "https://www.courdecassation.fr/decision/999",
		Title:           "Cass. com., 5 juin 2024",
		SourceType:      models.SourceJudicialDecision,
		TrustTier:       models.TierT2,
		Jurisdiction:    "FR",
		CourtRank:       &rank,
		BindingLanguage: &lang,
		DecidedAt:       &decided,
	}
}

func aggregatorWith(source *models.LegalSource, scores *fakeCaseScoreStore) *CaseQualityAggregator {
	sources := &fakeSourceStore{byURL: map[string]*models.LegalSource{source.URL: source}}
	return NewCaseQualityAggregator(DefaultRuleSet(), sources, scores)
}

func citedPayload(url string) *models.AnswerPayload {
	payload := validPayload()
	payload.Citations = []models.Citation{{URL: url, Binding: true}}
	return payload
}

func TestEvaluateScoresSupremeDecisionHigh(t *testing.T) {
	source := supremeDecision()
	scores := &fakeCaseScoreStore{
		treatments: map[uuid.UUID][]models.CaseTreatment{
			source.ID: {{SourceID: source.ID, Signal: "followed", CitedBy: "CA Paris"}},
		},
		alignments: map[uuid.UUID][]models.StatuteAlignment{
			source.ID: {{SourceID: source.ID, StatuteRef: "eli/loi/2024/1", Confidence: 0.9}},
		},
	}
	aggregator := aggregatorWith(source, scores)

	hint := &models.JurisdictionHint{Country: "FR", EuMember: true}
	outcome, err := aggregator.Evaluate(context.Background(), citedPayload(source.URL), hint)
	require.NoError(t, err)

	require.Len(t, outcome.Summaries, 1)
	summary := outcome.Summaries[0]
	assert.False(t, outcome.ForceHitl)
	assert.False(t, summary.HardBlock)
	assert.GreaterOrEqual(t, summary.Score, float64(forceHitlThreshold))
	assert.Equal(t, 1, summary.Version)
	assert.Len(t, summary.AxisScores, 8)

	// Every evaluation persists a new version row
	require.Len(t, scores.inserted, 1)
	assert.Equal(t, source.ID, scores.inserted[0].SourceID)
}

func TestEvaluateLowScoreForcesHitl(t *testing.T) {
	source := supremeDecision()
	source.TrustTier = models.TierT4
	rank := 9
	source.CourtRank = &rank
	old := time.Now().Add(-30 * 365 * 24 * time.Hour)
	source.DecidedAt = &old
	ar := "ar"
	source.BindingLanguage = &ar

	scores := &fakeCaseScoreStore{
		treatments: map[uuid.UUID][]models.CaseTreatment{
			source.ID: {
				{SourceID: source.ID, Signal: "criticized", CitedBy: "CA Lyon"},
				{SourceID: source.ID, Signal: "criticized", CitedBy: "CA Douai"},
			},
		},
		risks: map[uuid.UUID][]models.RiskSignal{
			source.ID: {{SourceID: source.ID, Kind: "political_pressure", Severity: "critical"}},
		},
	}
	aggregator := aggregatorWith(source, scores)

	outcome, err := aggregator.Evaluate(context.Background(), citedPayload(source.URL), nil)
	require.NoError(t, err)

	require.Len(t, outcome.Summaries, 1)
	assert.Less(t, outcome.Summaries[0].Score, float64(forceHitlThreshold))
	assert.True(t, outcome.ForceHitl)
}

func TestEvaluateOverruledTreatmentHardBlocks(t *testing.T) {
	source := supremeDecision()
	scores := &fakeCaseScoreStore{
		treatments: map[uuid.UUID][]models.CaseTreatment{
			source.ID: {{SourceID: source.ID, Signal: "overruled", CitedBy: "Cass. ass. plén."}},
		},
	}
	aggregator := aggregatorWith(source, scores)

	outcome, err := aggregator.Evaluate(context.Background(), citedPayload(source.URL), nil)
	require.NoError(t, err)

	require.Len(t, outcome.Summaries, 1)
	assert.True(t, outcome.Summaries[0].HardBlock)
	assert.True(t, outcome.ForceHitl)
	assert.Contains(t, outcome.Summaries[0].Notes[0], "overruled by")
}

func TestEvaluateVersionIncrementsAndCarriesHardBlock(t *testing.T) {
	source := supremeDecision()
	scores := &fakeCaseScoreStore{
		latest: map[uuid.UUID]*models.CaseQualitySummary{
			source.ID: {SourceID: source.ID, Score: 80, HardBlock: true, Version: 3},
		},
	}
	aggregator := aggregatorWith(source, scores)

	outcome, err := aggregator.Evaluate(context.Background(), citedPayload(source.URL), nil)
	require.NoError(t, err)

	require.Len(t, outcome.Summaries, 1)
	assert.Equal(t, 4, outcome.Summaries[0].Version)
	assert.True(t, outcome.Summaries[0].HardBlock)
	assert.True(t, outcome.ForceHitl)
}

func TestEvaluateOverrideReplacesScore(t *testing.T) {
	source := supremeDecision()
	overrideScore := 20.0
	scores := &fakeCaseScoreStore{
		overrides: map[uuid.UUID]*models.ScoreOverride{
			source.ID: {SourceID: source.ID, Score: &overrideScore, Reason: "revue interne"},
		},
	}
	aggregator := aggregatorWith(source, scores)

	outcome, err := aggregator.Evaluate(context.Background(), citedPayload(source.URL), nil)
	require.NoError(t, err)

	require.Len(t, outcome.Summaries, 1)
	assert.Equal(t, 20.0, outcome.Summaries[0].Score)
	assert.True(t, outcome.ForceHitl)
	assert.Contains(t, outcome.Summaries[0].Notes[0], "revue interne")
}

func TestEvaluateIgnoresNonJudicialCitations(t *testing.T) {
	statute := statuteSource(models.TierT1)
	scores := &fakeCaseScoreStore{}
	sources := &fakeSourceStore{byURL: map[string]*models.LegalSource{statute.URL: statute}}
	aggregator := NewCaseQualityAggregator(DefaultRuleSet(), sources, scores)

	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: statute.URL},
		{URL: "https://www.courdecassation.fr/decision/inconnue"},
	}

	outcome, err := aggregator.Evaluate(context.Background(), payload, nil)
	require.NoError(t, err)

	assert.Empty(t, outcome.Summaries)
	assert.False(t, outcome.ForceHitl)
	assert.Empty(t, scores.inserted)
}

func TestEvaluateDeduplicatesRepeatedCitations(t *testing.T) {
	source := supremeDecision()
	scores := &fakeCaseScoreStore{}
	aggregator := aggregatorWith(source, scores)

	payload := validPayload()
	payload.Citations = []models.Citation{
		{URL: source.URL},
		{URL: source.URL},
	}

	outcome, err := aggregator.Evaluate(context.Background(), payload, nil)
	require.NoError(t, err)

	assert.Len(t, outcome.Summaries, 1)
	assert.Len(t, scores.inserted, 1)
}

func TestJurisdictionFitPrefersExactThenRegional(t *testing.T) {
	source := supremeDecision()

	exact := &models.JurisdictionHint{Country: "FR", EuMember: true}
	assert.Equal(t, 100.0, jurisdictionFitScore(source, exact))

	euSource := *source
	euSource.Jurisdiction = "EU"
	belgian := &models.JurisdictionHint{Country: "BE", EuMember: true}
	assert.Equal(t, 80.0, jurisdictionFitScore(&euSource, belgian))

	foreign := &models.JurisdictionHint{Country: "CH"}
	assert.Equal(t, 40.0, jurisdictionFitScore(&euSource, foreign))

	assert.Equal(t, 50.0, jurisdictionFitScore(source, nil))
}

func TestTreatmentScoreClampsAtZero(t *testing.T) {
	treatments := []models.CaseTreatment{
		{Signal: "criticized"}, {Signal: "criticized"}, {Signal: "criticized"},
		{Signal: "criticized"}, {Signal: "criticized"},
	}
	assert.Equal(t, 0.0, treatmentScore(treatments))
}
