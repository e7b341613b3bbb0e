package repository

import (
	"context"
	"errors"
	"fmt"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseScoreRepository handles the versioned case-quality score history and
// the signal tables feeding it
type CaseScoreRepository struct {
	db *pgxpool.Pool
}

// NewCaseScoreRepository creates a new case score repository
func NewCaseScoreRepository(db *pgxpool.Pool) *CaseScoreRepository {
	return &CaseScoreRepository{db: db}
}

// Latest retrieves the most recent score version for a source, nil when the
// source has never been scored
func (r *CaseScoreRepository) Latest(ctx context.Context, sourceID uuid.UUID) (*models.CaseQualitySummary, error) {
	query := `
		SELECT source_id, url, score, hard_block, version, notes, axis_scores, evaluated_at
		FROM case_quality_scores
		WHERE source_id = $1
		ORDER BY version DESC
		LIMIT 1`

	summary := &models.CaseQualitySummary{}
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&summary.SourceID,
		&summary.URL,
		&summary.Score,
		&summary.HardBlock,
		&summary.Version,
		&summary.Notes,
		&summary.AxisScores,
		&summary.EvaluatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest case score: %w", err)
	}
	return summary, nil
}

// InsertVersion appends a new score version. Rows are never updated; the
// history is the audit trail.
func (r *CaseScoreRepository) InsertVersion(ctx context.Context, summary *models.CaseQualitySummary) error {
	query := `
		INSERT INTO case_quality_scores (
			source_id, url, score, hard_block, version, notes, axis_scores, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(
		ctx, query,
		summary.SourceID,
		summary.URL,
		summary.Score,
		summary.HardBlock,
		summary.Version,
		summary.Notes,
		summary.AxisScores,
		summary.EvaluatedAt,
	)
	return err
}

// Override retrieves the manual score override for a source, nil when none
func (r *CaseScoreRepository) Override(ctx context.Context, sourceID uuid.UUID) (*models.ScoreOverride, error) {
	query := `
		SELECT source_id, score, hard_block, reason, created_at
		FROM case_score_overrides
		WHERE source_id = $1`

	override := &models.ScoreOverride{}
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&override.SourceID,
		&override.Score,
		&override.HardBlock,
		&override.Reason,
		&override.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read score override: %w", err)
	}
	return override, nil
}

// Treatments retrieves the citing-court treatment signals for a source
func (r *CaseScoreRepository) Treatments(ctx context.Context, sourceID uuid.UUID) ([]models.CaseTreatment, error) {
	query := `
		SELECT id, source_id, signal, cited_by, noted_at, reference
		FROM case_treatments
		WHERE source_id = $1
		ORDER BY noted_at DESC`

	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query case treatments: %w", err)
	}
	defer rows.Close()

	var treatments []models.CaseTreatment
	for rows.Next() {
		var t models.CaseTreatment
		if err := rows.Scan(&t.ID, &t.SourceID, &t.Signal, &t.CitedBy, &t.NotedAt, &t.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan case treatment: %w", err)
		}
		treatments = append(treatments, t)
	}

	return treatments, rows.Err()
}

// StatuteAlignments retrieves the statute links for a source
func (r *CaseScoreRepository) StatuteAlignments(ctx context.Context, sourceID uuid.UUID) ([]models.StatuteAlignment, error) {
	query := `
		SELECT id, source_id, statute_ref, confidence
		FROM statute_alignments
		WHERE source_id = $1`

	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query statute alignments: %w", err)
	}
	defer rows.Close()

	var alignments []models.StatuteAlignment
	for rows.Next() {
		var a models.StatuteAlignment
		if err := rows.Scan(&a.ID, &a.SourceID, &a.StatuteRef, &a.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan statute alignment: %w", err)
		}
		alignments = append(alignments, a)
	}

	return alignments, rows.Err()
}

// RiskSignals retrieves the political and institutional risk flags for a source
func (r *CaseScoreRepository) RiskSignals(ctx context.Context, sourceID uuid.UUID) ([]models.RiskSignal, error) {
	query := `
		SELECT id, source_id, kind, severity, note
		FROM source_risk_signals
		WHERE source_id = $1`

	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk signals: %w", err)
	}
	defer rows.Close()

	var signals []models.RiskSignal
	for rows.Next() {
		var s models.RiskSignal
		if err := rows.Scan(&s.ID, &s.SourceID, &s.Kind, &s.Severity, &s.Note); err != nil {
			return nil, fmt.Errorf("failed to scan risk signal: %w", err)
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}
