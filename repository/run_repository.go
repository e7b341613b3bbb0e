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

// RunRepository handles database operations for research runs
type RunRepository struct {
	db *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

// GetOrCreate inserts the run or, when another run already holds the same
// fingerprint, returns that run instead. The unique index on fingerprint is
// the arbiter: concurrent duplicates race on the insert and exactly one wins.
func (r *RunRepository) GetOrCreate(ctx context.Context, run *models.ResearchRun) (*models.ResearchRun, bool, error) {
	query := `
		INSERT INTO research_runs (
			org_id, user_id, fingerprint, question, context, confidential,
			agent_code, agent_settings, jurisdiction, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		run.OrgID,
		run.UserID,
		run.Fingerprint,
		run.Question,
		run.Context,
		run.Confidential,
		run.AgentCode,
		run.Settings,
		run.Jurisdiction,
		run.Status,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)

	if err == nil {
		return run, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert run: %w", err)
	}

	// Conflict path: the fingerprint already exists, read the winning row
	existing, err := r.GetByFingerprint(ctx, run.Fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read existing run: %w", err)
	}
	return existing, false, nil
}

// Finalize persists the completed pipeline outcome onto the run record
func (r *RunRepository) Finalize(ctx context.Context, run *models.ResearchRun) error {
	query := `
		UPDATE research_runs SET
			status = $2,
			payload = $3,
			plan = $4,
			verification = $5,
			compliance = $6,
			trust_panel = $7,
			force_hitl = $8,
			completed_at = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	return r.db.QueryRow(
		ctx, query,
		run.ID,
		run.Status,
		run.Payload,
		run.Plan,
		run.Verification,
		run.Compliance,
		run.Panel,
		run.ForceHitl,
		run.CompletedAt,
	).Scan(&run.UpdatedAt)
}

const runColumns = `
	id, org_id, user_id, fingerprint, question, context, confidential,
	agent_code, agent_settings, jurisdiction, status, payload, plan,
	verification, compliance, trust_panel, force_hitl,
	created_at, updated_at, completed_at`

func scanRun(row pgx.Row) (*models.ResearchRun, error) {
	run := &models.ResearchRun{}
	err := row.Scan(
		&run.ID,
		&run.OrgID,
		&run.UserID,
		&run.Fingerprint,
		&run.Question,
		&run.Context,
		&run.Confidential,
		&run.AgentCode,
		&run.Settings,
		&run.Jurisdiction,
		&run.Status,
		&run.Payload,
		&run.Plan,
		&run.Verification,
		&run.Compliance,
		&run.Panel,
		&run.ForceHitl,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResearchRun, error) {
	query := `SELECT ` + runColumns + ` FROM research_runs WHERE id = $1`
	return scanRun(r.db.QueryRow(ctx, query, id))
}

// GetByFingerprint retrieves a run by its duplicate-detection fingerprint
func (r *RunRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.ResearchRun, error) {
	query := `SELECT ` + runColumns + ` FROM research_runs WHERE fingerprint = $1`
	return scanRun(r.db.QueryRow(ctx, query, fingerprint))
}

// ListByOrgID retrieves recent runs for an organization
func (r *RunRepository) ListByOrgID(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.ResearchRun, error) {
	query := `SELECT ` + runColumns + `
		FROM research_runs
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ResearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
