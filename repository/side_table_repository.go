package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SideTableRepository handles the non-critical per-run persistence surfaces:
// tool invocation logs, retrieval snapshots, citation rows, compliance rows
// and the HITL queue
type SideTableRepository struct {
	db *pgxpool.Pool
}

// NewSideTableRepository creates a new side table repository
func NewSideTableRepository(db *pgxpool.Pool) *SideTableRepository {
	return &SideTableRepository{db: db}
}

// InsertToolInvocations logs the tool calls made during a run
func (r *SideTableRepository) InsertToolInvocations(ctx context.Context, runID uuid.UUID, invocations []models.ToolInvocation) error {
	batch := &pgx.Batch{}
	for _, inv := range invocations {
		batch.Queue(`
			INSERT INTO tool_invocations (id, run_id, tool, arguments, succeeded, called_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			inv.ID, runID, inv.Tool, inv.Arguments, inv.Succeeded, inv.CalledAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range invocations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert tool invocation: %w", err)
		}
	}
	return nil
}

// InsertSnippets stores the ranked retrieval snapshot for a run. For
// confidential runs the raw content is replaced by its SHA-256 digest, so the
// snapshot stays auditable without retaining client material.
func (r *SideTableRepository) InsertSnippets(ctx context.Context, runID uuid.UUID, snippets []models.HybridSnippet, confidential bool) error {
	batch := &pgx.Batch{}
	for rank, snippet := range snippets {
		content := snippet.Content
		if confidential {
			sum := sha256.Sum256([]byte(snippet.Content))
			content = "sha256:" + hex.EncodeToString(sum[:])
		}
		batch.Queue(`
			INSERT INTO run_snippets (
				run_id, rank, content, similarity, weight, origin,
				source_id, source_url, trust_tier
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, rank, content, snippet.Similarity, snippet.Weight,
			snippet.Origin, snippet.SourceID, snippet.SourceURL, snippet.TrustTier)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range snippets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert run snippet: %w", err)
		}
	}
	return nil
}

// InsertCitations stores the payload citations for a run
func (r *SideTableRepository) InsertCitations(ctx context.Context, runID uuid.UUID, citations []models.Citation) error {
	batch := &pgx.Batch{}
	for _, citation := range citations {
		batch.Queue(`
			INSERT INTO run_citations (run_id, url, title, binding, note)
			VALUES ($1, $2, $3, $4, $5)`,
			runID, citation.URL, citation.Title, citation.Binding, citation.Note)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range citations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert run citation: %w", err)
		}
	}
	return nil
}

// InsertCompliance stores the compliance assessment row for a run
func (r *SideTableRepository) InsertCompliance(ctx context.Context, runID uuid.UUID, assessment models.ComplianceAssessment) error {
	query := `
		INSERT INTO run_compliance (run_id, assessment)
		VALUES ($1, $2)
		ON CONFLICT (run_id) DO UPDATE SET assessment = EXCLUDED.assessment`

	_, err := r.db.Exec(ctx, query, runID, assessment)
	return err
}

// EnqueueHitl adds an escalated run to the human review queue
func (r *SideTableRepository) EnqueueHitl(ctx context.Context, entry *models.HitlEntry) error {
	query := `
		INSERT INTO hitl_queue (id, run_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return r.db.QueryRow(ctx, query, entry.ID, entry.RunID, entry.Reason, entry.Status).
		Scan(&entry.CreatedAt)
}

// ListOpenHitl retrieves the unclaimed review queue, oldest first
func (r *SideTableRepository) ListOpenHitl(ctx context.Context, limit int) ([]models.HitlEntry, error) {
	query := `
		SELECT id, run_id, reason, status, created_at, claimed_by
		FROM hitl_queue
		WHERE status = 'open'
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query HITL queue: %w", err)
	}
	defer rows.Close()

	var entries []models.HitlEntry
	for rows.Next() {
		var entry models.HitlEntry
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Reason, &entry.Status, &entry.CreatedAt, &entry.ClaimedBy); err != nil {
			return nil, fmt.Errorf("failed to scan HITL entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
