package repository

import (
	"context"
	"fmt"

	"lexflow-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SynonymRepository handles database operations for query synonyms
type SynonymRepository struct {
	db *pgxpool.Pool
}

// NewSynonymRepository creates a new synonym repository
func NewSynonymRepository(db *pgxpool.Pool) *SynonymRepository {
	return &SynonymRepository{db: db}
}

// ListByJurisdiction retrieves the lexical expansions learned for a jurisdiction
func (r *SynonymRepository) ListByJurisdiction(ctx context.Context, jurisdiction string) ([]models.QuerySynonym, error) {
	query := `
		SELECT id, jurisdiction, term, expansion, created_at
		FROM query_synonyms
		WHERE jurisdiction = $1
		ORDER BY term`

	rows, err := r.db.Query(ctx, query, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("failed to query synonyms: %w", err)
	}
	defer rows.Close()

	var synonyms []models.QuerySynonym
	for rows.Next() {
		var s models.QuerySynonym
		if err := rows.Scan(&s.ID, &s.Jurisdiction, &s.Term, &s.Expansion, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan synonym: %w", err)
		}
		synonyms = append(synonyms, s)
	}

	return synonyms, rows.Err()
}

// Upsert stores a learned expansion, replacing any previous expansion for the
// same jurisdiction and term
func (r *SynonymRepository) Upsert(ctx context.Context, synonym *models.QuerySynonym) error {
	query := `
		INSERT INTO query_synonyms (jurisdiction, term, expansion)
		VALUES ($1, $2, $3)
		ON CONFLICT (jurisdiction, term) DO UPDATE SET expansion = EXCLUDED.expansion
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query, synonym.Jurisdiction, synonym.Term, synonym.Expansion).
		Scan(&synonym.ID, &synonym.CreatedAt)
}
