package repository

import (
	"context"
	"errors"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LegalSourceRepository handles database operations for legal sources
type LegalSourceRepository struct {
	db *pgxpool.Pool
}

// NewLegalSourceRepository creates a new legal source repository
func NewLegalSourceRepository(db *pgxpool.Pool) *LegalSourceRepository {
	return &LegalSourceRepository{db: db}
}

const sourceColumns = `
	id, org_id, url, title, source_type, trust_tier, jurisdiction,
	eli, ecli, binding_language, residency_zone, article_count,
	court_rank, decided_at, remote_file_id, created_at`

func scanSource(row pgx.Row) (*models.LegalSource, error) {
	source := &models.LegalSource{}
	err := row.Scan(
		&source.ID,
		&source.OrgID,
		&source.URL,
		&source.Title,
		&source.SourceType,
		&source.TrustTier,
		&source.Jurisdiction,
		&source.ELI,
		&source.ECLI,
		&source.BindingLanguage,
		&source.ResidencyZone,
		&source.ArticleCount,
		&source.CourtRank,
		&source.DecidedAt,
		&source.RemoteFileID,
		&source.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// GetByID retrieves a legal source by ID
func (r *LegalSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LegalSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM legal_sources WHERE id = $1`
	return scanSource(r.db.QueryRow(ctx, query, id))
}

// GetByURL retrieves a legal source by its canonical URL. Returns nil without
// error when the URL is not indexed.
func (r *LegalSourceRepository) GetByURL(ctx context.Context, url string) (*models.LegalSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM legal_sources WHERE url = $1`
	source, err := scanSource(r.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return source, err
}

// GetByRemoteFileID retrieves a legal source by the opaque id it carries in
// the remote search back-end. Returns nil without error when unknown.
func (r *LegalSourceRepository) GetByRemoteFileID(ctx context.Context, fileID string) (*models.LegalSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM legal_sources WHERE remote_file_id = $1`
	source, err := scanSource(r.db.QueryRow(ctx, query, fileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return source, err
}

// Create inserts a legal source, used by corpus seeding
func (r *LegalSourceRepository) Create(ctx context.Context, source *models.LegalSource) error {
	query := `
		INSERT INTO legal_sources (
			org_id, url, title, source_type, trust_tier, jurisdiction,
			eli, ecli, binding_language, residency_zone, article_count,
			court_rank, decided_at, remote_file_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		source.OrgID,
		source.URL,
		source.Title,
		source.SourceType,
		source.TrustTier,
		source.Jurisdiction,
		source.ELI,
		source.ECLI,
		source.BindingLanguage,
		source.ResidencyZone,
		source.ArticleCount,
		source.CourtRank,
		source.DecidedAt,
		source.RemoteFileID,
	).Scan(&source.ID, &source.CreatedAt)
}
