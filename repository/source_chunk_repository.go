package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// embeddingDimension matches the Gemini embedding model output
const embeddingDimension = 768

// SourceChunkRepository handles database operations for embedded source chunks
type SourceChunkRepository struct {
	db *pgxpool.Pool
}

// NewSourceChunkRepository creates a new source chunk repository
func NewSourceChunkRepository(db *pgxpool.Pool) *SourceChunkRepository {
	return &SourceChunkRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SearchChunks performs a vector similarity search over the org's corpus plus
// the shared corpus, joined with source metadata. An optional jurisdiction
// narrows the source filter.
func (r *SourceChunkRepository) SearchChunks(
	ctx context.Context,
	orgID uuid.UUID,
	embedding []float64,
	matchCount int,
	jurisdiction *string,
) ([]models.SourceChunk, error) {
	if len(embedding) != embeddingDimension {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", embeddingDimension, len(embedding))
	}

	vectorStr := formatVector(embedding)

	jurisdictionFilter := ""
	args := []interface{}{vectorStr, orgID, matchCount}
	if jurisdiction != nil && *jurisdiction != "" {
		jurisdictionFilter = "AND s.jurisdiction = $4"
		args = append(args, *jurisdiction)
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			c.source_id,
			c.chunk_index,
			c.chunk_text,
			c.embedding <=> $1::vector AS distance,
			s.id,
			s.org_id,
			s.url,
			s.title,
			s.source_type,
			s.trust_tier,
			s.jurisdiction,
			s.eli,
			s.ecli,
			s.binding_language,
			s.residency_zone,
			s.article_count,
			s.court_rank,
			s.decided_at,
			s.remote_file_id,
			s.created_at
		FROM source_chunks c
		JOIN legal_sources s ON s.id = c.source_id
		WHERE
			(s.org_id = $2 OR s.org_id IS NULL)
			%s
		ORDER BY
			c.embedding <=> $1::vector
		LIMIT $3`, jurisdictionFilter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.SourceChunk
	for rows.Next() {
		var chunk models.SourceChunk
		source := &models.LegalSource{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.SourceID,
			&chunk.ChunkIndex,
			&chunk.Text,
			&chunk.Distance,
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
			return nil, fmt.Errorf("failed to scan source chunk: %w", err)
		}
		chunk.Source = source
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source chunks: %w", err)
	}

	return chunks, nil
}

// InsertChunk stores a text fragment without an embedding; the embedding is
// filled in later by the build-embeddings command
func (r *SourceChunkRepository) InsertChunk(ctx context.Context, chunk *models.SourceChunk) error {
	query := `
		INSERT INTO source_chunks (source_id, chunk_index, chunk_text)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id, chunk_index) DO NOTHING
		RETURNING id`

	err := r.db.QueryRow(ctx, query, chunk.SourceID, chunk.ChunkIndex, chunk.Text).Scan(&chunk.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

// ListMissingEmbeddings returns chunks whose embedding has not been computed
// yet, used by the build-embeddings command
func (r *SourceChunkRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SourceChunk, error) {
	query := `
		SELECT id, source_id, chunk_index, chunk_text
		FROM source_chunks
		WHERE embedding IS NULL
		ORDER BY source_id, chunk_index
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks without embeddings: %w", err)
	}
	defer rows.Close()

	var chunks []models.SourceChunk
	for rows.Next() {
		var chunk models.SourceChunk
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.ChunkIndex, &chunk.Text); err != nil {
			return nil, fmt.Errorf("failed to scan source chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// UpdateEmbedding stores a computed embedding on a chunk
func (r *SourceChunkRepository) UpdateEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float64) error {
	if len(embedding) != embeddingDimension {
		return fmt.Errorf("embedding must be %d dimensions, got %d", embeddingDimension, len(embedding))
	}

	query := `UPDATE source_chunks SET embedding = $2::vector WHERE id = $1`
	_, err := r.db.Exec(ctx, query, chunkID, formatVector(embedding))
	return err
}
