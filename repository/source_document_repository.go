package repository

import (
	"context"

	"lexflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceDocumentRepository handles database operations for archived source documents
type SourceDocumentRepository struct {
	db *pgxpool.Pool
}

// NewSourceDocumentRepository creates a new source document repository
func NewSourceDocumentRepository(db *pgxpool.Pool) *SourceDocumentRepository {
	return &SourceDocumentRepository{db: db}
}

// Create creates a new source document record
func (r *SourceDocumentRepository) Create(ctx context.Context, doc *models.SourceDocument) error {
	query := `
		INSERT INTO source_documents (
			org_id, source_id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.OrgID,
		doc.SourceID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
	).Scan(&doc.ID, &doc.CreatedAt)

	return err
}

// GetByID retrieves a source document by ID
func (r *SourceDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceDocument, error) {
	doc := &models.SourceDocument{}
	query := `
		SELECT id, org_id, source_id, filename, mime_type, size, storage_path, created_at
		FROM source_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.OrgID,
		&doc.SourceID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListBySourceID retrieves all archived documents backing a legal source
func (r *SourceDocumentRepository) ListBySourceID(ctx context.Context, sourceID uuid.UUID) ([]*models.SourceDocument, error) {
	query := `
		SELECT id, org_id, source_id, filename, mime_type, size, storage_path, created_at
		FROM source_documents
		WHERE source_id = $1
		ORDER BY created_at DESC`

	return r.list(ctx, query, sourceID)
}

// ListByOrgID retrieves all archived documents for an organization
func (r *SourceDocumentRepository) ListByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.SourceDocument, error) {
	query := `
		SELECT id, org_id, source_id, filename, mime_type, size, storage_path, created_at
		FROM source_documents
		WHERE org_id = $1
		ORDER BY created_at DESC`

	return r.list(ctx, query, orgID)
}

func (r *SourceDocumentRepository) list(ctx context.Context, query string, arg interface{}) ([]*models.SourceDocument, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.SourceDocument
	for rows.Next() {
		doc := &models.SourceDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.OrgID,
			&doc.SourceID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete deletes a source document record
func (r *SourceDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM source_documents WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
