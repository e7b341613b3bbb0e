package service

import (
	"context"

	"lexflow-backend/models"

	"github.com/google/uuid"
)

// Consumer-side views of the relational data store. The repository package
// provides the pgx implementations; the pipeline depends only on what it reads
// and writes.

// RunStore is the durable surface for run records. GetOrCreate is the single
// idempotent boundary: it tries the insert and, on a fingerprint conflict,
// reads the winning row instead.
type RunStore interface {
	GetOrCreate(ctx context.Context, run *models.ResearchRun) (*models.ResearchRun, bool, error)
	Finalize(ctx context.Context, run *models.ResearchRun) error
}

// ChunkSearcher is the local embedding-indexed search path
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, orgID uuid.UUID, embedding []float64, matchCount int, jurisdiction *string) ([]models.SourceChunk, error)
}

// SourceStore resolves legal-source metadata for retrieval joins and citations
type SourceStore interface {
	GetByURL(ctx context.Context, url string) (*models.LegalSource, error)
	GetByRemoteFileID(ctx context.Context, fileID string) (*models.LegalSource, error)
}

// CaseScoreStore is the versioned, append-only case-quality history plus the
// signal tables the aggregator folds in
type CaseScoreStore interface {
	Latest(ctx context.Context, sourceID uuid.UUID) (*models.CaseQualitySummary, error)
	InsertVersion(ctx context.Context, summary *models.CaseQualitySummary) error
	Override(ctx context.Context, sourceID uuid.UUID) (*models.ScoreOverride, error)
	Treatments(ctx context.Context, sourceID uuid.UUID) ([]models.CaseTreatment, error)
	StatuteAlignments(ctx context.Context, sourceID uuid.UUID) ([]models.StatuteAlignment, error)
	RiskSignals(ctx context.Context, sourceID uuid.UUID) ([]models.RiskSignal, error)
}

// SynonymStore reads learned lexical expansions for retrieval queries
type SynonymStore interface {
	ListByJurisdiction(ctx context.Context, jurisdiction string) ([]models.QuerySynonym, error)
}

// SideTableStore covers the non-critical persistence surfaces. Failures here
// are logged and swallowed; the primary run record is the only fatal write.
type SideTableStore interface {
	InsertToolInvocations(ctx context.Context, runID uuid.UUID, invocations []models.ToolInvocation) error
	InsertSnippets(ctx context.Context, runID uuid.UUID, snippets []models.HybridSnippet, confidential bool) error
	InsertCitations(ctx context.Context, runID uuid.UUID, citations []models.Citation) error
	InsertCompliance(ctx context.Context, runID uuid.UUID, assessment models.ComplianceAssessment) error
	EnqueueHitl(ctx context.Context, entry *models.HitlEntry) error
}
