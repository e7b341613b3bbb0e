package service

import (
	"context"
	"sync"

	"lexflow-backend/models"

	"github.com/google/uuid"
)

// In-memory store doubles shared across the service tests.

type fakeEmbedder struct {
	vector []float64
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeChunkSearcher struct {
	chunks       []models.SourceChunk
	err          error
	jurisdiction *string
}

func (f *fakeChunkSearcher) SearchChunks(ctx context.Context, orgID uuid.UUID, embedding []float64, matchCount int, jurisdiction *string) ([]models.SourceChunk, error) {
	f.jurisdiction = jurisdiction
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeSourceStore struct {
	byURL    map[string]*models.LegalSource
	byFileID map[string]*models.LegalSource
}

func (f *fakeSourceStore) GetByURL(ctx context.Context, url string) (*models.LegalSource, error) {
	return f.byURL[url], nil
}

func (f *fakeSourceStore) GetByRemoteFileID(ctx context.Context, fileID string) (*models.LegalSource, error) {
	return f.byFileID[fileID], nil
}

type fakeCaseScoreStore struct {
	mu         sync.Mutex
	latest     map[uuid.UUID]*models.CaseQualitySummary
	overrides  map[uuid.UUID]*models.ScoreOverride
	treatments map[uuid.UUID][]models.CaseTreatment
	alignments map[uuid.UUID][]models.StatuteAlignment
	risks      map[uuid.UUID][]models.RiskSignal
	inserted   []*models.CaseQualitySummary
}

func (f *fakeCaseScoreStore) Latest(ctx context.Context, sourceID uuid.UUID) (*models.CaseQualitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[sourceID], nil
}

func (f *fakeCaseScoreStore) InsertVersion(ctx context.Context, summary *models.CaseQualitySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, summary)
	return nil
}

func (f *fakeCaseScoreStore) Override(ctx context.Context, sourceID uuid.UUID) (*models.ScoreOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overrides[sourceID], nil
}

func (f *fakeCaseScoreStore) Treatments(ctx context.Context, sourceID uuid.UUID) ([]models.CaseTreatment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.treatments[sourceID], nil
}

func (f *fakeCaseScoreStore) StatuteAlignments(ctx context.Context, sourceID uuid.UUID) ([]models.StatuteAlignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alignments[sourceID], nil
}

func (f *fakeCaseScoreStore) RiskSignals(ctx context.Context, sourceID uuid.UUID) ([]models.RiskSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.risks[sourceID], nil
}

type fakeSynonymStore struct {
	synonyms []models.QuerySynonym
	err      error
}

func (f *fakeSynonymStore) ListByJurisdiction(ctx context.Context, jurisdiction string) ([]models.QuerySynonym, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.synonyms, nil
}

type fakeRemoteClient struct {
	results []RemoteResult
	err     error
}

func (f *fakeRemoteClient) Search(ctx context.Context, query string, maxResults int) ([]RemoteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeRunStore struct {
	mu        sync.Mutex
	byPrint   map[string]*models.ResearchRun
	finalized *models.ResearchRun
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{byPrint: make(map[string]*models.ResearchRun)}
}

func (f *fakeRunStore) GetOrCreate(ctx context.Context, run *models.ResearchRun) (*models.ResearchRun, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byPrint[run.Fingerprint]; ok {
		return existing, false, nil
	}
	run.ID = uuid.New()
	f.byPrint[run.Fingerprint] = run
	return run, true, nil
}

func (f *fakeRunStore) Finalize(ctx context.Context, run *models.ResearchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = run
	return nil
}

type fakeSideTables struct {
	mu          sync.Mutex
	invocations []models.ToolInvocation
	snippets    []models.HybridSnippet
	snippetConf bool
	citations   []models.Citation
	compliance  *models.ComplianceAssessment
	hitl        []*models.HitlEntry
}

func (f *fakeSideTables) InsertToolInvocations(ctx context.Context, runID uuid.UUID, invocations []models.ToolInvocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invocations = append(f.invocations, invocations...)
	return nil
}

func (f *fakeSideTables) InsertSnippets(ctx context.Context, runID uuid.UUID, snippets []models.HybridSnippet, confidential bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snippets = append(f.snippets, snippets...)
	f.snippetConf = confidential
	return nil
}

func (f *fakeSideTables) InsertCitations(ctx context.Context, runID uuid.UUID, citations []models.Citation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.citations = append(f.citations, citations...)
	return nil
}

func (f *fakeSideTables) InsertCompliance(ctx context.Context, runID uuid.UUID, assessment models.ComplianceAssessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compliance = &assessment
	return nil
}

func (f *fakeSideTables) EnqueueHitl(ctx context.Context, entry *models.HitlEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hitl = append(f.hitl, entry)
	return nil
}

// fakeModelClient returns queued payloads or errors in order; each Execute
// call records the request it received
type fakeModelClient struct {
	payloads []*models.AnswerPayload
	errs     []error
	calls    int
	requests []ModelRequest
}

func (f *fakeModelClient) Execute(ctx context.Context, req ModelRequest) (*models.AnswerPayload, error) {
	f.requests = append(f.requests, req)
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.payloads) {
		return f.payloads[i], nil
	}
	return nil, ErrModelExhausted
}
