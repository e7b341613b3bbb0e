package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"lexflow-backend/models"
	"lexflow-backend/storage"

	"github.com/google/uuid"
)

var (
	ErrMissingQuestion = errors.New("question is required")
	ErrRunStoreNotSet  = errors.New("run store not set")
	ErrModelNotSet     = errors.New("model client not set")
)

// RunService owns the run orchestration pipeline: routing, planning,
// retrieval, guarded model execution, verification, case-quality scoring,
// compliance and trust-panel assembly, persistence.
type RunService struct {
	rules      *RuleSet
	runs       RunStore
	sideTables SideTableStore
	retriever  *Retriever
	model      ModelClient
	aggregator *CaseQualityAggregator
	archive    storage.Storage
}

// RunServiceOption is a functional option for RunService
type RunServiceOption func(*RunService)

// RunWithRuleSet sets the immutable rule configuration
func RunWithRuleSet(rules *RuleSet) RunServiceOption {
	return func(s *RunService) { s.rules = rules }
}

// RunWithRunStore sets the run record store
func RunWithRunStore(store RunStore) RunServiceOption {
	return func(s *RunService) { s.runs = store }
}

// RunWithSideTableStore sets the non-critical persistence surfaces
func RunWithSideTableStore(store SideTableStore) RunServiceOption {
	return func(s *RunService) { s.sideTables = store }
}

// RunWithRetriever sets the hybrid retriever
func RunWithRetriever(retriever *Retriever) RunServiceOption {
	return func(s *RunService) { s.retriever = retriever }
}

// RunWithModelClient sets the language-model execution client
func RunWithModelClient(model ModelClient) RunServiceOption {
	return func(s *RunService) { s.model = model }
}

// RunWithCaseQualityAggregator sets the case-quality aggregator
func RunWithCaseQualityAggregator(aggregator *CaseQualityAggregator) RunServiceOption {
	return func(s *RunService) { s.aggregator = aggregator }
}

// RunWithArchive sets the review-bundle archive storage
func RunWithArchive(archive storage.Storage) RunServiceOption {
	return func(s *RunService) { s.archive = archive }
}

// NewRunService creates a new run orchestration service
func NewRunService(opts ...RunServiceOption) *RunService {
	s := &RunService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rules == nil {
		s.rules = DefaultRuleSet()
	}
	return s
}

// ExecuteRunRequest represents a request to execute one research run
type ExecuteRunRequest struct {
	OrgID         uuid.UUID
	UserID        uuid.UUID
	Question      string
	Context       *string
	Confidential  bool
	AgentCode     *string
	AgentSettings models.AgentSettings
	Access        models.AccessContext
}

// ExecuteRunResult represents the outcome returned to the caller
type ExecuteRunResult struct {
	RunID               uuid.UUID                    `json:"run_id"`
	Reused              bool                         `json:"reused"`
	Payload             *models.AnswerPayload        `json:"payload"`
	AllowlistViolations []string                     `json:"allowlist_violations,omitempty"`
	Plan                models.PlanSteps             `json:"plan"`
	Notices             []string                     `json:"notices,omitempty"`
	Verification        *models.VerificationResult   `json:"verification,omitempty"`
	TrustPanel          *models.TrustPanel           `json:"trust_panel,omitempty"`
	Compliance          *models.ComplianceAssessment `json:"compliance,omitempty"`
	Agent               *string                      `json:"agent,omitempty"`
}

// RunFingerprint derives the deterministic duplicate-detection key for a run.
// Two requests with the same org, user, question, context, confidentiality
// mode, jurisdiction, agent profile and tool/settings surface share one run.
func RunFingerprint(
	req ExecuteRunRequest,
	jurisdiction string,
	allowances map[string]int,
	policyVersion string,
) string {
	var b strings.Builder
	b.WriteString(req.OrgID.String())
	b.WriteString("|")
	b.WriteString(req.UserID.String())
	b.WriteString("|")
	b.WriteString(req.Question)
	b.WriteString("|")
	if req.Context != nil {
		b.WriteString(*req.Context)
	}
	b.WriteString("|")
	fmt.Fprintf(&b, "%t|%s|", req.Confidential, jurisdiction)
	if req.AgentCode != nil {
		b.WriteString(*req.AgentCode)
	}
	b.WriteString("|")

	// encoding/json sorts map keys, so settings serialize canonically
	if settings, err := json.Marshal(req.AgentSettings); err == nil {
		b.Write(settings)
	}
	b.WriteString("|")

	tools := make([]string, 0, len(allowances))
	for tool := range allowances {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		fmt.Fprintf(&b, "%s=%d;", tool, allowances[tool])
	}
	b.WriteString("|")
	b.WriteString(policyVersion)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// profileTools extracts the restricted tool set from agent settings, nil when
// the profile imposes no restriction
func profileTools(settings models.AgentSettings) []string {
	raw, ok := settings["tools"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	tools := make([]string, 0, len(list))
	for _, item := range list {
		if tool, ok := item.(string); ok {
			tools = append(tools, tool)
		}
	}
	return tools
}

// ExecuteRun runs the full orchestration pipeline for one question
func (s *RunService) ExecuteRun(ctx context.Context, req ExecuteRunRequest) (*ExecuteRunResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrMissingQuestion
	}
	if s.runs == nil {
		return nil, ErrRunStoreNotSet
	}
	if s.model == nil {
		return nil, ErrModelNotSet
	}

	// Routing is pure and cheap; it runs before run creation because the
	// fingerprint includes the resolved jurisdiction
	supplemental := ""
	if req.Context != nil {
		supplemental = *req.Context
	}
	routing := RouteJurisdiction(s.rules, req.Question, supplemental)

	jurisdiction := ""
	var jurisdictionPtr *string
	if routing.Primary != nil {
		jurisdiction = routing.Primary.Country
		jurisdictionPtr = &jurisdiction
	}

	ledger := NewToolBudgetLedger(s.rules, profileTools(req.AgentSettings), req.Confidential)
	fingerprint := RunFingerprint(req, jurisdiction, ledger.Allowances(), s.rules.PolicyVersion)

	run := &models.ResearchRun{
		OrgID:        req.OrgID,
		UserID:       req.UserID,
		Fingerprint:  fingerprint,
		Question:     req.Question,
		Context:      req.Context,
		Confidential: req.Confidential,
		AgentCode:    req.AgentCode,
		Settings:     req.AgentSettings,
		Jurisdiction: jurisdictionPtr,
		Status:       models.RunPending,
	}

	existing, created, err := s.runs.GetOrCreate(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if !created {
		// Duplicate run: reuse the persisted result without re-executing
		return resultFromRun(existing, true), nil
	}
	run = existing

	recorder := NewPlanRecorder()
	var notices []string
	notices = append(notices, routing.Warnings...)

	_, _ = recorder.Record("route", "Jurisdiction routing",
		"Score the question against the jurisdiction rule table",
		func() (interface{}, error) { return routing, nil },
		RecordDetail(func(interface{}) map[string]interface{} {
			detail := map[string]interface{}{"candidates": len(routing.Candidates)}
			if routing.Primary != nil {
				detail["primary"] = routing.Primary.Country
			}
			return detail
		}))

	// Retrieval is optional: a failure degrades to an empty context
	var snippets []models.HybridSnippet
	retrieved, _ := recorder.Record("retrieve", "Hybrid retrieval",
		"Merge local embedding search with the remote document back-end",
		func() (interface{}, error) {
			if s.retriever == nil {
				return []models.HybridSnippet{}, nil
			}
			return s.retriever.Retrieve(ctx, req.OrgID, req.Question, routing.Primary)
		},
		RecordOptional(),
		RecordDetail(func(result interface{}) map[string]interface{} {
			found, _ := result.([]models.HybridSnippet)
			return map[string]interface{}{"snippets": len(found)}
		}))
	if retrieved != nil {
		snippets = retrieved.([]models.HybridSnippet)
	}

	// Guarded model execution
	var invocations []models.ToolInvocation
	var invocationsMu sync.Mutex
	dispatcher := s.toolDispatcher(req.OrgID, run, ledger, routing.Primary, &invocations, &invocationsMu)

	controller := NewGuardrailController(s.rules, s.model)
	modelReq := ModelRequest{
		Instructions: s.composeInstructions(req, routing, snippets),
		Tools:        s.toolDeclarations(ledger),
		MaxTurns:     defaultMaxTurns,
		Dispatch:     dispatcher,
	}

	var drive *DriveResult
	_, _ = recorder.Record("generate", "Guarded model execution",
		"Drive the language model under guardrails with bounded retries",
		func() (interface{}, error) {
			drive = controller.Drive(ctx, modelReq)
			return drive, nil
		},
		RecordDetail(func(interface{}) map[string]interface{} {
			detail := map[string]interface{}{"escalated": drive.Escalated}
			if drive.Violation != nil {
				detail["guardrail"] = string(drive.Violation.Kind)
			}
			return detail
		}))
	recorder.Amend("generate", drive.Attempts, nil)

	payload := drive.Payload
	payload.Jurisdiction = jurisdiction

	// Verification runs only on genuinely produced payloads; synthesized
	// escalation payloads are already terminal
	var verification models.VerificationResult
	if drive.Escalated {
		verification = models.VerificationResult{
			Status: models.VerificationEscalated,
			Notes: []models.VerificationNote{{
				Code:     "guardrail_" + string(drive.Violation.Kind),
				Message:  drive.Violation.Message,
				Severity: models.SeverityCritical,
			}},
			AllowlistViolations: drive.AllowlistViolations,
		}
	} else {
		_, _ = recorder.Record("verify", "Verification pass",
			"Check structural completeness and citation compliance",
			func() (interface{}, error) {
				verification = VerifyPayload(s.rules, payload, routing)
				return verification, nil
			},
			RecordDetail(func(interface{}) map[string]interface{} {
				return map[string]interface{}{"status": string(verification.Status), "notes": len(verification.Notes)}
			}))
	}

	// Case-quality scoring completes before the payload is returned, so a
	// hard block discovered here is reflected in the response itself
	quality := &CaseQualityOutcome{}
	if s.aggregator != nil {
		scoredQuality, _ := recorder.Record("case_quality", "Case-quality scoring",
			"Score cited case law along the eight quality axes",
			func() (interface{}, error) {
				return s.aggregator.Evaluate(ctx, payload, routing.Primary)
			},
			RecordOptional(),
			RecordDetail(func(result interface{}) map[string]interface{} {
				outcome := result.(*CaseQualityOutcome)
				return map[string]interface{}{"scored": len(outcome.Summaries), "force_hitl": outcome.ForceHitl}
			}))
		if scoredQuality != nil {
			quality = scoredQuality.(*CaseQualityOutcome)
		}
	}
	if quality.ForceHitl {
		payload.Risk.HitlRequired = true
		verification.Status = models.VerificationEscalated
		verification.Notes = append(verification.Notes, models.VerificationNote{
			Code:     "case_quality",
			Message:  "cited case law is hard-blocked or below the quality threshold",
			Severity: models.SeverityWarning,
		})
	}

	var compliance models.ComplianceAssessment
	_, _ = recorder.Record("compliance", "Compliance gate",
		"Apply jurisdiction-specific obligations and disclosure state",
		func() (interface{}, error) {
			var gateNotices []string
			compliance, gateNotices = ApplyComplianceGate(s.rules, payload, routing, req.Access, quality.Summaries)
			notices = append(notices, gateNotices...)
			return compliance, nil
		})

	panel := BuildTrustPanel(s.rules, payload, snippets, quality.Summaries, verification, compliance, quality.ForceHitl)

	// Finalize the primary run record; this is the only fatal write
	now := time.Now()
	run.Status = models.RunCompleted
	if payload.Risk.HitlRequired || verification.Status == models.VerificationEscalated {
		run.Status = models.RunEscalated
	}
	run.Payload = payload
	run.Plan = recorder.Steps()
	run.Verification = &verification
	run.Compliance = &compliance
	run.Panel = &panel
	run.ForceHitl = quality.ForceHitl
	run.CompletedAt = &now

	if err := s.runs.Finalize(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	s.persistSideTables(ctx, run, snippets, invocations)

	result := resultFromRun(run, false)
	result.AllowlistViolations = verification.AllowlistViolations
	result.Notices = notices
	return result, nil
}

func resultFromRun(run *models.ResearchRun, reused bool) *ExecuteRunResult {
	result := &ExecuteRunResult{
		RunID:        run.ID,
		Reused:       reused,
		Payload:      run.Payload,
		Plan:         run.Plan,
		Verification: run.Verification,
		TrustPanel:   run.Panel,
		Compliance:   run.Compliance,
		Agent:        run.AgentCode,
	}
	if run.Verification != nil {
		result.AllowlistViolations = run.Verification.AllowlistViolations
	}
	return result
}

// composeInstructions builds the instruction preface for the model call
func (s *RunService) composeInstructions(
	req ExecuteRunRequest,
	routing models.RoutingResult,
	snippets []models.HybridSnippet,
) string {
	var b strings.Builder

	b.WriteString("Vous êtes un assistant de recherche juridique. Répondez en JSON structuré ")
	b.WriteString(`{"issue","rules","application","conclusion","citations","risk","jurisdiction"}.`)
	b.WriteString("\nChaque citation doit pointer vers une source officielle. Version de politique: ")
	b.WriteString(s.rules.PolicyVersion)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(req.Question)

	if req.Context != nil && strings.TrimSpace(*req.Context) != "" {
		b.WriteString("\n\nCONTEXTE COMPLÉMENTAIRE:\n")
		b.WriteString(*req.Context)
	}

	if req.Confidential {
		b.WriteString("\n\nDOSSIER CONFIDENTIEL: n'utilisez aucune recherche web externe et ne reproduisez pas les faits du dossier dans les citations.")
	}

	if routing.Primary != nil {
		fmt.Fprintf(&b, "\n\nJURIDICTION PRESSENTIE: %s (confiance %.2f) — %s",
			routing.Primary.Country, routing.Primary.Confidence, routing.Primary.Rationale)
		if routing.Primary.OhadaMember {
			if reference, ok := ResolveOhadaTopic(s.rules, req.Question); ok {
				b.WriteString("\nTexte uniforme applicable: " + reference)
			}
		}
	}

	if len(snippets) > 0 {
		b.WriteString("\n\nEXTRAITS RÉCUPÉRÉS (par pertinence décroissante):")
		for i, snippet := range snippets {
			excerpt := snippet.Content
			if len(excerpt) > 600 {
				excerpt = excerpt[:600] + "…"
			}
			fmt.Fprintf(&b, "\n[%d] (%s, %s) %s\n%s", i+1, snippet.Origin, snippet.TrustTier, snippet.SourceURL, excerpt)
		}
	}

	b.WriteString("\n\nSi le risque est élevé, marquez risk.level=HIGH et risk.hitl_required=true.")
	return b.String()
}

// toolDeclarations exposes the tools the ledger still allows
func (s *RunService) toolDeclarations(ledger *ToolBudgetLedger) []ToolDeclaration {
	available := map[string]ToolDeclaration{
		ToolVectorSearch: {
			Name:        ToolVectorSearch,
			Description: "Recherche sémantique dans le corpus juridique local",
			Parameters:  map[string]string{"query": "texte de la recherche"},
		},
		ToolDocSearch: {
			Name:        ToolDocSearch,
			Description: "Recherche dans le service documentaire distant",
			Parameters:  map[string]string{"query": "texte de la recherche"},
		},
		ToolWebSearch: {
			Name:        ToolWebSearch,
			Description: "Recherche web sur les seuls domaines officiels autorisés",
			Parameters:  map[string]string{"query": "texte de la recherche"},
		},
		ToolCaseTreatments: {
			Name:        ToolCaseTreatments,
			Description: "Signaux de traitement jurisprudentiel d'une décision citée",
			Parameters:  map[string]string{"url": "URL de la décision"},
		},
		ToolOhadaTopic: {
			Name:        ToolOhadaTopic,
			Description: "Acte uniforme OHADA applicable à une question",
			Parameters:  map[string]string{"question": "question à qualifier"},
		},
	}

	var declarations []ToolDeclaration
	for _, tool := range ledger.DeclaredTools() {
		if decl, ok := available[tool]; ok {
			declarations = append(declarations, decl)
		}
	}
	sort.Slice(declarations, func(i, j int) bool { return declarations[i].Name < declarations[j].Name })
	return declarations
}

// toolDispatcher wires model-requested tool calls through the budget ledger
func (s *RunService) toolDispatcher(
	orgID uuid.UUID,
	run *models.ResearchRun,
	ledger *ToolBudgetLedger,
	hint *models.JurisdictionHint,
	invocations *[]models.ToolInvocation,
	mu *sync.Mutex,
) ToolDispatcher {
	record := func(tool, args string, succeeded bool) {
		mu.Lock()
		defer mu.Unlock()
		*invocations = append(*invocations, models.ToolInvocation{
			ID:        uuid.New(),
			RunID:     run.ID,
			Tool:      tool,
			Arguments: args,
			Succeeded: succeeded,
			CalledAt:  time.Now(),
		})
	}

	return func(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
		argsJSON, _ := json.Marshal(args)

		if err := ledger.Consume(name); err != nil {
			record(name, string(argsJSON), false)
			return nil, err
		}

		result, err := s.dispatchTool(ctx, orgID, name, args, hint)
		record(name, string(argsJSON), err == nil)
		return result, err
	}
}

func (s *RunService) dispatchTool(
	ctx context.Context,
	orgID uuid.UUID,
	name string,
	args map[string]interface{},
	hint *models.JurisdictionHint,
) (map[string]interface{}, error) {
	stringArg := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch name {
	case ToolVectorSearch:
		if s.retriever == nil || s.retriever.chunks == nil || s.retriever.embedder == nil {
			return nil, errors.New("local search is not configured")
		}
		embedding, err := s.retriever.embedder.Embed(ctx, stringArg("query"))
		if err != nil {
			return nil, err
		}
		var jurisdiction *string
		if hint != nil {
			jurisdiction = &hint.Country
		}
		chunks, err := s.retriever.chunks.SearchChunks(ctx, orgID, embedding, 3, jurisdiction)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			texts = append(texts, chunk.Text)
		}
		return map[string]interface{}{"fragments": texts}, nil

	case ToolDocSearch:
		if s.retriever == nil || s.retriever.remote == nil {
			return nil, errors.New("remote document search is not configured")
		}
		results, err := s.retriever.remote.Search(ctx, stringArg("query"), 3)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": results}, nil

	case ToolWebSearch:
		// No outbound web client is deployed; the declaration exists so the
		// budget path is exercised uniformly
		return nil, errors.New("web search is unavailable in this deployment")

	case ToolCaseTreatments:
		if s.retriever == nil || s.retriever.sources == nil || s.retriever.scores == nil {
			return nil, errors.New("case treatment lookup is not configured")
		}
		source, err := s.retriever.sources.GetByURL(ctx, stringArg("url"))
		if err != nil {
			return nil, err
		}
		if source == nil {
			return map[string]interface{}{"treatments": []string{}}, nil
		}
		treatments, err := s.retriever.scores.Treatments(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"treatments": treatments}, nil

	case ToolOhadaTopic:
		reference, ok := ResolveOhadaTopic(s.rules, stringArg("question"))
		if !ok {
			return map[string]interface{}{"reference": nil}, nil
		}
		return map[string]interface{}{"reference": reference}, nil
	}

	return nil, fmt.Errorf("unknown tool %q", name)
}

// persistSideTables writes the non-critical rows concurrently. Failures here
// are logged and swallowed so the primary result is still returned.
func (s *RunService) persistSideTables(
	ctx context.Context,
	run *models.ResearchRun,
	snippets []models.HybridSnippet,
	invocations []models.ToolInvocation,
) {
	if s.sideTables == nil {
		return
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(invocations) == 0 {
			return
		}
		if err := s.sideTables.InsertToolInvocations(ctx, run.ID, invocations); err != nil {
			log.Printf("Warning: Failed to persist tool invocations for run %s: %v", run.ID, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if len(snippets) == 0 {
			return
		}
		if err := s.sideTables.InsertSnippets(ctx, run.ID, snippets, run.Confidential); err != nil {
			log.Printf("Warning: Failed to persist retrieval snippets for run %s: %v", run.ID, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if run.Payload == nil || len(run.Payload.Citations) == 0 {
			return
		}
		if err := s.sideTables.InsertCitations(ctx, run.ID, run.Payload.Citations); err != nil {
			log.Printf("Warning: Failed to persist citations for run %s: %v", run.ID, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if run.Compliance == nil {
			return
		}
		if err := s.sideTables.InsertCompliance(ctx, run.ID, *run.Compliance); err != nil {
			log.Printf("Warning: Failed to persist compliance assessment for run %s: %v", run.ID, err)
		}
	}()

	if run.Status == models.RunEscalated {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reason := "escalated by pipeline"
			if run.Verification != nil && len(run.Verification.Notes) > 0 {
				reason = run.Verification.Notes[0].Message
			}
			entry := &models.HitlEntry{
				ID:     uuid.New(),
				RunID:  run.ID,
				Reason: reason,
				Status: "open",
			}
			if err := s.sideTables.EnqueueHitl(ctx, entry); err != nil {
				log.Printf("Warning: Failed to enqueue HITL entry for run %s: %v", run.ID, err)
			}
		}()

		if s.archive != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.archiveReviewBundle(ctx, run)
			}()
		}
	}

	wg.Wait()
}

// archiveReviewBundle stores a JSON bundle of the escalated run for reviewers
func (s *RunService) archiveReviewBundle(ctx context.Context, run *models.ResearchRun) {
	bundle, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		log.Printf("Warning: Failed to marshal review bundle for run %s: %v", run.ID, err)
		return
	}
	if _, err := s.archive.Upload(ctx, run.ID, storage.ReviewBundleName, bytes.NewReader(bundle)); err != nil {
		log.Printf("Warning: Failed to archive review bundle for run %s: %v", run.ID, err)
	}
}
