package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"lexflow-backend/models"

	"github.com/google/uuid"
)

const (
	localMatchCount  = 12
	remoteMaxResults = 10
	mergedSnippetCap = 8
	minSimilarity    = 0.1
)

// Retriever merges the local embedding-indexed path and the remote
// document-search path into one ranked snippet list. The ranking trades
// relevance against trustworthiness and jurisprudential reliability: a
// low-quality but similar case can be outranked by a less similar statute.
type Retriever struct {
	chunks   ChunkSearcher
	sources  SourceStore
	scores   CaseScoreStore
	synonyms SynonymStore
	remote   RemoteSearchClient
	embedder QueryEmbedder
	rules    *RuleSet
}

// RetrieverOption is a functional option for Retriever
type RetrieverOption func(*Retriever)

// RetrieverWithChunkSearcher sets the local search path
func RetrieverWithChunkSearcher(s ChunkSearcher) RetrieverOption {
	return func(r *Retriever) { r.chunks = s }
}

// RetrieverWithSourceStore sets the source metadata store
func RetrieverWithSourceStore(s SourceStore) RetrieverOption {
	return func(r *Retriever) { r.sources = s }
}

// RetrieverWithCaseScoreStore sets the case-quality score store
func RetrieverWithCaseScoreStore(s CaseScoreStore) RetrieverOption {
	return func(r *Retriever) { r.scores = s }
}

// RetrieverWithSynonymStore sets the learned-synonym store
func RetrieverWithSynonymStore(s SynonymStore) RetrieverOption {
	return func(r *Retriever) { r.synonyms = s }
}

// RetrieverWithRemoteClient sets the remote document-search client; nil skips
// the remote path entirely
func RetrieverWithRemoteClient(c RemoteSearchClient) RetrieverOption {
	return func(r *Retriever) { r.remote = c }
}

// RetrieverWithEmbedder sets the query embedder
func RetrieverWithEmbedder(e QueryEmbedder) RetrieverOption {
	return func(r *Retriever) { r.embedder = e }
}

// NewRetriever creates a hybrid retriever
func NewRetriever(rules *RuleSet, opts ...RetrieverOption) *Retriever {
	r := &Retriever{rules: rules}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExpandQuery appends learned synonym expansions for the hinted jurisdiction
func (r *Retriever) ExpandQuery(ctx context.Context, query string, hint *models.JurisdictionHint) string {
	if r.synonyms == nil || hint == nil {
		return query
	}

	synonyms, err := r.synonyms.ListByJurisdiction(ctx, hint.Country)
	if err != nil {
		log.Printf("Warning: Failed to load query synonyms: %v", err)
		return query
	}

	lower := strings.ToLower(query)
	var expansions []string
	for _, syn := range synonyms {
		if strings.Contains(lower, strings.ToLower(syn.Term)) {
			expansions = append(expansions, syn.Expansion)
		}
	}
	if len(expansions) == 0 {
		return query
	}
	return query + " " + strings.Join(expansions, " ")
}

// Retrieve runs both search paths and returns the merged, ranked snippet list
func (r *Retriever) Retrieve(
	ctx context.Context,
	orgID uuid.UUID,
	query string,
	hint *models.JurisdictionHint,
) ([]models.HybridSnippet, error) {
	expanded := r.ExpandQuery(ctx, query, hint)

	local, err := r.retrieveLocal(ctx, orgID, expanded, hint)
	if err != nil {
		return nil, fmt.Errorf("local retrieval failed: %w", err)
	}

	var remote []models.HybridSnippet
	if r.remote != nil {
		remote, err = r.retrieveRemote(ctx, expanded)
		if err != nil {
			// The remote back-end is supplementary; local results still stand
			log.Printf("Warning: Remote document search failed: %v", err)
			remote = nil
		}
	}

	return MergeSnippets(local, remote), nil
}

func (r *Retriever) retrieveLocal(
	ctx context.Context,
	orgID uuid.UUID,
	query string,
	hint *models.JurisdictionHint,
) ([]models.HybridSnippet, error) {
	if r.chunks == nil || r.embedder == nil {
		return nil, nil
	}

	queryText := query
	var jurisdiction *string
	if hint != nil {
		queryText = fmt.Sprintf("[JURIDICTION: %s] %s", hint.Country, query)
		jurisdiction = &hint.Country
	}

	embedding, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	chunks, err := r.chunks.SearchChunks(ctx, orgID, embedding, localMatchCount, jurisdiction)
	if err != nil {
		return nil, err
	}

	var snippets []models.HybridSnippet
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" || chunk.Source == nil {
			continue
		}

		similarity := 1 - chunk.Distance
		if similarity < 0 {
			similarity = 0
		}
		if similarity > 1 {
			similarity = 1
		}

		weight := r.rules.TierWeights[chunk.Source.TrustTier]
		if weight == 0 {
			weight = r.rules.TierWeights[models.TierT4]
		}

		if chunk.Source.SourceType == models.SourceJudicialDecision {
			weight, err = r.applyCaseQualityWeight(ctx, chunk.Source.ID, weight)
			if err != nil {
				return nil, err
			}
			if weight == 0 {
				// hard-blocked decision: dropped entirely
				continue
			}
		}

		sourceID := chunk.Source.ID
		snippets = append(snippets, models.HybridSnippet{
			Content:         chunk.Text,
			Similarity:      similarity,
			Weight:          weight,
			Origin:          models.OriginLocal,
			SourceID:        &sourceID,
			SourceURL:       chunk.Source.URL,
			TrustTier:       chunk.Source.TrustTier,
			ELI:             chunk.Source.ELI,
			ECLI:            chunk.Source.ECLI,
			BindingLanguage: chunk.Source.BindingLanguage,
			ResidencyZone:   chunk.Source.ResidencyZone,
			ArticleCount:    chunk.Source.ArticleCount,
		})
	}

	return snippets, nil
}

// applyCaseQualityWeight scales a judicial decision's trust-tier weight by its
// latest quality score. A hard-blocked case returns 0 so the caller drops it.
func (r *Retriever) applyCaseQualityWeight(ctx context.Context, sourceID uuid.UUID, weight float64) (float64, error) {
	if r.scores == nil {
		return weight * 0.6, nil
	}

	latest, err := r.scores.Latest(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to load case score: %w", err)
	}
	if latest == nil {
		// Unscored case law carries a flat penalty
		return weight * 0.6, nil
	}
	if latest.HardBlock {
		return 0, nil
	}

	factor := latest.Score / 100
	if factor < 0.1 {
		factor = 0.1
	}
	weight *= factor
	if latest.Score < 60 {
		weight *= 0.4
	}
	return weight, nil
}

func (r *Retriever) retrieveRemote(ctx context.Context, query string) ([]models.HybridSnippet, error) {
	results, err := r.remote.Search(ctx, query, remoteMaxResults)
	if err != nil {
		return nil, err
	}

	var snippets []models.HybridSnippet
	for _, result := range results {
		if strings.TrimSpace(result.Content) == "" {
			continue
		}

		source, err := r.sources.GetByRemoteFileID(ctx, result.FileID)
		if err != nil {
			return nil, fmt.Errorf("failed to join remote file %s: %w", result.FileID, err)
		}
		if source == nil {
			// No local metadata: trust tier unknown, skip
			continue
		}

		weight := r.rules.TierWeights[source.TrustTier]
		if weight == 0 {
			weight = r.rules.TierWeights[models.TierT4]
		}
		floor := result.Similarity
		if floor < 0.2 {
			floor = 0.2
		}
		weight *= floor

		sourceID := source.ID
		snippets = append(snippets, models.HybridSnippet{
			Content:         result.Content,
			Similarity:      result.Similarity,
			Weight:          weight,
			Origin:          models.OriginRemote,
			SourceID:        &sourceID,
			SourceURL:       source.URL,
			TrustTier:       source.TrustTier,
			ELI:             source.ELI,
			ECLI:            source.ECLI,
			BindingLanguage: source.BindingLanguage,
			ResidencyZone:   source.ResidencyZone,
			ArticleCount:    source.ArticleCount,
		})
	}

	return snippets, nil
}

// MergeSnippets concatenates both paths, discards near-noise matches, sorts by
// similarity x weight descending (stable, so insertion order breaks ties) and
// truncates to the context cap.
func MergeSnippets(local, remote []models.HybridSnippet) []models.HybridSnippet {
	merged := make([]models.HybridSnippet, 0, len(local)+len(remote))
	merged = append(merged, local...)
	merged = append(merged, remote...)

	kept := merged[:0]
	for _, s := range merged {
		if s.Similarity > minSimilarity {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity*kept[i].Weight > kept[j].Similarity*kept[j].Weight
	})

	if len(kept) > mergedSnippetCap {
		kept = kept[:mergedSnippetCap]
	}
	return kept
}
