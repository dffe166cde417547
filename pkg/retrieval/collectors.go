package retrieval

import (
	"context"
	"fmt"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/store"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// Signal method identifiers as reported in RetrievalContext.SearchMethodsUsed.
const (
	MethodGraphTraversal    = "graph_traversal"
	MethodChunkTextSearch   = "chunk_text_search"
	MethodKeywordMatching   = "keyword_matching"
	MethodTemporalFiltering = "temporal_filtering"
)

// methodOrder is the canonical collector order. Candidates are concatenated
// in this order before fusion, so equal scores resolve to the earlier
// method deterministically.
var methodOrder = []string{
	MethodGraphTraversal,
	MethodChunkTextSearch,
	MethodKeywordMatching,
	MethodTemporalFiltering,
}

// candidate is a scored retrieval result from a single signal method.
// Exactly one of entity or chunk is set.
type candidate struct {
	method string
	entity *common.Entity
	chunk  *common.Chunk
	score  float64
}

func (c candidate) id() string {
	if c.entity != nil {
		return c.entity.ID
	}
	if c.chunk != nil {
		return c.chunk.ID
	}
	return ""
}

// collectors runs the individual signal methods against graph storage.
// Each method returns its raw scored candidates; failure handling and
// fusion happen in the Retriever.
type collectors struct {
	storage store.GraphStorage
}

// graphTraversal finds entities of the plan's types, optionally filtered by
// property substrings, plus one hop of related entities when the strategy
// depth allows. It also returns the relationships among everything found.
func (c *collectors) graphTraversal(
	ctx context.Context,
	plan QueryPlan,
	strat strategy.RetrievalStrategy,
) ([]candidate, []common.Relationship, error) {
	var (
		candidates []candidate
		entityIDs  []string
	)

	for _, entityType := range plan.EntityTypes {
		entities, err := c.storage.EntitiesByType(ctx, entityType, plan.Filters, strat.Limits.MaxEntities)
		if err != nil {
			return nil, nil, fmt.Errorf("entities by type %q: %w", entityType, err)
		}
		for i := range entities {
			candidates = append(candidates, candidate{
				method: MethodGraphTraversal,
				entity: &entities[i],
				score:  strat.Scoring.GraphMatchWeight,
			})
			entityIDs = append(entityIDs, entities[i].ID)
		}
	}

	// Expanded-hop matches score lower than direct type matches.
	if strat.Search.GraphTraversal.MaxDepth >= 2 && len(entityIDs) > 0 {
		related, err := c.storage.RelatedEntities(ctx, entityIDs, strat.Limits.MaxEntities)
		if err != nil {
			return nil, nil, fmt.Errorf("related entities: %w", err)
		}
		for i := range related {
			candidates = append(candidates, candidate{
				method: MethodGraphTraversal,
				entity: &related[i],
				score:  strat.Scoring.GraphMatchWeight * 0.8,
			})
			entityIDs = append(entityIDs, related[i].ID)
		}
	}

	var relationships []common.Relationship
	if len(entityIDs) > 0 {
		var err error
		relationships, err = c.storage.RelationshipsForEntities(ctx, entityIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("relationships: %w", err)
		}
	}

	return candidates, relationships, nil
}

// chunkTextSearch finds chunks whose text contains the plan's search text
// or one of its top keywords.
func (c *collectors) chunkTextSearch(
	ctx context.Context,
	plan QueryPlan,
	strat strategy.RetrievalStrategy,
	documentID string,
) ([]candidate, error) {
	terms := []string{plan.SearchText}
	keywords := plan.Keywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	terms = append(terms, keywords...)

	perTerm := strat.Limits.MaxChunks / 2
	if perTerm < 1 {
		perTerm = 1
	}

	var candidates []candidate
	for _, term := range terms {
		if term == "" {
			continue
		}
		chunks, err := c.storage.SearchChunkText(ctx, term, documentID, perTerm)
		if err != nil {
			return nil, fmt.Errorf("chunk text search %q: %w", term, err)
		}
		for i := range chunks {
			candidates = append(candidates, candidate{
				method: MethodChunkTextSearch,
				chunk:  &chunks[i],
				score:  strat.Scoring.TextMatchWeight,
			})
		}
	}
	return candidates, nil
}

// keywordMatching finds chunks whose precomputed key terms intersect the
// plan's keywords, boosted by how many keywords matched. Matches below the
// strategy's threshold ratio are dropped.
func (c *collectors) keywordMatching(
	ctx context.Context,
	plan QueryPlan,
	strat strategy.RetrievalStrategy,
) ([]candidate, error) {
	if len(plan.Keywords) == 0 {
		return nil, nil
	}

	matches, err := c.storage.ChunksByKeyTerms(ctx, plan.Keywords, strat.Limits.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("chunks by key terms: %w", err)
	}

	var candidates []candidate
	for i := range matches {
		m := matches[i]
		ratio := float64(m.MatchCount) / float64(len(plan.Keywords))
		if ratio < strat.Search.KeywordMatching.MatchThreshold {
			continue
		}
		candidates = append(candidates, candidate{
			method: MethodKeywordMatching,
			chunk:  &matches[i].Chunk,
			score:  strat.Scoring.TextMatchWeight * (1 + 0.2*float64(m.MatchCount)),
		})
	}
	return candidates, nil
}

// temporalFiltering finds chunks carrying temporal references. The caller
// decides whether the method fires at all (auto-detect).
func (c *collectors) temporalFiltering(
	ctx context.Context,
	plan QueryPlan,
	strat strategy.RetrievalStrategy,
) ([]candidate, error) {
	chunks, err := c.storage.ChunksWithTemporalRefs(ctx, strat.Limits.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("chunks with temporal refs: %w", err)
	}

	var candidates []candidate
	for i := range chunks {
		candidates = append(candidates, candidate{
			method: MethodTemporalFiltering,
			chunk:  &chunks[i],
			score:  strat.Scoring.TextMatchWeight * 0.9,
		})
	}
	return candidates, nil
}
