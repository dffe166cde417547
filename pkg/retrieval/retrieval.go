// Package retrieval implements the multi-signal retrieval engine: query
// analysis, four concurrent signal collectors over the knowledge graph,
// score-based fusion, and context assembly.
//
// Collector failures are contained. A failing signal method contributes
// nothing and is excluded from the reported methods, but retrieval itself
// completes with whatever the remaining methods found.
package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/schema"
	"github.com/anmolg1997/kg-rag/pkg/store"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// RetrievalContext is the assembled output of a retrieval request: the
// rendered context text plus the retained graph objects and provenance.
type RetrievalContext struct {
	Text              string                `json:"text"`
	Entities          []common.Entity       `json:"entities"`
	Chunks            []common.Chunk        `json:"chunks"`
	Relationships     []common.Relationship `json:"relationships"`
	SearchMethodsUsed []string              `json:"search_methods_used"`
	QueryPlan         QueryPlan             `json:"query_plan"`
	TokenEstimate     int                   `json:"token_estimate"`
	Truncated         bool                  `json:"truncated"`
}

// IsEmpty reports whether retrieval found nothing. An empty result is a
// valid outcome, not an error.
func (c RetrievalContext) IsEmpty() bool {
	return len(c.Entities) == 0 && len(c.Chunks) == 0
}

// Retriever answers retrieval requests against graph storage. The retrieval
// strategy is a per-request parameter, so one Retriever serves requests
// under different strategies concurrently.
type Retriever struct {
	storage   store.GraphStorage
	analyzer  *Analyzer
	collect   collectors
	assembler assembler
	sch       *schema.Schema
	tracer    Tracer
}

type RetrieverOption func(*Retriever)

// WithSchema restricts query plans to the schema's entity type vocabulary
// instead of the types currently present in storage.
func WithSchema(sch *schema.Schema) RetrieverOption {
	return func(r *Retriever) {
		r.sch = sch
	}
}

// WithTracer attaches a tracer that receives per-request retrieval events.
func WithTracer(t Tracer) RetrieverOption {
	return func(r *Retriever) {
		r.tracer = t
	}
}

// NewRetriever creates a Retriever. llm may be nil, in which case query
// analysis always uses the heuristic fallback plan.
func NewRetriever(storage store.GraphStorage, llm ai.Client, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		storage:   storage,
		analyzer:  NewAnalyzer(llm),
		collect:   collectors{storage: storage},
		assembler: assembler{storage: storage},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RetrieveOptions holds per-request retrieval settings.
type RetrieveOptions struct {
	DocumentID string
}

type RetrieveOption func(*RetrieveOptions)

// WithDocumentScope limits chunk text search to a single document.
func WithDocumentScope(documentID string) RetrieveOption {
	return func(o *RetrieveOptions) {
		o.DocumentID = documentID
	}
}

// Retrieve runs the full retrieval flow for question under the given
// strategy: analyze, collect signals concurrently, fuse, and assemble.
//
// The only error returned is context cancellation; everything else is
// contained and reflected in the result's SearchMethodsUsed.
func (r *Retriever) Retrieve(
	ctx context.Context,
	question string,
	strat strategy.RetrievalStrategy,
	opts ...RetrieveOption,
) (RetrievalContext, error) {
	if err := ctx.Err(); err != nil {
		return RetrievalContext{}, err
	}

	var options RetrieveOptions
	for _, opt := range opts {
		opt(&options)
	}

	plan := r.analyzer.Analyze(ctx, question, r.knownTypes(ctx))

	var (
		results       = make(map[string][]candidate, len(methodOrder))
		relationships []common.Relationship
	)

	g, gctx := errgroup.WithContext(ctx)
	var (
		graphCands, textCands, keywordCands, temporalCands []candidate
		graphRels                                          []common.Relationship
		graphErr, textErr, keywordErr, temporalErr         error
	)

	if strat.Search.GraphTraversal.Enabled {
		g.Go(func() error {
			graphCands, graphRels, graphErr = r.collect.graphTraversal(gctx, plan, strat)
			return nil
		})
	}
	if strat.Search.ChunkTextSearch.Enabled {
		g.Go(func() error {
			textCands, textErr = r.collect.chunkTextSearch(gctx, plan, strat, options.DocumentID)
			return nil
		})
	}
	if strat.Search.KeywordMatching.Enabled {
		g.Go(func() error {
			keywordCands, keywordErr = r.collect.keywordMatching(gctx, plan, strat)
			return nil
		})
	}
	// With auto-detect on, the temporal method only fires for questions the
	// plan marks as temporal.
	temporalActive := strat.Search.TemporalFiltering.Enabled &&
		(!strat.Search.TemporalFiltering.AutoDetect || plan.HasTemporalAspect)
	if temporalActive {
		g.Go(func() error {
			temporalCands, temporalErr = r.collect.temporalFiltering(gctx, plan, strat)
			return nil
		})
	}
	_ = g.Wait()

	record := func(method string, enabled bool, cands []candidate, err error) {
		if !enabled {
			return
		}
		if err != nil {
			logger.Warn("retrieval method failed", "method", method, "error", err)
			RecordMethodFailed(r.tracer, method, err)
			return
		}
		results[method] = cands
		RecordMethodResults(r.tracer, method, len(cands))
	}
	record(MethodGraphTraversal, strat.Search.GraphTraversal.Enabled, graphCands, graphErr)
	record(MethodChunkTextSearch, strat.Search.ChunkTextSearch.Enabled, textCands, textErr)
	record(MethodKeywordMatching, strat.Search.KeywordMatching.Enabled, keywordCands, keywordErr)
	record(MethodTemporalFiltering, temporalActive, temporalCands, temporalErr)

	if graphErr == nil {
		relationships = graphRels
	}

	// Concatenate in canonical order so fusion ties resolve deterministically
	// regardless of collector completion order.
	var candidates []candidate
	var methodsUsed []string
	for _, method := range methodOrder {
		cands, ok := results[method]
		if !ok {
			continue
		}
		candidates = append(candidates, cands...)
		methodsUsed = append(methodsUsed, method)
	}

	merged := fuse(candidates, strat.Scoring, strat.Limits)
	kept := filterRelationships(relationships, merged.entities)

	result := r.assembler.assemble(ctx, merged.chunks, merged.entities, kept, question, strat)
	RecordRetained(r.tracer, len(merged.entities), len(result.chunks))

	return RetrievalContext{
		Text:              result.text,
		Entities:          merged.entities,
		Chunks:            result.chunks,
		Relationships:     kept,
		SearchMethodsUsed: methodsUsed,
		QueryPlan:         plan,
		TokenEstimate:     result.tokenEstimate,
		Truncated:         result.truncated,
	}, nil
}

// knownTypes returns the entity type vocabulary for query planning: the
// schema's types when a schema is attached, otherwise the types currently
// present in storage. Storage failure degrades to an empty vocabulary.
func (r *Retriever) knownTypes(ctx context.Context) []string {
	if r.sch != nil {
		return r.sch.EntityTypes()
	}
	types, err := r.storage.EntityTypes(ctx)
	if err != nil {
		logger.Warn("listing entity types failed", "error", err)
		return nil
	}
	return types
}
