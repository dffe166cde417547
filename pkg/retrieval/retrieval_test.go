package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/store"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// fakeGraphStore serves canned reads for the retrieval paths and fails on
// demand per method.
type fakeGraphStore struct {
	store.GraphStorage

	entityTypes    []string
	entitiesByType map[string][]common.Entity
	related        []common.Entity
	relationships  []common.Relationship
	textMatches    map[string][]common.Chunk
	keyTermMatches []store.KeyTermMatch
	temporalChunks []common.Chunk
	neighbors      map[string][]common.Chunk

	failEntityTypes bool
	failTextSearch  bool
	failGraph       bool
}

func (f *fakeGraphStore) EntityTypes(context.Context) ([]string, error) {
	if f.failEntityTypes {
		return nil, errors.New("entity types unavailable")
	}
	return f.entityTypes, nil
}

func (f *fakeGraphStore) EntitiesByType(
	_ context.Context,
	entityType string,
	_ map[string]string,
	limit int,
) ([]common.Entity, error) {
	if f.failGraph {
		return nil, errors.New("graph unavailable")
	}
	entities := f.entitiesByType[entityType]
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

func (f *fakeGraphStore) RelatedEntities(_ context.Context, _ []string, limit int) ([]common.Entity, error) {
	if f.failGraph {
		return nil, errors.New("graph unavailable")
	}
	related := f.related
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (f *fakeGraphStore) RelationshipsForEntities(context.Context, []string) ([]common.Relationship, error) {
	if f.failGraph {
		return nil, errors.New("graph unavailable")
	}
	return f.relationships, nil
}

func (f *fakeGraphStore) SearchChunkText(
	_ context.Context,
	text string,
	_ string,
	limit int,
) ([]common.Chunk, error) {
	if f.failTextSearch {
		return nil, errors.New("text search unavailable")
	}
	chunks := f.textMatches[text]
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (f *fakeGraphStore) ChunksByKeyTerms(_ context.Context, _ []string, limit int) ([]store.KeyTermMatch, error) {
	matches := f.keyTermMatches
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeGraphStore) ChunksWithTemporalRefs(_ context.Context, limit int) ([]common.Chunk, error) {
	chunks := f.temporalChunks
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (f *fakeGraphStore) NeighborChunks(_ context.Context, chunkID string, _, _ int) ([]common.Chunk, error) {
	return f.neighbors[chunkID], nil
}

// fakeLLM answers schema-constrained calls with canned JSON or a canned
// error.
type fakeLLM struct {
	planJSON string
	err      error
}

func (f *fakeLLM) GenerateCompletion(context.Context, string, ...ai.GenerateOption) (string, error) {
	return "", f.err
}

func (f *fakeLLM) GenerateCompletionWithFormat(
	_ context.Context,
	_ string,
	_ string,
	_ string,
	out any,
	_ ...ai.GenerateOption,
) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.planJSON), out)
}

func (f *fakeLLM) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	return "", f.err
}

func (f *fakeLLM) ResetMetrics() {}

func (f *fakeLLM) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func partyEntity(id string, confidence float64) common.Entity {
	return common.Entity{
		ID:         id,
		Type:       "party",
		Properties: map[string]any{"name": "Party " + id},
		Confidence: confidence,
	}
}

func retrievalPreset(t *testing.T, name string) strategy.RetrievalStrategy {
	t.Helper()
	combined, err := strategy.Preset(name)
	if err != nil {
		t.Fatalf("preset %q: %v", name, err)
	}
	return combined.Retrieval
}

func TestRetrieve_GraphOnlyPreset(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party"},
		entitiesByType: map[string][]common.Entity{
			"party": {
				partyEntity("e1", 0.9),
				partyEntity("e2", 0.2),
				partyEntity("e3", 0.6),
				partyEntity("e4", 0.95),
				partyEntity("e5", 0.5),
			},
		},
	}
	retriever := NewRetriever(storage, nil)

	result, err := retriever.Retrieve(context.Background(), "who are the parties?", retrievalPreset(t, strategy.PresetMinimal))
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if len(result.Entities) != 4 {
		t.Fatalf("expected 4 entities above the 0.3 confidence floor, got %d", len(result.Entities))
	}
	for _, e := range result.Entities {
		if e.ID == "e2" {
			t.Fatalf("low-confidence entity e2 retained")
		}
	}
	if want := []string{MethodGraphTraversal}; !reflect.DeepEqual(result.SearchMethodsUsed, want) {
		t.Fatalf("methods used = %v, want %v", result.SearchMethodsUsed, want)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("graph-only preset returned chunks: %+v", result.Chunks)
	}
	if result.IsEmpty() {
		t.Fatalf("result with entities reported empty")
	}
}

func TestRetrieve_AnalyzerFailureFallsBack(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party", "obligation", "deadline", "payment"},
		textMatches: map[string][]common.Chunk{
			"What is the payment deadline?": {
				{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: "Payment is due in 30 days."},
			},
		},
	}
	retriever := NewRetriever(storage, &fakeLLM{err: errors.New("model overloaded")})

	result, err := retriever.Retrieve(context.Background(), "What is the payment deadline?", strategy.DefaultRetrieval())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	plan := result.QueryPlan
	if !plan.HasTemporalAspect {
		t.Fatalf("fallback plan missed temporal trigger in question")
	}
	if want := []string{"what", "payment", "deadline"}; !reflect.DeepEqual(plan.Keywords, want) {
		t.Fatalf("fallback keywords = %v, want %v", plan.Keywords, want)
	}
	if want := []string{"party", "obligation", "deadline"}; !reflect.DeepEqual(plan.EntityTypes, want) {
		t.Fatalf("fallback entity types = %v, want %v", plan.EntityTypes, want)
	}
	if plan.SearchText != "What is the payment deadline?" {
		t.Fatalf("fallback search text = %q", plan.SearchText)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "c1" {
		t.Fatalf("retrieval did not complete with fallback plan: %+v", result.Chunks)
	}
}

func TestRetrieve_FailingCollectorIsExcluded(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party"},
		entitiesByType: map[string][]common.Entity{
			"party": {partyEntity("e1", 0.9)},
		},
		failTextSearch: true,
	}
	retriever := NewRetriever(storage, nil)

	strat := strategy.DefaultRetrieval()
	strat.Search.TemporalFiltering.Enabled = false
	strat.Search.KeywordMatching.Enabled = false

	result, err := retriever.Retrieve(context.Background(), "parties involved", strat)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	for _, method := range result.SearchMethodsUsed {
		if method == MethodChunkTextSearch {
			t.Fatalf("failed method reported as used: %v", result.SearchMethodsUsed)
		}
	}
	if len(result.Entities) != 1 {
		t.Fatalf("surviving methods lost their results: %+v", result.Entities)
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party"},
		entitiesByType: map[string][]common.Entity{
			"party": {partyEntity("e1", 0.9), partyEntity("e2", 0.7)},
		},
		textMatches: map[string][]common.Chunk{
			"termination rights": {
				{ID: "c1", DocumentID: "d1", ChunkIndex: 1, Text: "Either party may terminate."},
			},
		},
		keyTermMatches: []store.KeyTermMatch{
			{Chunk: common.Chunk{ID: "c1", DocumentID: "d1", ChunkIndex: 1, Text: "Either party may terminate."}, MatchCount: 2},
		},
	}
	retriever := NewRetriever(storage, nil)
	strat := strategy.DefaultRetrieval()
	strat.Search.KeywordMatching.MatchThreshold = 0.1

	first, err := retriever.Retrieve(context.Background(), "termination rights", strat)
	if err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	second, err := retriever.Retrieve(context.Background(), "termination rights", strat)
	if err != nil {
		t.Fatalf("second retrieve: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical requests diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestRetrieve_TemporalAutoDetect(t *testing.T) {
	storage := &fakeGraphStore{
		temporalChunks: []common.Chunk{
			{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: "Due within 30 days.",
				TemporalRefs: []common.TemporalRef{{Kind: common.TemporalDuration, Text: "30 days"}}},
		},
	}
	retriever := NewRetriever(storage, nil)

	strat := strategy.DefaultRetrieval()
	strat.Search.GraphTraversal.Enabled = false
	strat.Search.ChunkTextSearch.Enabled = false
	strat.Search.KeywordMatching.Enabled = false

	// No temporal trigger in the question: the method must not fire.
	result, err := retriever.Retrieve(context.Background(), "payment obligations", strat)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.SearchMethodsUsed) != 0 || len(result.Chunks) != 0 {
		t.Fatalf("temporal method fired without temporal aspect: %v", result.SearchMethodsUsed)
	}

	// Trigger word present: the method fires.
	result, err = retriever.Retrieve(context.Background(), "payment deadline", strat)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if want := []string{MethodTemporalFiltering}; !reflect.DeepEqual(result.SearchMethodsUsed, want) {
		t.Fatalf("methods used = %v, want %v", result.SearchMethodsUsed, want)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected temporal chunk, got %+v", result.Chunks)
	}
}

func TestRetrieve_ModelPlanSanitized(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party", "obligation"},
		entitiesByType: map[string][]common.Entity{
			"party": {partyEntity("e1", 0.9)},
		},
	}
	llm := &fakeLLM{planJSON: `{
		"intent": "find the parties",
		"entity_types": ["party", "spaceship"],
		"keywords": ["parties"],
		"has_temporal_aspect": false,
		"search_text": "parties"
	}`}
	retriever := NewRetriever(storage, llm)

	result, err := retriever.Retrieve(context.Background(), "who are the parties?", strategy.DefaultRetrieval())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if want := []string{"party"}; !reflect.DeepEqual(result.QueryPlan.EntityTypes, want) {
		t.Fatalf("unknown entity type survived sanitization: %v", result.QueryPlan.EntityTypes)
	}
	if len(result.Entities) != 1 || result.Entities[0].ID != "e1" {
		t.Fatalf("expected e1, got %+v", result.Entities)
	}
}

func TestRetrieve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retriever := NewRetriever(&fakeGraphStore{}, nil)
	_, err := retriever.Retrieve(ctx, "anything", strategy.DefaultRetrieval())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetrieve_RelationshipsFilteredToRetained(t *testing.T) {
	storage := &fakeGraphStore{
		entityTypes: []string{"party"},
		entitiesByType: map[string][]common.Entity{
			"party": {partyEntity("e1", 0.9), partyEntity("e2", 0.1)},
		},
		relationships: []common.Relationship{
			{ID: "r1", Type: "OWES", SourceID: "e1", TargetID: "e2"},
		},
	}
	retriever := NewRetriever(storage, nil)

	result, err := retriever.Retrieve(context.Background(), "parties", strategy.DefaultRetrieval())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	// e2 falls below the confidence floor, so r1 dangles and must be dropped.
	if len(result.Relationships) != 0 {
		t.Fatalf("dangling relationship retained: %+v", result.Relationships)
	}
	if strings.Contains(result.Text, "--[OWES]-->") {
		t.Fatalf("dangling relationship rendered:\n%s", result.Text)
	}
}

func TestRetrievalTrace(t *testing.T) {
	trace := NewRetrievalTrace()

	storage := &fakeGraphStore{
		entityTypes: []string{"party"},
		entitiesByType: map[string][]common.Entity{
			"party": {partyEntity("e1", 0.9)},
		},
		failTextSearch: true,
	}
	retriever := NewRetriever(storage, nil, WithTracer(trace))

	strat := strategy.DefaultRetrieval()
	strat.Search.KeywordMatching.Enabled = false
	strat.Search.TemporalFiltering.Enabled = false

	if _, err := retriever.Retrieve(context.Background(), "parties", strat); err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	snapshot := trace.Snapshot()
	if snapshot.RawCandidates[MethodGraphTraversal] != 1 {
		t.Fatalf("raw candidates for graph = %d, want 1", snapshot.RawCandidates[MethodGraphTraversal])
	}
	if _, ok := snapshot.FailedMethods[MethodChunkTextSearch]; !ok {
		t.Fatalf("failed method not traced: %+v", snapshot.FailedMethods)
	}
	if snapshot.RetainedEntities != 1 {
		t.Fatalf("retained entities = %d, want 1", snapshot.RetainedEntities)
	}
	if got := trace.FailedMethods(); len(got) != 1 || got[0] != MethodChunkTextSearch {
		t.Fatalf("failed methods = %v", got)
	}
}
