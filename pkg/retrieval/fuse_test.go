package retrieval

import (
	"testing"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

func entityCandidate(id string, confidence, score float64) candidate {
	return candidate{
		method: MethodGraphTraversal,
		entity: &common.Entity{ID: id, Type: "party", Confidence: confidence},
		score:  score,
	}
}

func chunkCandidate(method, id string, score float64) candidate {
	return candidate{
		method: method,
		chunk:  &common.Chunk{ID: id, DocumentID: "d1", Text: "text of " + id},
		score:  score,
	}
}

func TestFuse_ConfidenceFilter(t *testing.T) {
	confidences := []float64{0.9, 0.2, 0.6, 0.95, 0.5}
	var candidates []candidate
	for i, conf := range confidences {
		candidates = append(candidates, entityCandidate(string(rune('a'+i)), conf, 1.0))
	}

	out := fuse(candidates,
		strategy.ScoringConfig{EntityConfidenceMin: 0.3, GraphMatchWeight: 1.0},
		strategy.LimitsConfig{MaxEntities: 15, MaxChunks: 5},
	)

	if len(out.entities) != 4 {
		t.Fatalf("expected 4 entities above confidence floor, got %d", len(out.entities))
	}
	for _, e := range out.entities {
		if e.Confidence < 0.3 {
			t.Fatalf("entity %q below confidence floor retained (%.2f)", e.ID, e.Confidence)
		}
	}
}

func TestFuse_DuplicateKeepsHigherScore(t *testing.T) {
	// c1 appears in both text search (1.0) and keyword matching with two
	// keyword hits (1.4): the keyword occurrence must win the dedup.
	candidates := []candidate{
		chunkCandidate(MethodChunkTextSearch, "c1", 1.0),
		chunkCandidate(MethodChunkTextSearch, "c2", 1.0),
		chunkCandidate(MethodKeywordMatching, "c1", 1.4),
	}

	out := fuse(candidates,
		strategy.ScoringConfig{TextMatchWeight: 1.0},
		strategy.LimitsConfig{MaxEntities: 5, MaxChunks: 1},
	)

	if len(out.chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(out.chunks))
	}
	if out.chunks[0].ID != "c1" {
		t.Fatalf("expected highest-scored chunk c1 to survive the cap, got %q", out.chunks[0].ID)
	}
}

func TestFuse_StableTieBreak(t *testing.T) {
	// Equal scores keep concatenation order: the earlier collector wins.
	candidates := []candidate{
		chunkCandidate(MethodChunkTextSearch, "c1", 1.0),
		chunkCandidate(MethodTemporalFiltering, "c2", 1.0),
	}

	out := fuse(candidates,
		strategy.ScoringConfig{TextMatchWeight: 1.0},
		strategy.LimitsConfig{MaxEntities: 5, MaxChunks: 1},
	)

	if len(out.chunks) != 1 || out.chunks[0].ID != "c1" {
		t.Fatalf("expected c1 to win the tie, got %+v", out.chunks)
	}
}

func TestFuse_CardinalityBounds(t *testing.T) {
	var candidates []candidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates, entityCandidate(string(rune('A'+i)), 0.9, 1.0))
		candidates = append(candidates, chunkCandidate(MethodChunkTextSearch, string(rune('a'+i)), 1.0))
	}

	out := fuse(candidates,
		strategy.ScoringConfig{EntityConfidenceMin: 0.5},
		strategy.LimitsConfig{MaxEntities: 20, MaxChunks: 10},
	)

	if len(out.entities) != 20 {
		t.Fatalf("expected entity cap 20, got %d", len(out.entities))
	}
	if len(out.chunks) != 10 {
		t.Fatalf("expected chunk cap 10, got %d", len(out.chunks))
	}
}

func TestFuse_DiscardsMissingIdentifiers(t *testing.T) {
	candidates := []candidate{
		{method: MethodGraphTraversal, entity: &common.Entity{Confidence: 0.9}, score: 2.0},
		{method: MethodChunkTextSearch, chunk: &common.Chunk{Text: "orphan"}, score: 2.0},
		chunkCandidate(MethodChunkTextSearch, "c1", 1.0),
	}

	out := fuse(candidates,
		strategy.ScoringConfig{},
		strategy.LimitsConfig{MaxEntities: 5, MaxChunks: 5},
	)

	if len(out.entities) != 0 {
		t.Fatalf("entity without id retained: %+v", out.entities)
	}
	if len(out.chunks) != 1 || out.chunks[0].ID != "c1" {
		t.Fatalf("expected only c1, got %+v", out.chunks)
	}
}

func TestFuse_Idempotent(t *testing.T) {
	candidates := []candidate{
		entityCandidate("e1", 0.9, 1.5),
		chunkCandidate(MethodChunkTextSearch, "c1", 1.0),
		chunkCandidate(MethodKeywordMatching, "c1", 1.2),
	}
	scoring := strategy.ScoringConfig{EntityConfidenceMin: 0.5}
	limits := strategy.LimitsConfig{MaxEntities: 5, MaxChunks: 5}

	first := fuse(candidates, scoring, limits)

	again := make([]candidate, 0, len(first.entities)+len(first.chunks))
	for i := range first.entities {
		again = append(again, candidate{method: MethodGraphTraversal, entity: &first.entities[i], score: 1.5})
	}
	for i := range first.chunks {
		again = append(again, candidate{method: MethodChunkTextSearch, chunk: &first.chunks[i], score: 1.0})
	}
	second := fuse(again, scoring, limits)

	if len(second.entities) != len(first.entities) || len(second.chunks) != len(first.chunks) {
		t.Fatalf("re-fusing already-fused results changed cardinality: %d/%d vs %d/%d",
			len(second.entities), len(second.chunks), len(first.entities), len(first.chunks))
	}
}

func TestFilterRelationships_DropsDangling(t *testing.T) {
	entities := []common.Entity{{ID: "e1"}, {ID: "e2"}}
	relationships := []common.Relationship{
		{ID: "r1", Type: "OWES", SourceID: "e1", TargetID: "e2"},
		{ID: "r2", Type: "OWES", SourceID: "e1", TargetID: "missing"},
		{ID: "r3", Type: "OWES", SourceID: "missing", TargetID: "e2"},
	}

	kept := filterRelationships(relationships, entities)
	if len(kept) != 1 || kept[0].ID != "r1" {
		t.Fatalf("expected only r1 to survive, got %+v", kept)
	}
}
