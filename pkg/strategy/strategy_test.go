package strategy

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("warp")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestPreset_Values(t *testing.T) {
	tests := []struct {
		name             string
		graphEnabled     bool
		textEnabled      bool
		maxDepth         int
		confidenceMin    float64
		graphWeight      float64
		textWeight       float64
		maxChunks        int
		maxEntities      int
		maxContextTokens int
	}{
		{"minimal", true, false, 2, 0.3, 1.0, 0.0, 5, 15, 2000},
		{"balanced", true, true, 2, 0.5, 1.5, 1.0, 10, 20, 4000},
		{"comprehensive", true, true, 3, 0.4, 1.5, 1.2, 15, 30, 6000},
		{"speed", true, true, 1, 0.6, 1.0, 1.0, 5, 10, 2000},
		{"research", true, true, 2, 0.5, 1.2, 1.5, 12, 25, 5000},
		{"strict", true, true, 2, 0.7, 1.5, 1.0, 10, 20, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Preset(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r := p.Retrieval
			if r.Name != tt.name {
				t.Fatalf("expected name %q, got %q", tt.name, r.Name)
			}
			if r.Search.GraphTraversal.Enabled != tt.graphEnabled {
				t.Fatalf("graph_traversal.enabled = %v", r.Search.GraphTraversal.Enabled)
			}
			if r.Search.ChunkTextSearch.Enabled != tt.textEnabled {
				t.Fatalf("chunk_text_search.enabled = %v", r.Search.ChunkTextSearch.Enabled)
			}
			if r.Search.GraphTraversal.MaxDepth != tt.maxDepth {
				t.Fatalf("max_depth = %d, expected %d", r.Search.GraphTraversal.MaxDepth, tt.maxDepth)
			}
			if r.Scoring.EntityConfidenceMin != tt.confidenceMin {
				t.Fatalf("entity_confidence_min = %v, expected %v", r.Scoring.EntityConfidenceMin, tt.confidenceMin)
			}
			if r.Scoring.GraphMatchWeight != tt.graphWeight {
				t.Fatalf("graph_match_weight = %v, expected %v", r.Scoring.GraphMatchWeight, tt.graphWeight)
			}
			if r.Scoring.TextMatchWeight != tt.textWeight {
				t.Fatalf("text_match_weight = %v, expected %v", r.Scoring.TextMatchWeight, tt.textWeight)
			}
			if r.Limits.MaxChunks != tt.maxChunks || r.Limits.MaxEntities != tt.maxEntities || r.Limits.MaxContextTokens != tt.maxContextTokens {
				t.Fatalf("limits = %+v", r.Limits)
			}
		})
	}
}

func TestPreset_MinimalDisablesChunkPipeline(t *testing.T) {
	p, err := Preset(PresetMinimal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := p.Extraction
	if e.Chunks.Enabled || e.Chunks.StoreText {
		t.Fatalf("minimal preset should not store chunks: %+v", e.Chunks)
	}
	if !e.EntityLinking.StoreSourceText {
		t.Fatal("minimal preset should store source text on entities")
	}
	if e.Validation.Mode != ValidationIgnore {
		t.Fatalf("validation mode = %q", e.Validation.Mode)
	}
}

func TestManager_LoadPreset(t *testing.T) {
	m, err := NewManager(PresetBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CurrentPreset() != PresetBalanced {
		t.Fatalf("current preset = %q", m.CurrentPreset())
	}
	if got := m.Retrieval().Limits.MaxChunks; got != 10 {
		t.Fatalf("max_chunks = %d", got)
	}

	if _, err := m.LoadPreset("nope"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
	// A failed load leaves the active strategy untouched.
	if m.CurrentPreset() != PresetBalanced {
		t.Fatalf("current preset after failed load = %q", m.CurrentPreset())
	}
}

func TestManager_UpdateRetrieval(t *testing.T) {
	m, err := NewManager(PresetBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := m.UpdateRetrieval(map[string]any{
		"search": map[string]any{
			"graph_traversal": map[string]any{"max_depth": 4},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Search.GraphTraversal.MaxDepth != 4 {
		t.Fatalf("max_depth = %d", updated.Search.GraphTraversal.MaxDepth)
	}
	// Sibling values survive the partial update.
	if !updated.Search.ChunkTextSearch.Enabled || updated.Search.ChunkTextSearch.Method != "contains" {
		t.Fatalf("chunk_text_search changed: %+v", updated.Search.ChunkTextSearch)
	}
	if updated.Scoring.GraphMatchWeight != 1.5 {
		t.Fatalf("graph_match_weight changed: %v", updated.Scoring.GraphMatchWeight)
	}
	// The active strategy is now custom.
	if m.CurrentPreset() != "" {
		t.Fatalf("current preset = %q", m.CurrentPreset())
	}
}

func TestManager_UpdateRetrieval_Invalid(t *testing.T) {
	m, err := NewManager(PresetBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = m.UpdateRetrieval(map[string]any{
		"search": map[string]any{
			"graph_traversal": map[string]any{"max_depth": 99},
		},
	})
	if !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
	// A rejected update changes nothing.
	if got := m.Retrieval().Search.GraphTraversal.MaxDepth; got != 2 {
		t.Fatalf("max_depth = %d after rejected update", got)
	}
	if m.CurrentPreset() != PresetBalanced {
		t.Fatalf("current preset = %q after rejected update", m.CurrentPreset())
	}
}

func TestManager_SnapshotIsolation(t *testing.T) {
	m, err := NewManager(PresetResearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := m.Extraction()
	if len(snap.Metadata.SectionHeadings.Patterns) == 0 {
		t.Fatal("research preset should carry section patterns")
	}
	snap.Metadata.SectionHeadings.Patterns[0] = "mutated"

	if got := m.Extraction().Metadata.SectionHeadings.Patterns[0]; got == "mutated" {
		t.Fatal("snapshot mutation leaked into the manager")
	}
}

func TestManager_FileRoundTrip(t *testing.T) {
	m, err := NewManager(PresetComprehensive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.UpdateRetrieval(map[string]any{
		"limits": map[string]any{"max_chunks": 7},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := m.SaveFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := NewManager(PresetBalanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := other.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Retrieval.Limits.MaxChunks != 7 {
		t.Fatalf("max_chunks = %d after round trip", loaded.Retrieval.Limits.MaxChunks)
	}
	if loaded.Extraction.Name != PresetComprehensive {
		t.Fatalf("extraction name = %q", loaded.Extraction.Name)
	}
	// Loading from file means the preset is custom.
	if other.CurrentPreset() != "" {
		t.Fatalf("current preset = %q", other.CurrentPreset())
	}
}

func TestManager_Status(t *testing.T) {
	m, err := NewManager(PresetSpeed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := m.Status()
	if status.CurrentPreset != PresetSpeed {
		t.Fatalf("current_preset = %q", status.CurrentPreset)
	}
	if status.Retrieval.SearchMethods["keyword_matching"] {
		t.Fatal("speed preset should disable keyword matching")
	}
	if !status.Retrieval.SearchMethods["graph_traversal"] {
		t.Fatal("speed preset should enable graph traversal")
	}
	if status.Retrieval.ContextExpansion {
		t.Fatal("speed preset should disable neighbor expansion")
	}
	if status.Extraction.MetadataEnabled["key_terms"] {
		t.Fatal("speed preset should disable key terms")
	}
}
