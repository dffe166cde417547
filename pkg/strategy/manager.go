package strategy

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/anmolg1997/kg-rag/pkg/logger"
)

// Manager holds the active extraction and retrieval strategies and hands out
// consistent snapshots. All mutations validate first and swap atomically, so
// readers never see a partially applied update.
type Manager struct {
	mu         sync.RWMutex
	extraction ExtractionStrategy
	retrieval  RetrievalStrategy
	preset     string // empty once a custom strategy is active

	validate *validator.Validate
}

// NewManager creates a manager initialized from the named preset.
func NewManager(defaultPreset string) (*Manager, error) {
	m := &Manager{validate: validator.New()}
	if _, err := m.LoadPreset(defaultPreset); err != nil {
		return nil, err
	}
	return m, nil
}

// Extraction returns a snapshot of the active extraction strategy.
func (m *Manager) Extraction() ExtractionStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extraction.Clone()
}

// Retrieval returns a snapshot of the active retrieval strategy.
func (m *Manager) Retrieval() RetrievalStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retrieval.Clone()
}

// CurrentPreset returns the name of the active preset, or "" if a custom
// strategy is active.
func (m *Manager) CurrentPreset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preset
}

// Combined returns a snapshot of both active strategies.
func (m *Manager) Combined() Combined {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Combined{
		Extraction: m.extraction.Clone(),
		Retrieval:  m.retrieval.Clone(),
	}
}

// LoadPreset activates the named preset and returns it.
func (m *Manager) LoadPreset(name string) (Combined, error) {
	preset, err := Preset(name)
	if err != nil {
		return Combined{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, PresetNames())
	}

	m.mu.Lock()
	m.extraction = preset.Extraction
	m.retrieval = preset.Retrieval
	m.preset = name
	m.mu.Unlock()

	logger.Info("loaded strategy preset", "preset", name)
	return preset.Clone(), nil
}

// SetExtraction activates a custom extraction strategy.
func (m *Manager) SetExtraction(s ExtractionStrategy) error {
	if err := m.check(s); err != nil {
		return err
	}

	m.mu.Lock()
	m.extraction = s.Clone()
	m.preset = ""
	m.mu.Unlock()

	logger.Info("set custom extraction strategy", "name", s.Name)
	return nil
}

// SetRetrieval activates a custom retrieval strategy.
func (m *Manager) SetRetrieval(s RetrievalStrategy) error {
	if err := m.check(s); err != nil {
		return err
	}

	m.mu.Lock()
	m.retrieval = s.Clone()
	m.preset = ""
	m.mu.Unlock()

	logger.Info("set custom retrieval strategy", "name", s.Name)
	return nil
}

// UpdateExtraction applies a partial update to the active extraction
// strategy. Nested maps merge recursively; every other value replaces the
// current one. The update is validated as a whole before it takes effect.
func (m *Manager) UpdateExtraction(updates map[string]any) (ExtractionStrategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next ExtractionStrategy
	if err := mergeInto(m.extraction, updates, &next); err != nil {
		return ExtractionStrategy{}, err
	}
	if err := m.check(next); err != nil {
		return ExtractionStrategy{}, err
	}

	m.extraction = next
	m.preset = ""
	return next.Clone(), nil
}

// UpdateRetrieval applies a partial update to the active retrieval strategy.
func (m *Manager) UpdateRetrieval(updates map[string]any) (RetrievalStrategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next RetrievalStrategy
	if err := mergeInto(m.retrieval, updates, &next); err != nil {
		return RetrievalStrategy{}, err
	}
	if err := m.check(next); err != nil {
		return RetrievalStrategy{}, err
	}

	m.retrieval = next
	m.preset = ""
	return next.Clone(), nil
}

// Status summarizes the active strategies.
type Status struct {
	CurrentPreset string           `json:"current_preset"`
	Extraction    ExtractionStatus `json:"extraction"`
	Retrieval     RetrievalStatus  `json:"retrieval"`
}

// ExtractionStatus is the extraction half of Status.
type ExtractionStatus struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ChunksEnabled   bool            `json:"chunks_enabled"`
	MetadataEnabled map[string]bool `json:"metadata_enabled"`
	EntityLinking   bool            `json:"entity_linking"`
}

// RetrievalStatus is the retrieval half of Status.
type RetrievalStatus struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	SearchMethods    map[string]bool `json:"search_methods"`
	ContextExpansion bool            `json:"context_expansion"`
}

// Status returns a summary of the active strategies.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		CurrentPreset: m.preset,
		Extraction: ExtractionStatus{
			Name:          m.extraction.Name,
			Description:   m.extraction.Description,
			ChunksEnabled: m.extraction.Chunks.Enabled,
			MetadataEnabled: map[string]bool{
				"page_numbers":        m.extraction.Metadata.PageNumbers.Enabled,
				"section_headings":    m.extraction.Metadata.SectionHeadings.Enabled,
				"temporal_references": m.extraction.Metadata.TemporalReferences.Enabled,
				"key_terms":           m.extraction.Metadata.KeyTerms.Enabled,
			},
			EntityLinking: m.extraction.EntityLinking.Enabled,
		},
		Retrieval: RetrievalStatus{
			Name:        m.retrieval.Name,
			Description: m.retrieval.Description,
			SearchMethods: map[string]bool{
				"graph_traversal":    m.retrieval.Search.GraphTraversal.Enabled,
				"chunk_text_search":  m.retrieval.Search.ChunkTextSearch.Enabled,
				"keyword_matching":   m.retrieval.Search.KeywordMatching.Enabled,
				"temporal_filtering": m.retrieval.Search.TemporalFiltering.Enabled,
			},
			ContextExpansion: m.retrieval.Context.ExpandNeighbors.Enabled,
		},
	}
}

// check validates a strategy value against the field constraints and wraps
// failures in ErrInvalidStrategy.
func (m *Manager) check(s any) error {
	if err := m.validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	return nil
}

// mergeInto round-trips current through YAML into a generic map, merges the
// updates recursively, and decodes the result into out. Unknown keys in the
// updates surface as a decode error.
func mergeInto(current any, updates map[string]any, out any) error {
	raw, err := yaml.Marshal(current)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}

	base := map[string]any{}
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}

	deepMerge(base, updates)

	merged, err := yaml.Marshal(base)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	if err := yaml.Unmarshal(merged, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	return nil
}

// deepMerge merges updates into base. Maps merge recursively, everything
// else replaces.
func deepMerge(base, updates map[string]any) {
	for key, value := range updates {
		if existing, ok := base[key].(map[string]any); ok {
			if update, ok := value.(map[string]any); ok {
				deepMerge(existing, update)
				continue
			}
		}
		base[key] = value
	}
}
