// Package strategy defines the declarative configuration trees that
// parameterize ingestion and retrieval. A strategy is pure data: toggles,
// weights, and limits with defaults, named presets, and recursive partial
// updates. No component ever observes a half-applied strategy; the Manager
// hands out value snapshots.
package strategy

import "errors"

var (
	// ErrUnknownPreset is returned when a preset name does not exist.
	ErrUnknownPreset = errors.New("unknown strategy preset")
	// ErrInvalidStrategy is returned when a strategy value or partial update
	// violates the configuration constraints.
	ErrInvalidStrategy = errors.New("invalid strategy")
)

// ChunkingConfig controls how document text is split into chunks.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy" json:"strategy" validate:"oneof=fixed semantic sentence"`
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size" validate:"gte=100,lte=10000"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap" validate:"gte=0,lte=500"`
}

// ChunkStorageConfig controls whether and how chunks are persisted.
type ChunkStorageConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	StoreText     bool `yaml:"store_text" json:"store_text"`
	MaxTextLength int  `yaml:"max_text_length" json:"max_text_length" validate:"gte=0"`
}

// ChunkLinkingConfig controls which chunk relationships are created.
type ChunkLinkingConfig struct {
	Sequential bool `yaml:"sequential" json:"sequential"`
	ToDocument bool `yaml:"to_document" json:"to_document"`
}

// PageNumberConfig controls page number extraction.
type PageNumberConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SectionHeadingConfig controls section heading detection.
type SectionHeadingConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// TemporalReferenceConfig controls temporal reference extraction.
type TemporalReferenceConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	ExtractDates     bool `yaml:"extract_dates" json:"extract_dates"`
	ExtractDurations bool `yaml:"extract_durations" json:"extract_durations"`
	ExtractRelative  bool `yaml:"extract_relative" json:"extract_relative"`
}

// KeyTermConfig controls key term extraction.
type KeyTermConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Method   string `yaml:"method" json:"method" validate:"oneof=llm tfidf regex simple"`
	MaxTerms int    `yaml:"max_terms" json:"max_terms" validate:"gte=1,lte=50"`
}

// StatisticsConfig controls which chunk statistics are computed.
type StatisticsConfig struct {
	WordCount     bool `yaml:"word_count" json:"word_count"`
	CharCount     bool `yaml:"char_count" json:"char_count"`
	SentenceCount bool `yaml:"sentence_count" json:"sentence_count"`
}

// MetadataExtractionConfig groups all chunk metadata extraction settings.
type MetadataExtractionConfig struct {
	PageNumbers        PageNumberConfig        `yaml:"page_numbers" json:"page_numbers"`
	SectionHeadings    SectionHeadingConfig    `yaml:"section_headings" json:"section_headings"`
	TemporalReferences TemporalReferenceConfig `yaml:"temporal_references" json:"temporal_references"`
	KeyTerms           KeyTermConfig           `yaml:"key_terms" json:"key_terms"`
	Statistics         StatisticsConfig        `yaml:"statistics" json:"statistics"`
}

// EntityLinkingConfig controls entity-to-chunk linking.
type EntityLinkingConfig struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	StoreSourceText bool `yaml:"store_source_text" json:"store_source_text"`
	StoreChunkIndex bool `yaml:"store_chunk_index" json:"store_chunk_index"`
}

// Validation modes for extracted graphs.
const (
	ValidationStrict     = "strict"
	ValidationWarn       = "warn"
	ValidationStoreValid = "store_valid"
	ValidationIgnore     = "ignore"
)

// ValidationConfig controls schema validation behavior during ingestion.
//
// Modes: strict blocks storage on any error; warn logs findings but stores
// everything; store_valid stores only entities that pass; ignore skips
// validation entirely.
type ValidationConfig struct {
	Mode                      string `yaml:"mode" json:"mode" validate:"oneof=strict warn store_valid ignore"`
	FailOnMissingRequired     bool   `yaml:"fail_on_missing_required" json:"fail_on_missing_required"`
	FailOnBrokenRelationships bool   `yaml:"fail_on_broken_relationships" json:"fail_on_broken_relationships"`
}

// ExtractionStrategy is the complete configuration for how documents are
// processed and what metadata is extracted during ingestion.
type ExtractionStrategy struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	Chunking      ChunkingConfig           `yaml:"chunking" json:"chunking"`
	Chunks        ChunkStorageConfig       `yaml:"chunks" json:"chunks"`
	ChunkLinking  ChunkLinkingConfig       `yaml:"chunk_linking" json:"chunk_linking"`
	Metadata      MetadataExtractionConfig `yaml:"metadata" json:"metadata"`
	EntityLinking EntityLinkingConfig      `yaml:"entity_linking" json:"entity_linking"`
	Validation    ValidationConfig         `yaml:"validation" json:"validation"`
}

// Clone returns a deep copy of the extraction strategy.
func (s ExtractionStrategy) Clone() ExtractionStrategy {
	out := s
	if s.Metadata.SectionHeadings.Patterns != nil {
		out.Metadata.SectionHeadings.Patterns = append([]string(nil), s.Metadata.SectionHeadings.Patterns...)
	}
	return out
}

// GraphTraversalConfig controls graph-based retrieval.
type GraphTraversalConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	MaxDepth int  `yaml:"max_depth" json:"max_depth" validate:"gte=1,lte=5"`
}

// ChunkTextSearchConfig controls chunk text search.
type ChunkTextSearchConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Method  string `yaml:"method" json:"method" validate:"oneof=contains fulltext regex"`
}

// KeywordMatchingConfig controls matching against precomputed key terms.
type KeywordMatchingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	MatchThreshold float64 `yaml:"match_threshold" json:"match_threshold" validate:"gte=0,lte=1"`
}

// TemporalFilteringConfig controls temporal-based filtering.
type TemporalFilteringConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	AutoDetect bool `yaml:"auto_detect" json:"auto_detect"`
}

// SearchConfig groups the four retrieval signal methods.
type SearchConfig struct {
	GraphTraversal    GraphTraversalConfig    `yaml:"graph_traversal" json:"graph_traversal"`
	ChunkTextSearch   ChunkTextSearchConfig   `yaml:"chunk_text_search" json:"chunk_text_search"`
	KeywordMatching   KeywordMatchingConfig   `yaml:"keyword_matching" json:"keyword_matching"`
	TemporalFiltering TemporalFilteringConfig `yaml:"temporal_filtering" json:"temporal_filtering"`
}

// NeighborExpansionConfig controls context expansion to neighboring chunks.
type NeighborExpansionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Before  int  `yaml:"before" json:"before" validate:"gte=0,lte=5"`
	After   int  `yaml:"after" json:"after" validate:"gte=0,lte=5"`
}

// IncludeMetadataConfig controls which chunk metadata is rendered into the
// assembled context text.
type IncludeMetadataConfig struct {
	SectionHeading bool `yaml:"section_heading" json:"section_heading"`
	PageNumber     bool `yaml:"page_number" json:"page_number"`
	TemporalRefs   bool `yaml:"temporal_refs" json:"temporal_refs"`
	KeyTerms       bool `yaml:"key_terms" json:"key_terms"`
}

// ContextConfig groups context assembly settings.
type ContextConfig struct {
	ExpandNeighbors NeighborExpansionConfig `yaml:"expand_neighbors" json:"expand_neighbors"`
	IncludeMetadata IncludeMetadataConfig   `yaml:"include_metadata" json:"include_metadata"`
}

// ScoringConfig controls result scoring and confidence filtering.
type ScoringConfig struct {
	EntityConfidenceMin float64 `yaml:"entity_confidence_min" json:"entity_confidence_min" validate:"gte=0,lte=1"`
	GraphMatchWeight    float64 `yaml:"graph_match_weight" json:"graph_match_weight" validate:"gte=0"`
	TextMatchWeight     float64 `yaml:"text_match_weight" json:"text_match_weight" validate:"gte=0"`
	RecencyBoost        bool    `yaml:"recency_boost" json:"recency_boost"`
}

// LimitsConfig bounds the size of retrieval output.
type LimitsConfig struct {
	MaxChunks        int `yaml:"max_chunks" json:"max_chunks" validate:"gte=1,lte=50"`
	MaxEntities      int `yaml:"max_entities" json:"max_entities" validate:"gte=1,lte=100"`
	MaxContextTokens int `yaml:"max_context_tokens" json:"max_context_tokens" validate:"gte=500,lte=32000"`
}

// RetrievalStrategy is the complete configuration for how information is
// found and assembled when answering queries.
type RetrievalStrategy struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	Search  SearchConfig  `yaml:"search" json:"search"`
	Context ContextConfig `yaml:"context" json:"context"`
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
}

// Clone returns a copy of the retrieval strategy. The struct contains no
// reference types, so a value copy is already deep; Clone exists to keep
// the call sites symmetrical with ExtractionStrategy.
func (s RetrievalStrategy) Clone() RetrievalStrategy {
	return s
}

// Combined carries both strategy trees, the unit of presets and of file
// persistence.
type Combined struct {
	Extraction ExtractionStrategy `yaml:"extraction" json:"extraction"`
	Retrieval  RetrievalStrategy  `yaml:"retrieval" json:"retrieval"`
}

// Clone returns a deep copy of the combined strategy.
func (c Combined) Clone() Combined {
	return Combined{
		Extraction: c.Extraction.Clone(),
		Retrieval:  c.Retrieval.Clone(),
	}
}

// defaultSectionPatterns are the heading detection patterns used unless a
// preset overrides them.
var defaultSectionPatterns = []string{
	`^(ARTICLE|Article|SECTION|Section)\s+\d+`,
	`^\d+\.\s+[A-Z]`,
	`^[A-Z][A-Z\s]{3,}$`,
}

// DefaultExtraction returns the default extraction strategy.
func DefaultExtraction() ExtractionStrategy {
	return ExtractionStrategy{
		Name:        "default",
		Description: "Default extraction strategy",
		Chunking: ChunkingConfig{
			Strategy:     "fixed",
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Chunks: ChunkStorageConfig{
			Enabled:   true,
			StoreText: true,
		},
		ChunkLinking: ChunkLinkingConfig{
			Sequential: true,
			ToDocument: true,
		},
		Metadata: MetadataExtractionConfig{
			PageNumbers: PageNumberConfig{Enabled: true},
			SectionHeadings: SectionHeadingConfig{
				Enabled:  true,
				Patterns: append([]string(nil), defaultSectionPatterns...),
			},
			TemporalReferences: TemporalReferenceConfig{
				Enabled:          true,
				ExtractDates:     true,
				ExtractDurations: true,
				ExtractRelative:  true,
			},
			KeyTerms: KeyTermConfig{
				Enabled:  true,
				Method:   "simple",
				MaxTerms: 10,
			},
			Statistics: StatisticsConfig{
				WordCount: true,
				CharCount: true,
			},
		},
		EntityLinking: EntityLinkingConfig{
			Enabled:         true,
			StoreChunkIndex: true,
		},
		Validation: ValidationConfig{
			Mode:                      ValidationWarn,
			FailOnBrokenRelationships: true,
		},
	}
}

// DefaultRetrieval returns the default retrieval strategy.
func DefaultRetrieval() RetrievalStrategy {
	return RetrievalStrategy{
		Name:        "default",
		Description: "Default retrieval strategy",
		Search: SearchConfig{
			GraphTraversal:    GraphTraversalConfig{Enabled: true, MaxDepth: 2},
			ChunkTextSearch:   ChunkTextSearchConfig{Enabled: true, Method: "contains"},
			KeywordMatching:   KeywordMatchingConfig{Enabled: true, MatchThreshold: 0.5},
			TemporalFiltering: TemporalFilteringConfig{Enabled: true, AutoDetect: true},
		},
		Context: ContextConfig{
			ExpandNeighbors: NeighborExpansionConfig{Enabled: true, Before: 1, After: 1},
			IncludeMetadata: IncludeMetadataConfig{
				SectionHeading: true,
				PageNumber:     true,
				TemporalRefs:   true,
			},
		},
		Scoring: ScoringConfig{
			EntityConfidenceMin: 0.5,
			GraphMatchWeight:    1.5,
			TextMatchWeight:     1.0,
		},
		Limits: LimitsConfig{
			MaxChunks:        10,
			MaxEntities:      20,
			MaxContextTokens: 4000,
		},
	}
}
