package strategy

// Preset names, in their canonical listing order.
const (
	PresetMinimal       = "minimal"
	PresetBalanced      = "balanced"
	PresetComprehensive = "comprehensive"
	PresetSpeed         = "speed"
	PresetResearch      = "research"
	PresetStrict        = "strict"
)

// PresetNames returns all preset names in listing order.
func PresetNames() []string {
	return []string{
		PresetMinimal,
		PresetBalanced,
		PresetComprehensive,
		PresetSpeed,
		PresetResearch,
		PresetStrict,
	}
}

// PresetInfo describes a preset for listing.
type PresetInfo struct {
	Name                  string `json:"name"`
	ExtractionDescription string `json:"extraction_description"`
	RetrievalDescription  string `json:"retrieval_description"`
}

// ListPresets returns name and descriptions for every preset.
func ListPresets() []PresetInfo {
	out := make([]PresetInfo, 0, len(PresetNames()))
	for _, name := range PresetNames() {
		p, _ := Preset(name)
		out = append(out, PresetInfo{
			Name:                  name,
			ExtractionDescription: p.Extraction.Description,
			RetrievalDescription:  p.Retrieval.Description,
		})
	}
	return out
}

// Preset returns a fresh copy of the named preset, or ErrUnknownPreset.
// Every field not overridden by the preset carries the default value, so a
// preset is always a complete, valid strategy.
func Preset(name string) (Combined, error) {
	switch name {
	case PresetMinimal:
		return minimalPreset(), nil
	case PresetBalanced:
		return balancedPreset(), nil
	case PresetComprehensive:
		return comprehensivePreset(), nil
	case PresetSpeed:
		return speedPreset(), nil
	case PresetResearch:
		return researchPreset(), nil
	case PresetStrict:
		return strictPreset(), nil
	default:
		return Combined{}, ErrUnknownPreset
	}
}

// minimalPreset extracts entities only, no chunk storage, and retrieves via
// graph traversal alone.
func minimalPreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetMinimal
	e.Description = "Minimal extraction - entities only, no chunk storage"
	e.Chunking.ChunkSize = 1500
	e.Chunking.ChunkOverlap = 100
	e.Chunks.Enabled = false
	e.Chunks.StoreText = false
	e.ChunkLinking.Sequential = false
	e.ChunkLinking.ToDocument = false
	e.Metadata.PageNumbers.Enabled = false
	e.Metadata.SectionHeadings.Enabled = false
	e.Metadata.TemporalReferences.Enabled = false
	e.Metadata.KeyTerms.Enabled = false
	e.Metadata.Statistics = StatisticsConfig{}
	e.EntityLinking.Enabled = false
	e.EntityLinking.StoreSourceText = true
	e.Validation.Mode = ValidationIgnore

	r := DefaultRetrieval()
	r.Name = PresetMinimal
	r.Description = "Minimal retrieval - graph only"
	r.Search.ChunkTextSearch.Enabled = false
	r.Search.KeywordMatching.Enabled = false
	r.Search.TemporalFiltering.Enabled = false
	r.Context.ExpandNeighbors.Enabled = false
	r.Context.IncludeMetadata = IncludeMetadataConfig{}
	r.Scoring.EntityConfidenceMin = 0.3
	r.Scoring.GraphMatchWeight = 1.0
	r.Scoring.TextMatchWeight = 0.0
	r.Limits = LimitsConfig{MaxChunks: 5, MaxEntities: 15, MaxContextTokens: 2000}

	return Combined{Extraction: e, Retrieval: r}
}

// balancedPreset is the general purpose configuration.
func balancedPreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetBalanced
	e.Description = "Balanced extraction - chunks with basic metadata"
	e.Metadata.TemporalReferences.ExtractRelative = false
	e.Metadata.KeyTerms.MaxTerms = 8

	r := DefaultRetrieval()
	r.Name = PresetBalanced
	r.Description = "Balanced retrieval - graph + text search"
	r.Context.IncludeMetadata.TemporalRefs = false

	return Combined{Extraction: e, Retrieval: r}
}

// comprehensivePreset enables everything; suited to complex documents where
// depth matters more than throughput.
func comprehensivePreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetComprehensive
	e.Description = "Comprehensive extraction - all metadata enabled"
	e.Chunking.ChunkSize = 800
	e.Metadata.KeyTerms.MaxTerms = 15
	e.Metadata.Statistics.SentenceCount = true
	e.EntityLinking.StoreSourceText = true
	e.Validation.Mode = ValidationStoreValid
	e.Validation.FailOnMissingRequired = true

	r := DefaultRetrieval()
	r.Name = PresetComprehensive
	r.Description = "Comprehensive retrieval - all search methods"
	r.Search.GraphTraversal.MaxDepth = 3
	r.Search.KeywordMatching.MatchThreshold = 0.4
	r.Context.ExpandNeighbors.Before = 2
	r.Context.ExpandNeighbors.After = 2
	r.Context.IncludeMetadata.KeyTerms = true
	r.Scoring.EntityConfidenceMin = 0.4
	r.Scoring.TextMatchWeight = 1.2
	r.Limits = LimitsConfig{MaxChunks: 15, MaxEntities: 30, MaxContextTokens: 6000}

	return Combined{Extraction: e, Retrieval: r}
}

// speedPreset trades metadata depth for throughput.
func speedPreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetSpeed
	e.Description = "Speed optimized - minimal metadata, fast processing"
	e.Chunking.ChunkSize = 2000
	e.Chunking.ChunkOverlap = 100
	e.Chunks.MaxTextLength = 2000
	e.Metadata.SectionHeadings.Enabled = false
	e.Metadata.TemporalReferences.Enabled = false
	e.Metadata.KeyTerms.Enabled = false
	e.Metadata.Statistics.CharCount = false
	e.Validation.Mode = ValidationIgnore

	r := DefaultRetrieval()
	r.Name = PresetSpeed
	r.Description = "Speed optimized - graph only, limited context"
	r.Search.GraphTraversal.MaxDepth = 1
	r.Search.KeywordMatching.Enabled = false
	r.Search.TemporalFiltering.Enabled = false
	r.Context.ExpandNeighbors.Enabled = false
	r.Context.IncludeMetadata = IncludeMetadataConfig{PageNumber: true}
	r.Scoring.EntityConfidenceMin = 0.6
	r.Scoring.GraphMatchWeight = 1.0
	r.Limits = LimitsConfig{MaxChunks: 5, MaxEntities: 10, MaxContextTokens: 2000}

	return Combined{Extraction: e, Retrieval: r}
}

// researchPreset targets academic documents: section structure and key
// terms weigh heavier, text matches outrank graph matches.
func researchPreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetResearch
	e.Description = "Research optimized - key terms, citations, sections"
	e.Chunking.ChunkSize = 1200
	e.Metadata.SectionHeadings.Patterns = []string{
		`^(Abstract|Introduction|Methods?|Results?|Discussion|Conclusion|References)`,
		`^\d+\.\s+[A-Z]`,
		`^[A-Z][A-Z\s]{3,}$`,
	}
	e.Metadata.TemporalReferences.ExtractDurations = false
	e.Metadata.TemporalReferences.ExtractRelative = false
	e.Metadata.KeyTerms.MaxTerms = 15
	e.Metadata.Statistics.CharCount = false
	e.Metadata.Statistics.SentenceCount = true

	r := DefaultRetrieval()
	r.Name = PresetResearch
	r.Description = "Research optimized - keyword focus, section context"
	r.Search.KeywordMatching.MatchThreshold = 0.4
	r.Search.TemporalFiltering.Enabled = false
	r.Context.IncludeMetadata.TemporalRefs = false
	r.Context.IncludeMetadata.KeyTerms = true
	r.Scoring.GraphMatchWeight = 1.2
	r.Scoring.TextMatchWeight = 1.5
	r.Limits = LimitsConfig{MaxChunks: 12, MaxEntities: 25, MaxContextTokens: 5000}

	return Combined{Extraction: e, Retrieval: r}
}

// strictPreset stores only fully validated entities and retrieves only high
// confidence matches.
func strictPreset() Combined {
	e := DefaultExtraction()
	e.Name = PresetStrict
	e.Description = "Strict extraction - only validated entities stored"
	e.Chunking.ChunkSize = 800
	e.Metadata.TemporalReferences.ExtractRelative = false
	e.Validation.Mode = ValidationStrict
	e.Validation.FailOnMissingRequired = true
	e.Validation.FailOnBrokenRelationships = true

	r := DefaultRetrieval()
	r.Name = PresetStrict
	r.Description = "Strict retrieval - high confidence matches only"
	r.Search.KeywordMatching.MatchThreshold = 0.6
	r.Scoring.EntityConfidenceMin = 0.7

	return Combined{Extraction: e, Retrieval: r}
}
