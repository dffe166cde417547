package common

// Document represents an ingested source document. Documents are created
// once at ingestion time and are immutable afterwards; they disappear only
// through an explicit purge.
type Document struct {
	ID        string         `json:"id"`
	Filename  string         `json:"filename"`
	PageCount int            `json:"page_count"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TemporalRefKind classifies a temporal reference found in chunk text.
type TemporalRefKind string

const (
	TemporalDate     TemporalRefKind = "date"
	TemporalDuration TemporalRefKind = "duration"
	TemporalRelative TemporalRefKind = "relative"
)

// TemporalRef is a temporal expression extracted from a chunk, keeping both
// the original surface text and a normalized value.
type TemporalRef struct {
	Kind       TemporalRefKind `json:"kind"`
	Text       string          `json:"text"`
	Normalized string          `json:"normalized,omitempty"`
	Context    string          `json:"context,omitempty"`
}

// Chunk is a contiguous, ordered slice of a document's text. Chunks of a
// document form a total order by ChunkIndex (0-based, dense, unique within
// the document); sequential links connect index i to i+1 only. Chunks are
// immutable after creation.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`

	PageNumber     int    `json:"page_number,omitempty"`
	SectionHeading string `json:"section_heading,omitempty"`
	SectionLevel   int    `json:"section_level,omitempty"`

	TemporalRefs []TemporalRef `json:"temporal_refs,omitempty"`
	KeyTerms     []string      `json:"key_terms,omitempty"`

	WordCount     int `json:"word_count,omitempty"`
	CharCount     int `json:"char_count,omitempty"`
	SentenceCount int `json:"sentence_count,omitempty"`
}

// Entity is a node in the knowledge graph. The type vocabulary is open and
// schema-driven rather than a fixed enum, so an entity is a tagged record:
// a type name plus a heterogeneous property bag. Entities are created during
// extraction and are read-only from the retrieval engine's perspective.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Confidence float64        `json:"confidence"`

	SourceText    string `json:"source_text,omitempty"`
	SourceChunkID string `json:"source_chunk_id,omitempty"`
}

// Name returns a human-readable label for the entity, preferring the usual
// naming properties and falling back to the id.
func (e Entity) Name() string {
	for _, key := range []string{"name", "title"} {
		if v, ok := e.Properties[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return e.ID
}

// Relationship is a typed, directed edge between two entities. Both
// endpoints are expected to reference existing entities; that invariant is
// enforced at ingestion time, and readers must tolerate dangling references.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}
