package ingest

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/schema"
	"github.com/anmolg1997/kg-rag/pkg/store"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// ErrValidationFailed is returned in strict validation mode when the
// extracted graph has validation errors.
var ErrValidationFailed = errors.New("graph validation failed")

// Result summarizes one ingestion run.
type Result struct {
	DocumentID        string   `json:"document_id"`
	ChunkCount        int      `json:"chunk_count"`
	EntityCount       int      `json:"entity_count"`
	RelationshipCount int      `json:"relationship_count"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Pipeline turns document text into stored chunks and stores pre-extracted
// graphs under the extraction strategy's validation policy.
type Pipeline struct {
	storage store.GraphStorage
	sch     *schema.Schema
}

// NewPipeline creates an ingestion pipeline over the given storage and
// schema descriptor.
func NewPipeline(storage store.GraphStorage, sch *schema.Schema) *Pipeline {
	return &Pipeline{storage: storage, sch: sch}
}

// IngestDocument chunks the text, extracts metadata, and persists the
// document and its chunks as the strategy dictates.
func (p *Pipeline) IngestDocument(
	ctx context.Context,
	doc common.Document,
	text string,
	strat strategy.ExtractionStrategy,
) (Result, error) {
	if doc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return Result{}, err
		}
		doc.ID = id
	}

	if err := p.storage.SaveDocument(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("save document: %w", err)
	}

	result := Result{DocumentID: doc.ID}
	if !strat.Chunks.Enabled {
		logger.Debug("chunk storage disabled, document record only", "document", doc.ID)
		return result, nil
	}

	chunker := NewChunker(strat.Chunking)
	extractor := NewMetadataExtractor(strat.Metadata)

	pieces := chunker.Chunk(text)
	chunks := make([]common.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunk := common.Chunk{
			ID:         fmt.Sprintf("%s-%d", doc.ID, piece.Index),
			DocumentID: doc.ID,
			ChunkIndex: piece.Index,
			Start:      piece.Start,
			End:        piece.End,
			Text:       piece.Text,
		}
		extractor.Apply(&chunk)

		if !strat.Chunks.StoreText {
			chunk.Text = ""
		} else if limit := strat.Chunks.MaxTextLength; limit > 0 && len(chunk.Text) > limit {
			chunk.Text = chunk.Text[:limit]
		}

		chunks = append(chunks, chunk)
	}

	if err := p.storage.SaveChunks(ctx, chunks); err != nil {
		return Result{}, fmt.Errorf("save chunks: %w", err)
	}

	result.ChunkCount = len(chunks)
	logger.Info("ingested document", "document", doc.ID, "chunks", len(chunks))
	return result, nil
}

// IngestGraph validates pre-extracted entities and relationships against the
// schema and stores them according to the validation mode: strict blocks on
// any error, warn logs and stores everything, store_valid drops failing
// entities and their relationships, ignore skips validation.
func (p *Pipeline) IngestGraph(
	ctx context.Context,
	entities []common.Entity,
	relationships []common.Relationship,
	strat strategy.ExtractionStrategy,
) (Result, error) {
	entities = applyEntityLinking(entities, strat.EntityLinking)

	result := Result{}

	if p.sch == nil && strat.Validation.Mode != strategy.ValidationIgnore {
		logger.Warn("no schema loaded, skipping graph validation")
	}

	if p.sch != nil && strat.Validation.Mode != strategy.ValidationIgnore {
		validation := p.sch.Validate(entities, relationships, schema.ValidateOptions{
			FailOnMissingRequired:     strat.Validation.FailOnMissingRequired,
			FailOnBrokenRelationships: strat.Validation.FailOnBrokenRelationships,
		})
		result.Warnings = validation.Warnings

		for _, w := range validation.Warnings {
			logger.Warn("graph validation", "finding", w)
		}
		for _, e := range validation.Errors {
			logger.Error("graph validation", "finding", e)
		}

		switch strat.Validation.Mode {
		case strategy.ValidationStrict:
			if !validation.Valid() {
				return result, fmt.Errorf("%w: %d errors", ErrValidationFailed, len(validation.Errors))
			}
		case strategy.ValidationStoreValid:
			entities, relationships = dropInvalid(entities, relationships, validation.InvalidEntityIDs)
		}
	}

	if err := p.storage.SaveEntities(ctx, entities); err != nil {
		return result, fmt.Errorf("save entities: %w", err)
	}
	if err := p.storage.SaveRelationships(ctx, relationships); err != nil {
		return result, fmt.Errorf("save relationships: %w", err)
	}

	result.EntityCount = len(entities)
	result.RelationshipCount = len(relationships)
	logger.Info("ingested graph", "entities", len(entities), "relationships", len(relationships))
	return result, nil
}

func applyEntityLinking(entities []common.Entity, cfg strategy.EntityLinkingConfig) []common.Entity {
	out := make([]common.Entity, len(entities))
	for i, e := range entities {
		if !cfg.Enabled {
			e.SourceChunkID = ""
		}
		if !cfg.StoreSourceText {
			e.SourceText = ""
		}
		out[i] = e
	}
	return out
}

// dropInvalid removes entities that failed validation and any relationship
// touching a dropped entity.
func dropInvalid(
	entities []common.Entity,
	relationships []common.Relationship,
	invalid map[string]bool,
) ([]common.Entity, []common.Relationship) {
	if len(invalid) == 0 {
		return entities, relationships
	}

	kept := make([]common.Entity, 0, len(entities))
	for _, e := range entities {
		if !invalid[e.ID] {
			kept = append(kept, e)
		}
	}

	keptRels := make([]common.Relationship, 0, len(relationships))
	for _, r := range relationships {
		if !invalid[r.SourceID] && !invalid[r.TargetID] {
			keptRels = append(keptRels, r)
		}
	}
	return kept, keptRels
}
