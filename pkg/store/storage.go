// Package store defines the interface for persisting and querying the
// knowledge graph and chunk corpus. The concrete PostgreSQL implementation
// lives in the pgx subpackage.
package store

import (
	"context"

	"github.com/anmolg1997/kg-rag/pkg/common"
)

// KeyTermMatch pairs a chunk with the number of distinct query keywords that
// matched its precomputed key terms.
type KeyTermMatch struct {
	Chunk      common.Chunk
	MatchCount int
}

// GraphStorage defines persistence and query operations over documents,
// chunks, entities, and relationships.
//
// All read methods return ordered row sets; retrieval issues no writes.
// Type and property names supplied by callers are always bound as query
// parameters, never spliced into query text.
type GraphStorage interface {
	// Ingestion writes.
	SaveDocument(ctx context.Context, doc common.Document) error
	SaveChunks(ctx context.Context, chunks []common.Chunk) error
	SaveEntities(ctx context.Context, entities []common.Entity) error
	SaveRelationships(ctx context.Context, relationships []common.Relationship) error
	DeleteDocument(ctx context.Context, documentID string) error

	// Entity and relationship reads.
	EntityTypes(ctx context.Context) ([]string, error)
	EntitiesByType(
		ctx context.Context,
		entityType string,
		propertyFilters map[string]string,
		limit int,
	) ([]common.Entity, error)
	RelatedEntities(ctx context.Context, entityIDs []string, limit int) ([]common.Entity, error)
	RelationshipsForEntities(ctx context.Context, entityIDs []string) ([]common.Relationship, error)

	// Chunk reads.
	ChunksForDocument(ctx context.Context, documentID string, limit int) ([]common.Chunk, error)
	SearchChunkText(ctx context.Context, text string, documentID string, limit int) ([]common.Chunk, error)
	ChunksByKeyTerms(ctx context.Context, terms []string, limit int) ([]KeyTermMatch, error)
	ChunksWithTemporalRefs(ctx context.Context, limit int) ([]common.Chunk, error)
	NeighborChunks(ctx context.Context, chunkID string, before, after int) ([]common.Chunk, error)
}
