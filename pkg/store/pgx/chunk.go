package pgx

import (
	"context"
	"encoding/json"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/store"
)

const chunkColumns = `
	id, document_id, chunk_index, start_pos, end_pos, text,
	page_number, section_heading, section_level,
	temporal_refs, key_terms, word_count, char_count, sentence_count`

func scanChunk(row pgxv5.Row) (common.Chunk, error) {
	var (
		c            common.Chunk
		temporalRefs []byte
	)
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Start, &c.End, &c.Text,
		&c.PageNumber, &c.SectionHeading, &c.SectionLevel,
		&temporalRefs, &c.KeyTerms, &c.WordCount, &c.CharCount, &c.SentenceCount,
	)
	if err != nil {
		return common.Chunk{}, err
	}
	if len(temporalRefs) > 0 {
		if err := json.Unmarshal(temporalRefs, &c.TemporalRefs); err != nil {
			return common.Chunk{}, err
		}
	}
	return c, nil
}

func collectChunks(rows pgxv5.Rows) ([]common.Chunk, error) {
	defer rows.Close()

	chunks := make([]common.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SaveChunks persists a batch of chunks.
func (s *GraphDBStorage) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, c := range chunks {
		temporalRefs, err := json.Marshal(c.TemporalRefs)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO chunks (`+chunkColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.DocumentID, c.ChunkIndex, c.Start, c.End, c.Text,
			c.PageNumber, c.SectionHeading, c.SectionLevel,
			temporalRefs, c.KeyTerms, c.WordCount, c.CharCount, c.SentenceCount)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ChunksForDocument returns a document's chunks ordered by ordinal index.
func (s *GraphDBStorage) ChunksForDocument(
	ctx context.Context,
	documentID string,
	limit int,
) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks
		WHERE document_id = $1
		ORDER BY chunk_index
		LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, err
	}
	return collectChunks(rows)
}

// SearchChunkText performs a case-insensitive substring search over chunk
// text. An empty documentID searches the whole corpus.
func (s *GraphDBStorage) SearchChunkText(
	ctx context.Context,
	text string,
	documentID string,
	limit int,
) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks
		WHERE text ILIKE '%' || $1 || '%'
		  AND ($2 = '' OR document_id = $2)
		ORDER BY document_id, chunk_index
		LIMIT $3
	`, text, documentID, limit)
	if err != nil {
		return nil, err
	}
	return collectChunks(rows)
}

// ChunksByKeyTerms returns chunks whose precomputed key terms overlap the
// supplied set, ordered by the number of distinct matches descending.
func (s *GraphDBStorage) ChunksByKeyTerms(
	ctx context.Context,
	terms []string,
	limit int,
) ([]store.KeyTermMatch, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT `+chunkColumns+`,
		       (SELECT count(DISTINCT t)
		        FROM unnest(key_terms) AS t
		        WHERE t = ANY($1::text[])) AS match_count
		FROM chunks
		WHERE key_terms && $1::text[]
		ORDER BY match_count DESC, document_id, chunk_index
		LIMIT $2
	`, terms, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]store.KeyTermMatch, 0)
	for rows.Next() {
		var (
			c            common.Chunk
			temporalRefs []byte
			count        int
		)
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Start, &c.End, &c.Text,
			&c.PageNumber, &c.SectionHeading, &c.SectionLevel,
			&temporalRefs, &c.KeyTerms, &c.WordCount, &c.CharCount, &c.SentenceCount,
			&count,
		); err != nil {
			return nil, err
		}
		if len(temporalRefs) > 0 {
			if err := json.Unmarshal(temporalRefs, &c.TemporalRefs); err != nil {
				return nil, err
			}
		}
		matches = append(matches, store.KeyTermMatch{Chunk: c, MatchCount: count})
	}
	return matches, rows.Err()
}

// ChunksWithTemporalRefs returns chunks carrying at least one temporal
// reference, in document order.
func (s *GraphDBStorage) ChunksWithTemporalRefs(
	ctx context.Context,
	limit int,
) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks
		WHERE temporal_refs IS NOT NULL
		  AND jsonb_array_length(temporal_refs) > 0
		ORDER BY document_id, chunk_index
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return collectChunks(rows)
}

// NeighborChunks returns up to before predecessors and after successors of
// the chunk, in ascending index order. The anchor chunk itself is excluded.
func (s *GraphDBStorage) NeighborChunks(
	ctx context.Context,
	chunkID string,
	before, after int,
) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks
		WHERE document_id = (SELECT document_id FROM chunks WHERE id = $1)
		  AND chunk_index BETWEEN
		        (SELECT chunk_index FROM chunks WHERE id = $1) - $2
		    AND (SELECT chunk_index FROM chunks WHERE id = $1) + $3
		  AND id <> $1
		ORDER BY chunk_index
	`, chunkID, before, after)
	if err != nil {
		return nil, err
	}
	return collectChunks(rows)
}
