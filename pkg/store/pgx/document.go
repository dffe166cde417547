package pgx

import (
	"context"
	"encoding/json"

	"github.com/anmolg1997/kg-rag/pkg/common"
)

// SaveDocument persists a document record. Saving an existing identifier
// updates filename, page count, and metadata in place.
func (s *GraphDBStorage) SaveDocument(ctx context.Context, doc common.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO documents (id, filename, page_count, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET filename = EXCLUDED.filename,
		    page_count = EXCLUDED.page_count,
		    metadata = EXCLUDED.metadata
	`, doc.ID, doc.Filename, doc.PageCount, metadata)
	return err
}

// DeleteDocument purges a document together with its chunks and all entities
// and relationships extracted from those chunks.
func (s *GraphDBStorage) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM relationships r
		USING entities e
		WHERE (r.source_id = e.id OR r.target_id = e.id)
		  AND e.source_chunk_id IN (SELECT id FROM chunks WHERE document_id = $1)
	`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM entities
		WHERE source_chunk_id IN (SELECT id FROM chunks WHERE document_id = $1)
	`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
