package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/anmolg1997/kg-rag/pkg/common"
)

const entityColumns = `id, type, properties, confidence, source_text, source_chunk_id`

func collectEntities(rows pgxv5.Rows) ([]common.Entity, error) {
	defer rows.Close()

	entities := make([]common.Entity, 0)
	for rows.Next() {
		var (
			e          common.Entity
			properties []byte
		)
		if err := rows.Scan(
			&e.ID, &e.Type, &properties, &e.Confidence, &e.SourceText, &e.SourceChunkID,
		); err != nil {
			return nil, err
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &e.Properties); err != nil {
				return nil, err
			}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// SaveEntities persists a batch of entities. Saving an existing identifier
// replaces type, properties, and confidence.
func (s *GraphDBStorage) SaveEntities(ctx context.Context, entities []common.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, e := range entities {
		properties, err := json.Marshal(e.Properties)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO entities (`+entityColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET type = EXCLUDED.type,
			    properties = EXCLUDED.properties,
			    confidence = EXCLUDED.confidence
		`, e.ID, e.Type, properties, e.Confidence, e.SourceText, e.SourceChunkID)
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

// SaveRelationships persists a batch of relationships. Endpoints must
// reference stored entities.
func (s *GraphDBStorage) SaveRelationships(ctx context.Context, relationships []common.Relationship) error {
	if len(relationships) == 0 {
		return nil
	}

	batch := &pgxv5.Batch{}
	for _, r := range relationships {
		properties, err := json.Marshal(r.Properties)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO relationships (id, type, source_id, target_id, confidence, properties)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Type, r.SourceID, r.TargetID, r.Confidence, properties)
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

// EntityTypes returns the distinct entity type names in the graph.
func (s *GraphDBStorage) EntityTypes(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT type FROM entities ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// EntitiesByType returns entities of the given type, optionally narrowed by
// case-insensitive substring predicates over named properties. The type and
// every property name and value are bound parameters.
func (s *GraphDBStorage) EntitiesByType(
	ctx context.Context,
	entityType string,
	propertyFilters map[string]string,
	limit int,
) ([]common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE type = $1`
	args := []any{entityType}

	for field, value := range propertyFilters {
		query += fmt.Sprintf(
			" AND properties->>$%d ILIKE '%%' || $%d || '%%'",
			len(args)+1, len(args)+2,
		)
		args = append(args, field, value)
	}

	query += fmt.Sprintf(" ORDER BY confidence DESC, id LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEntities(rows)
}

// RelatedEntities returns entities directly connected to any of the given
// entities by a relationship in either direction, excluding the input set.
func (s *GraphDBStorage) RelatedEntities(
	ctx context.Context,
	entityIDs []string,
	limit int,
) ([]common.Entity, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT `+entityColumns+`
		FROM entities
		WHERE id <> ALL($1::text[])
		  AND id IN (
			SELECT target_id FROM relationships WHERE source_id = ANY($1::text[])
			UNION
			SELECT source_id FROM relationships WHERE target_id = ANY($1::text[])
		  )
		ORDER BY confidence DESC, id
		LIMIT $2
	`, entityIDs, limit)
	if err != nil {
		return nil, err
	}
	return collectEntities(rows)
}

// RelationshipsForEntities returns all relationships touching any of the
// given entities.
func (s *GraphDBStorage) RelationshipsForEntities(
	ctx context.Context,
	entityIDs []string,
) ([]common.Relationship, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, type, source_id, target_id, confidence, properties
		FROM relationships
		WHERE source_id = ANY($1::text[]) OR target_id = ANY($1::text[])
		ORDER BY id
	`, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relationships := make([]common.Relationship, 0)
	for rows.Next() {
		var (
			r          common.Relationship
			properties []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Type, &r.SourceID, &r.TargetID, &r.Confidence, &properties,
		); err != nil {
			return nil, err
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &r.Properties); err != nil {
				return nil, err
			}
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}
