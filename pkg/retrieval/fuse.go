package retrieval

import (
	"sort"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// fused holds the deduplicated, filtered, capped merge of all collector
// candidates, ordered by descending score.
type fused struct {
	entities []common.Entity
	chunks   []common.Chunk
}

// fuse merges raw candidates from all collectors into a single ranked
// result set.
//
// The sort is stable, so candidates with equal scores keep their input
// order and the earlier collector wins ties. Duplicates keep the first
// (highest-scored) occurrence. Entities below the confidence floor and
// items without an identifier are discarded. Caps apply per kind after
// filtering.
func fuse(candidates []candidate, scoring strategy.ScoringConfig, limits strategy.LimitsConfig) fused {
	ranked := make([]candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	var (
		out        fused
		seenEntity = make(map[string]struct{})
		seenChunk  = make(map[string]struct{})
	)

	for _, c := range ranked {
		id := c.id()
		if id == "" {
			continue
		}

		switch {
		case c.entity != nil:
			if len(out.entities) >= limits.MaxEntities {
				continue
			}
			if c.entity.Confidence < scoring.EntityConfidenceMin {
				continue
			}
			if _, ok := seenEntity[id]; ok {
				continue
			}
			seenEntity[id] = struct{}{}
			out.entities = append(out.entities, *c.entity)

		case c.chunk != nil:
			if len(out.chunks) >= limits.MaxChunks {
				continue
			}
			if _, ok := seenChunk[id]; ok {
				continue
			}
			seenChunk[id] = struct{}{}
			out.chunks = append(out.chunks, *c.chunk)
		}
	}

	return out
}

// filterRelationships keeps only relationships whose endpoints are both
// present in the retained entity set. Dangling edges are silently dropped.
func filterRelationships(relationships []common.Relationship, entities []common.Entity) []common.Relationship {
	if len(relationships) == 0 {
		return nil
	}

	ids := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		ids[e.ID] = struct{}{}
	}

	var kept []common.Relationship
	for _, r := range relationships {
		if _, ok := ids[r.SourceID]; !ok {
			continue
		}
		if _, ok := ids[r.TargetID]; !ok {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
