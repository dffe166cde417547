package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/store"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// assembled is the result of context assembly: the rendered text plus the
// final chunk window after neighbor expansion.
type assembled struct {
	text          string
	chunks        []common.Chunk
	tokenEstimate int
	truncated     bool
}

// assembler turns fused retrieval results into a single context string.
type assembler struct {
	storage store.GraphStorage
}

// assemble expands the retained chunks with their document neighbors,
// deduplicates, orders them by chunk index, caps the window, and renders
// everything into context text. Token budgeting uses a rough four
// characters per token estimate; over-budget text is cut and marked.
func (a *assembler) assemble(
	ctx context.Context,
	chunks []common.Chunk,
	entities []common.Entity,
	relationships []common.Relationship,
	query string,
	strat strategy.RetrievalStrategy,
) assembled {
	window := a.expand(ctx, chunks, strat.Context.ExpandNeighbors)

	seen := make(map[string]struct{}, len(window))
	unique := make([]common.Chunk, 0, len(window))
	for _, c := range window {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		unique = append(unique, c)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].ChunkIndex < unique[j].ChunkIndex
	})

	if len(unique) > strat.Limits.MaxChunks {
		unique = unique[:strat.Limits.MaxChunks]
	}

	text := renderContext(unique, entities, relationships, query, strat.Context.IncludeMetadata)

	tokenEstimate := len(text) / 4
	truncated := tokenEstimate > strat.Limits.MaxContextTokens
	if truncated {
		maxChars := strat.Limits.MaxContextTokens * 4
		text = text[:maxChars] + "\n\n[Context truncated due to length]"
	}

	return assembled{
		text:          text,
		chunks:        unique,
		tokenEstimate: tokenEstimate,
		truncated:     truncated,
	}
}

// expand widens each chunk with its document neighbors. Neighbor lookups
// fail soft: an error keeps the original chunk and moves on.
func (a *assembler) expand(
	ctx context.Context,
	chunks []common.Chunk,
	cfg strategy.NeighborExpansionConfig,
) []common.Chunk {
	if !cfg.Enabled || (cfg.Before == 0 && cfg.After == 0) {
		return chunks
	}

	// Lookups run in parallel; per-chunk slots keep the combined window
	// order independent of completion order.
	windows := make([][]common.Chunk, len(chunks))
	var g errgroup.Group
	for i, c := range chunks {
		g.Go(func() error {
			neighbors, err := a.storage.NeighborChunks(ctx, c.ID, cfg.Before, cfg.After)
			if err != nil {
				logger.Warn("neighbor expansion failed", "chunk_id", c.ID, "error", err)
				windows[i] = []common.Chunk{c}
				return nil
			}

			slot := make([]common.Chunk, 0, len(neighbors)+1)
			for _, n := range neighbors {
				if n.ChunkIndex < c.ChunkIndex {
					slot = append(slot, n)
				}
			}
			slot = append(slot, c)
			for _, n := range neighbors {
				if n.ChunkIndex > c.ChunkIndex {
					slot = append(slot, n)
				}
			}
			windows[i] = slot
			return nil
		})
	}
	_ = g.Wait()

	var window []common.Chunk
	for _, w := range windows {
		window = append(window, w...)
	}
	return window
}

func renderContext(
	chunks []common.Chunk,
	entities []common.Entity,
	relationships []common.Relationship,
	query string,
	include strategy.IncludeMetadataConfig,
) string {
	parts := []string{fmt.Sprintf("# Context for Query: %s\n", query)}

	var (
		currentSection string
		currentPage    int
	)

	parts = append(parts, "\n## Document Excerpts\n")

	for _, chunk := range chunks {
		if include.SectionHeading && chunk.SectionHeading != "" && chunk.SectionHeading != currentSection {
			currentSection = chunk.SectionHeading
			parts = append(parts, fmt.Sprintf("\n### %s\n", currentSection))
		}
		if include.PageNumber && chunk.PageNumber != 0 && chunk.PageNumber != currentPage {
			currentPage = chunk.PageNumber
			parts = append(parts, fmt.Sprintf("\n[Page %d]\n", currentPage))
		}

		parts = append(parts, chunk.Text+"\n")

		if include.TemporalRefs && len(chunk.TemporalRefs) > 0 {
			refs := make([]string, 0, len(chunk.TemporalRefs))
			for _, r := range chunk.TemporalRefs {
				refs = append(refs, r.Text)
			}
			parts = append(parts, fmt.Sprintf("_Temporal references: %s_\n", strings.Join(refs, ", ")))
		}
		if include.KeyTerms && len(chunk.KeyTerms) > 0 {
			parts = append(parts, fmt.Sprintf("_Key terms: %s_\n", strings.Join(chunk.KeyTerms, ", ")))
		}
	}

	if len(entities) > 0 {
		parts = append(parts, "\n## Extracted Information\n")

		byType := make(map[string][]common.Entity)
		var typeOrder []string
		for _, e := range entities {
			entityType := e.Type
			if entityType == "" {
				entityType = "Entity"
			}
			if _, ok := byType[entityType]; !ok {
				typeOrder = append(typeOrder, entityType)
			}
			byType[entityType] = append(byType[entityType], e)
		}

		for _, entityType := range typeOrder {
			parts = append(parts, fmt.Sprintf("\n### %ss\n", entityType))
			for _, e := range byType[entityType] {
				parts = append(parts, renderEntity(e))
			}
		}
	}

	if len(relationships) > 0 {
		names := make(map[string]string, len(entities))
		for _, e := range entities {
			names[e.ID] = e.Name()
		}

		var lines []string
		for _, r := range relationships {
			source, ok := names[r.SourceID]
			if !ok {
				continue
			}
			target, ok := names[r.TargetID]
			if !ok {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s --[%s]--> %s", source, r.Type, target))
		}
		if len(lines) > 0 {
			parts = append(parts, "\n## Relationships\n")
			parts = append(parts, strings.Join(lines, "\n")+"\n")
		}
	}

	return strings.Join(parts, "\n")
}

// priorityProperties are rendered first, in this order, when present.
var priorityProperties = []string{"name", "title", "description", "type", "value", "summary"}

func renderEntity(e common.Entity) string {
	lines := []string{fmt.Sprintf("**%s**", e.Name())}

	rendered := make(map[string]struct{}, len(e.Properties))
	for _, key := range priorityProperties {
		if v, ok := e.Properties[key]; ok {
			if s := scalarString(v); s != "" {
				lines = append(lines, fmt.Sprintf("  - %s: %s", key, s))
				rendered[key] = struct{}{}
			}
		}
	}

	rest := make([]string, 0, len(e.Properties))
	for key := range e.Properties {
		if _, ok := rendered[key]; ok {
			continue
		}
		if strings.HasPrefix(key, "_") {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		if s := scalarString(e.Properties[key]); s != "" {
			lines = append(lines, fmt.Sprintf("  - %s: %s", key, s))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// scalarString formats a property value for display, skipping nested
// collections and empty values.
func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any, map[string]any:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
