// Package ingest turns raw document text into stored chunks with extracted
// metadata, and takes in pre-extracted graphs under a validation policy. All
// behavior is parameterized by the extraction strategy.
package ingest

import (
	"regexp"
	"strings"

	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

// Piece is a chunk of text before metadata extraction and storage.
type Piece struct {
	Text  string
	Index int
	Start int
	End   int
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?])\s+`)

// Chunker splits document text according to a chunking configuration.
type Chunker struct {
	cfg strategy.ChunkingConfig
}

// NewChunker creates a Chunker for the given configuration.
func NewChunker(cfg strategy.ChunkingConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// Chunk splits text using the configured strategy. Empty or whitespace-only
// input yields no chunks.
func (c *Chunker) Chunk(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	switch c.cfg.Strategy {
	case "fixed":
		return c.chunkFixed(text)
	case "sentence":
		return c.chunkBySentence(text)
	case "semantic":
		return c.chunkByParagraph(text)
	default:
		logger.Warn("unknown chunking strategy, using fixed", "strategy", c.cfg.Strategy)
		return c.chunkFixed(text)
	}
}

// chunkFixed splits by character count with overlap, breaking at the last
// word boundary inside each window.
func (c *Chunker) chunkFixed(text string) []Piece {
	pieces := make([]Piece, 0)
	start := 0

	for start < len(text) {
		end := start + c.cfg.ChunkSize
		if end < len(text) {
			if lastSpace := strings.LastIndex(text[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		} else {
			end = len(text)
		}

		if trimmed := strings.TrimSpace(text[start:end]); trimmed != "" {
			pieces = append(pieces, Piece{
				Text:  trimmed,
				Index: len(pieces),
				Start: start,
				End:   end,
			})
		}

		next := end - c.cfg.ChunkOverlap
		if next <= start {
			// overlap would not advance; skip it
			next = end
		}
		start = next
	}

	return pieces
}

// chunkBySentence accumulates sentences up to the chunk size, carrying a
// tail of sentences within the overlap budget into the next chunk.
func (c *Chunker) chunkBySentence(text string) []Piece {
	sentences := sentenceBoundary.Split(text, -1)

	pieces := make([]Piece, 0)
	current := make([]string, 0)
	currentLen := 0
	startChar := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunkText := strings.Join(current, " ")
		pieces = append(pieces, Piece{
			Text:  chunkText,
			Index: len(pieces),
			Start: startChar,
			End:   startChar + len(chunkText),
		})
		startChar += len(chunkText) + 1
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if currentLen+len(sentence) > c.cfg.ChunkSize && len(current) > 0 {
			flush()

			// keep trailing sentences within the overlap budget
			overlap := make([]string, 0)
			overlapLen := 0
			for i := len(current) - 1; i >= 0; i-- {
				if overlapLen+len(current[i]) > c.cfg.ChunkOverlap {
					break
				}
				overlap = append([]string{current[i]}, overlap...)
				overlapLen += len(current[i])
			}
			current = overlap
			currentLen = overlapLen
		}

		current = append(current, sentence)
		currentLen += len(sentence)
	}
	flush()

	return pieces
}

// chunkByParagraph splits on blank lines, packing paragraphs up to the chunk
// size and falling back to sentence splitting for oversized paragraphs.
func (c *Chunker) chunkByParagraph(text string) []Piece {
	paragraphs := regexp.MustCompile(`\n\s*\n`).Split(text, -1)

	pieces := make([]Piece, 0)
	current := make([]string, 0)
	currentLen := 0
	startChar := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunkText := strings.Join(current, "\n\n")
		pieces = append(pieces, Piece{
			Text:  chunkText,
			Index: len(pieces),
			Start: startChar,
			End:   startChar + len(chunkText),
		})
		startChar += len(chunkText) + 2
		current = current[:0]
		currentLen = 0
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > c.cfg.ChunkSize {
			flush()
			for _, sub := range c.chunkBySentence(para) {
				pieces = append(pieces, Piece{
					Text:  sub.Text,
					Index: len(pieces),
					Start: startChar + sub.Start,
					End:   startChar + sub.End,
				})
			}
			startChar += len(para) + 2
			continue
		}

		if currentLen+len(para) > c.cfg.ChunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, para)
		currentLen += len(para)
	}
	flush()

	return pieces
}
