package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[.\s]+\d{1,2}[,\s]+\d{4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}[.\s]+(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[,\s]+\d{4}\b`),
	regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`),
	regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{4}\b`),
	regexp.MustCompile(`(?i)\bq[1-4]\s+\d{4}\b`),
	regexp.MustCompile(`(?i)\bfy\s*\d{4}\b`),
}

var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\(?\d+\)?\s+(?:calendar\s+|business\s+|working\s+)?(?:days?|weeks?|months?|quarters?|years?)\b`),
	regexp.MustCompile(`(?i)\b(?:one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(?:days?|weeks?|months?|quarters?|years?)\b`),
	regexp.MustCompile(`(?i)\ba\s+(?:day|week|month|quarter|year)\b`),
}

var relativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:effective\s+date|commencement\s+date|termination\s+date|closing\s+date|execution\s+date)\b`),
	regexp.MustCompile(`(?i)\b(?:upon|after|before|prior\s+to|following|within)\s+(?:signing|execution|termination|closing|expiration)\b`),
	regexp.MustCompile(`(?i)\b(?:immediately|promptly|forthwith)\s+(?:upon|after|following)\b`),
	regexp.MustCompile(`(?i)\b(?:at\s+any\s+time|from\s+time\s+to\s+time)\b`),
}

// termStopwords excludes common English plus legal/business boilerplate from
// frequency-based key term extraction.
var termStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "these": true, "those": true,
	"such": true, "have": true, "had": true, "been": true, "being": true,
	"their": true, "they": true, "them": true, "which": true, "who": true,
	"whom": true, "would": true, "could": true, "should": true, "may": true,
	"shall": true, "must": true, "can": true, "any": true, "all": true,
	"each": true, "every": true, "other": true, "some": true, "no": true,
	"not": true, "only": true, "same": true, "so": true, "than": true,
	"too": true, "very": true, "just": true, "also": true, "now": true,
	"here": true, "there": true, "when": true, "where": true, "why": true,
	"how": true, "what": true, "if": true, "then": true, "else": true,
	"but": true, "however": true, "therefore": true,
	"hereby": true, "herein": true, "hereto": true, "hereof": true,
	"thereof": true, "thereto": true, "wherein": true, "whereas": true,
	"whereof": true, "hereunder": true, "thereunder": true, "pursuant": true,
	"notwithstanding": true, "provided": true, "including": true,
	"without": true, "upon": true, "between": true, "among": true,
	"under": true, "above": true, "below": true, "during": true,
	"before": true, "after": true, "until": true, "unless": true,
	"except": true, "regarding": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z-]{3,}`)

// MetadataExtractor computes optional chunk metadata according to the
// extraction strategy: section headings, temporal references, key terms,
// and statistics.
type MetadataExtractor struct {
	cfg             strategy.MetadataExtractionConfig
	sectionPatterns []*regexp.Regexp
}

// NewMetadataExtractor compiles the configured section heading patterns and
// returns an extractor. Invalid patterns are skipped with a warning.
func NewMetadataExtractor(cfg strategy.MetadataExtractionConfig) *MetadataExtractor {
	patterns := make([]*regexp.Regexp, 0, len(cfg.SectionHeadings.Patterns))
	for _, p := range cfg.SectionHeadings.Patterns {
		re, err := regexp.Compile("(?m)" + p)
		if err != nil {
			logger.Warn("invalid section heading pattern", "pattern", p, "err", err)
			continue
		}
		patterns = append(patterns, re)
	}
	return &MetadataExtractor{cfg: cfg, sectionPatterns: patterns}
}

// Apply fills the metadata fields of a chunk from its text. The chunk's
// identity and positional fields are left untouched.
func (m *MetadataExtractor) Apply(chunk *common.Chunk) {
	if m.cfg.SectionHeadings.Enabled {
		if heading, level, ok := m.findHeading(chunk.Text); ok {
			chunk.SectionHeading = heading
			chunk.SectionLevel = level
		}
	}
	if m.cfg.TemporalReferences.Enabled {
		chunk.TemporalRefs = m.extractTemporalRefs(chunk.Text)
	}
	if m.cfg.KeyTerms.Enabled {
		chunk.KeyTerms = extractKeyTerms(chunk.Text, m.cfg.KeyTerms.MaxTerms)
	}
	if m.cfg.Statistics.WordCount {
		chunk.WordCount = len(strings.Fields(chunk.Text))
	}
	if m.cfg.Statistics.CharCount {
		chunk.CharCount = len(chunk.Text)
	}
	if m.cfg.Statistics.SentenceCount {
		chunk.SentenceCount = len(sentenceBoundary.Split(chunk.Text, -1))
	}
}

// findHeading returns the first configured pattern match in the text. The
// pattern's position in the configuration determines the heading level.
func (m *MetadataExtractor) findHeading(text string) (string, int, bool) {
	text = strings.TrimSpace(text)
	for i, re := range m.sectionPatterns {
		if match := re.FindString(text); match != "" {
			return strings.TrimSpace(match), i + 1, true
		}
	}
	return "", 0, false
}

func (m *MetadataExtractor) extractTemporalRefs(text string) []common.TemporalRef {
	type span struct {
		ref        common.TemporalRef
		start, end int
	}
	spans := make([]span, 0)

	collect := func(patterns []*regexp.Regexp, kind common.TemporalRefKind) {
		for _, re := range patterns {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				spans = append(spans, span{
					ref: common.TemporalRef{
						Kind: kind,
						Text: text[loc[0]:loc[1]],
					},
					start: loc[0],
					end:   loc[1],
				})
			}
		}
	}

	if m.cfg.TemporalReferences.ExtractDates {
		collect(datePatterns, common.TemporalDate)
	}
	if m.cfg.TemporalReferences.ExtractDurations {
		collect(durationPatterns, common.TemporalDuration)
	}
	if m.cfg.TemporalReferences.ExtractRelative {
		collect(relativePatterns, common.TemporalRelative)
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	// drop spans overlapping an earlier one
	refs := make([]common.TemporalRef, 0, len(spans))
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		refs = append(refs, s.ref)
		lastEnd = s.end
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

// extractKeyTerms does frequency-based term extraction with stopword
// filtering, most frequent first.
func extractKeyTerms(text string, maxTerms int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if termStopwords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxTerms {
		order = order[:maxTerms]
	}
	if len(order) == 0 {
		return nil
	}
	return order
}
