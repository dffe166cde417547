package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/logger"
)

// QueryPlan is the structured decomposition of a natural-language question
// into retrieval signals. A plan is always produced; when model-assisted
// analysis fails, a deterministic heuristic plan takes its place.
type QueryPlan struct {
	Intent            string            `json:"intent"`
	EntityTypes       []string          `json:"entity_types"`
	Keywords          []string          `json:"keywords"`
	HasTemporalAspect bool              `json:"has_temporal_aspect"`
	TemporalTerms     []string          `json:"temporal_terms,omitempty"`
	Filters           map[string]string `json:"filters,omitempty"`
	SearchText        string            `json:"search_text"`
}

// temporalTriggers are the question tokens that mark a temporal aspect in
// the heuristic plan.
var temporalTriggers = []string{"date", "deadline", "days", "month", "year", "when"}

// Analyzer turns a question into a QueryPlan, preferring a model-based
// decomposition and falling back to a heuristic one on any failure.
type Analyzer struct {
	llm ai.Client
}

func NewAnalyzer(llm ai.Client) *Analyzer {
	return &Analyzer{llm: llm}
}

const analyzerPromptTemplate = `Analyze the following question about documents in a knowledge graph and decompose it into retrieval signals.

Known entity types: %s

Question: %s

Respond with:
- intent: a one-line statement of what the question asks for
- entity_types: the known entity types relevant to the question (subset of the list above)
- keywords: up to 5 content-bearing keywords from the question, lowercased
- has_temporal_aspect: whether the question concerns dates, deadlines, or durations
- temporal_terms: the temporal expressions found in the question, if any
- filters: property name to value substrings that narrow the entity search
- search_text: the text to match against document chunks`

// Analyze produces a QueryPlan for question. It never returns an error:
// if the model call or its output fails in any way, the deterministic
// fallback plan is returned instead.
func (a *Analyzer) Analyze(ctx context.Context, question string, knownTypes []string) QueryPlan {
	if a == nil || a.llm == nil {
		return FallbackPlan(question, knownTypes)
	}

	prompt := fmt.Sprintf(analyzerPromptTemplate, strings.Join(knownTypes, ", "), question)

	var plan QueryPlan
	err := a.llm.GenerateCompletionWithFormat(
		ctx,
		"query_plan",
		"Structured decomposition of a question into knowledge graph retrieval signals",
		prompt,
		&plan,
	)
	if err != nil {
		logger.Warn("query analysis failed, using fallback plan", "error", err)
		return FallbackPlan(question, knownTypes)
	}

	sanitizePlan(&plan, question, knownTypes)
	return plan
}

// sanitizePlan repairs a model-produced plan so downstream collectors can
// rely on its shape: unknown entity types are dropped and empty fields get
// their fallback values.
func sanitizePlan(plan *QueryPlan, question string, knownTypes []string) {
	known := make(map[string]struct{}, len(knownTypes))
	for _, t := range knownTypes {
		known[t] = struct{}{}
	}

	kept := plan.EntityTypes[:0]
	for _, t := range plan.EntityTypes {
		if _, ok := known[t]; ok {
			kept = append(kept, t)
		}
	}
	plan.EntityTypes = kept

	if len(plan.EntityTypes) == 0 {
		plan.EntityTypes = defaultEntityTypes(knownTypes)
	}
	if len(plan.Keywords) == 0 {
		plan.Keywords = extractKeywords(question)
	}
	if plan.SearchText == "" {
		plan.SearchText = question
	}
	if plan.Filters == nil {
		plan.Filters = map[string]string{}
	}
}

// FallbackPlan builds a deterministic QueryPlan from the question text
// alone. It is used whenever model-assisted analysis is unavailable or
// fails, and must never panic regardless of input.
func FallbackPlan(question string, knownTypes []string) QueryPlan {
	return QueryPlan{
		Intent:            question,
		EntityTypes:       defaultEntityTypes(knownTypes),
		Keywords:          extractKeywords(question),
		HasTemporalAspect: hasTemporalTrigger(question),
		Filters:           map[string]string{},
		SearchText:        question,
	}
}

func defaultEntityTypes(knownTypes []string) []string {
	if len(knownTypes) > 3 {
		knownTypes = knownTypes[:3]
	}
	return append([]string{}, knownTypes...)
}

func extractKeywords(question string) []string {
	var keywords []string
	for _, token := range strings.Fields(question) {
		token = strings.ToLower(strings.Trim(token, ".,;:!?\"'()"))
		if len(token) <= 3 {
			continue
		}
		keywords = append(keywords, token)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}

func hasTemporalTrigger(question string) bool {
	lowered := strings.ToLower(question)
	for _, trigger := range temporalTriggers {
		if strings.Contains(lowered, trigger) {
			return true
		}
	}
	return false
}
