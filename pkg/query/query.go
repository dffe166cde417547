// Package query combines retrieval and answer generation into a complete
// question answering flow over the knowledge graph.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/logger"
	"github.com/anmolg1997/kg-rag/pkg/retrieval"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

const systemPrompt = `You are an expert document analyst assistant. Your role is to answer questions about documents using the provided context.

GUIDELINES:
1. Base your answers ONLY on the provided context
2. If the context doesn't contain enough information, say so clearly
3. Quote specific text when relevant
4. Be precise about which documents, sections, or entities you're referring to
5. Highlight any ambiguities or uncertainties

RESPONSE FORMAT:
- Start with a direct answer to the question
- Provide supporting details from the context
- Note any limitations or missing information`

const userPromptTemplate = `## Context from Knowledge Graph

%s

## User Question

%s

## Instructions

Based on the context above, provide a comprehensive answer to the user's question. If the context doesn't contain sufficient information, explain what's missing.`

const followUpPromptTemplate = `Based on this Q&A exchange about documents:

Question: %s

Answer: %s

Generate 3 relevant follow-up questions that would help the user understand the documents better.
Return only the questions, one per line.`

const summaryPromptTemplate = `Summarize the following document information concisely:

%s

Provide:
1. Key entities involved
2. Main facts and terms
3. Important dates and amounts
4. Notable sections or provisions`

// NoContextResponse is the answer returned when retrieval finds nothing.
const NoContextResponse = "I couldn't find relevant information in the knowledge graph to answer your question. Please try rephrasing your question or ensure the relevant documents have been processed."

// Source is a reference to an entity that contributed to an answer.
type Source struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Answer is the complete result of a question answering request.
type Answer struct {
	Question   string   `json:"question"`
	Response   string   `json:"response"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	HasContext bool     `json:"has_context"`

	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	SearchMethodsUsed []string `json:"search_methods_used"`
	EntityCount       int      `json:"entity_count"`

	RetrievalMs  int64 `json:"retrieval_ms"`
	GenerationMs int64 `json:"generation_ms"`
	TotalMs      int64 `json:"total_ms"`
}

// retriever is the slice of retrieval.Retriever the engine depends on.
type retriever interface {
	Retrieve(
		ctx context.Context,
		question string,
		strat strategy.RetrievalStrategy,
		opts ...retrieval.RetrieveOption,
	) (retrieval.RetrievalContext, error)
}

// Engine answers questions by retrieving context from the knowledge graph
// and generating a response with the AI client. The retrieval strategy is
// snapshotted from the manager per request.
type Engine struct {
	retriever  retriever
	llm        ai.Client
	strategies *strategy.Manager
}

func NewEngine(r *retrieval.Retriever, llm ai.Client, strategies *strategy.Manager) *Engine {
	return &Engine{retriever: r, llm: llm, strategies: strategies}
}

// AskOptions holds per-request settings for Ask.
type AskOptions struct {
	DocumentID string
	FollowUps  bool
}

type AskOption func(*AskOptions)

// WithDocument limits retrieval to a single document.
func WithDocument(documentID string) AskOption {
	return func(o *AskOptions) {
		o.DocumentID = documentID
	}
}

// WithFollowUps enables follow-up question generation.
func WithFollowUps() AskOption {
	return func(o *AskOptions) {
		o.FollowUps = true
	}
}

// Ask answers a question using retrieved context. An empty retrieval result
// yields a fixed "no information" answer rather than an error; follow-up
// generation failures are logged and skipped.
func (e *Engine) Ask(ctx context.Context, question string, opts ...AskOption) (Answer, error) {
	var options AskOptions
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	strat := e.strategies.Retrieval()

	var retrieveOpts []retrieval.RetrieveOption
	if options.DocumentID != "" {
		retrieveOpts = append(retrieveOpts, retrieval.WithDocumentScope(options.DocumentID))
	}

	retrievalStart := time.Now()
	retrieved, err := e.retriever.Retrieve(ctx, question, strat, retrieveOpts...)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	logger.Info("retrieval complete",
		"methods", strings.Join(retrieved.SearchMethodsUsed, ","),
		"entities", len(retrieved.Entities),
		"chunks", len(retrieved.Chunks),
	)

	if retrieved.IsEmpty() {
		return Answer{
			Question:          question,
			Response:          NoContextResponse,
			Sources:           []Source{},
			SearchMethodsUsed: retrieved.SearchMethodsUsed,
			RetrievalMs:       retrievalMs,
			TotalMs:           time.Since(start).Milliseconds(),
		}, nil
	}

	prompt := fmt.Sprintf(userPromptTemplate, retrieved.Text, question)

	generationStart := time.Now()
	response, err := e.llm.GenerateCompletion(ctx, prompt, ai.WithSystemPrompts(systemPrompt))
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	generationMs := time.Since(generationStart).Milliseconds()

	answer := Answer{
		Question:          question,
		Response:          response,
		Sources:           extractSources(retrieved),
		Confidence:        estimateConfidence(retrieved, response),
		HasContext:        true,
		SearchMethodsUsed: retrieved.SearchMethodsUsed,
		EntityCount:       len(retrieved.Entities),
		RetrievalMs:       retrievalMs,
		GenerationMs:      generationMs,
	}

	if options.FollowUps {
		followUps, err := e.followUpQuestions(ctx, question, response)
		if err != nil {
			logger.Warn("follow-up generation failed", "error", err)
		} else {
			answer.FollowUpQuestions = followUps
		}
	}

	answer.TotalMs = time.Since(start).Milliseconds()
	return answer, nil
}

// Summarize generates a summary of a single document's extracted content.
func (e *Engine) Summarize(ctx context.Context, documentID string) (string, error) {
	strat := e.strategies.Retrieval()

	retrieved, err := e.retriever.Retrieve(
		ctx,
		"Provide a complete summary of this document",
		strat,
		retrieval.WithDocumentScope(documentID),
	)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}
	if retrieved.IsEmpty() {
		return "Document not found or has no extracted information.", nil
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, retrieved.Text)
	return e.llm.GenerateCompletion(ctx, prompt,
		ai.WithSystemPrompts("You are a document summarization assistant. Be concise and accurate."),
	)
}

func (e *Engine) followUpQuestions(ctx context.Context, question, response string) ([]string, error) {
	prompt := fmt.Sprintf(followUpPromptTemplate, question, response)
	raw, err := e.llm.GenerateCompletion(ctx, prompt,
		ai.WithSystemPrompts("You are a helpful assistant generating follow-up questions."),
	)
	if err != nil {
		return nil, err
	}

	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "0123456789.-) ")
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == 3 {
			break
		}
	}
	return questions, nil
}

func extractSources(retrieved retrieval.RetrievalContext) []Source {
	sources := make([]Source, 0, len(retrieved.Entities))
	for _, e := range retrieved.Entities {
		sources = append(sources, Source{
			ID:   e.ID,
			Type: e.Type,
			Name: e.Name(),
		})
	}
	return sources
}

// uncertaintyPhrases lower the confidence estimate when the response hedges.
var uncertaintyPhrases = []string{
	"i don't know",
	"not sure",
	"unclear",
	"cannot determine",
	"insufficient",
	"no information",
}

// estimateConfidence derives a rough answer confidence from context volume
// and response shape. Clamped to [0, 1].
func estimateConfidence(retrieved retrieval.RetrievalContext, response string) float64 {
	confidence := 0.5

	entityFactor := float64(len(retrieved.Entities)) / 10
	if entityFactor > 0.3 {
		entityFactor = 0.3
	}
	confidence += entityFactor

	lowered := strings.ToLower(response)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lowered, phrase) {
			confidence -= 0.2
			break
		}
	}

	if len(response) > 200 {
		confidence += 0.1
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
