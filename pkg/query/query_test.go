package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anmolg1997/kg-rag/pkg/ai"
	"github.com/anmolg1997/kg-rag/pkg/common"
	"github.com/anmolg1997/kg-rag/pkg/retrieval"
	"github.com/anmolg1997/kg-rag/pkg/strategy"
)

type fakeRetriever struct {
	result retrieval.RetrievalContext
	err    error
}

func (f *fakeRetriever) Retrieve(
	_ context.Context,
	_ string,
	_ strategy.RetrievalStrategy,
	_ ...retrieval.RetrieveOption,
) (retrieval.RetrievalContext, error) {
	return f.result, f.err
}

// fakeLLM serves canned completions in call order and records prompts.
type fakeLLM struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeLLM) GenerateCompletion(_ context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func (f *fakeLLM) GenerateCompletionWithFormat(
	context.Context, string, string, string, any, ...ai.GenerateOption,
) error {
	return errors.New("not used")
}

func (f *fakeLLM) GenerateChat(context.Context, []ai.ChatMessage, ...ai.GenerateOption) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) ResetMetrics() {}

func (f *fakeLLM) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testManager(t *testing.T) *strategy.Manager {
	t.Helper()
	m, err := strategy.NewManager(strategy.PresetBalanced)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func populatedContext() retrieval.RetrievalContext {
	return retrieval.RetrievalContext{
		Text: "# Context for Query: q\n\ncontract details",
		Entities: []common.Entity{
			{ID: "e1", Type: "party", Properties: map[string]any{"name": "Acme Corp"}, Confidence: 0.9},
		},
		SearchMethodsUsed: []string{retrieval.MethodGraphTraversal},
	}
}

func TestAsk_EmptyContext(t *testing.T) {
	llm := &fakeLLM{}
	engine := &Engine{
		retriever:  &fakeRetriever{result: retrieval.RetrievalContext{Text: "# Context for Query: q\n"}},
		llm:        llm,
		strategies: testManager(t),
	}

	answer, err := engine.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Response != NoContextResponse {
		t.Fatalf("expected the no-context response, got %q", answer.Response)
	}
	if answer.HasContext {
		t.Fatalf("empty retrieval reported as having context")
	}
	if answer.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", answer.Confidence)
	}
	if llm.calls != 0 {
		t.Fatalf("LLM called %d times for an empty context", llm.calls)
	}
}

func TestAsk_GeneratesAnswer(t *testing.T) {
	llm := &fakeLLM{responses: []string{"The parties are Acme Corp and Beta LLC."}}
	engine := &Engine{
		retriever:  &fakeRetriever{result: populatedContext()},
		llm:        llm,
		strategies: testManager(t),
	}

	answer, err := engine.Ask(context.Background(), "who are the parties?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if !answer.HasContext {
		t.Fatalf("expected context")
	}
	if answer.Response != "The parties are Acme Corp and Beta LLC." {
		t.Fatalf("unexpected response %q", answer.Response)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Name != "Acme Corp" {
		t.Fatalf("sources = %+v", answer.Sources)
	}
	if answer.Confidence <= 0 || answer.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", answer.Confidence)
	}
	if len(answer.SearchMethodsUsed) != 1 {
		t.Fatalf("methods not propagated: %v", answer.SearchMethodsUsed)
	}
	if !strings.Contains(llm.prompts[0], "contract details") {
		t.Fatalf("context text missing from prompt:\n%s", llm.prompts[0])
	}
	if !strings.Contains(llm.prompts[0], "who are the parties?") {
		t.Fatalf("question missing from prompt:\n%s", llm.prompts[0])
	}
}

func TestAsk_FollowUps(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"Answer.",
		"1. What are the payment terms?\n2. When does the contract expire?\n3. Who signs?\n4. Extra?",
	}}
	engine := &Engine{
		retriever:  &fakeRetriever{result: populatedContext()},
		llm:        llm,
		strategies: testManager(t),
	}

	answer, err := engine.Ask(context.Background(), "q?", WithFollowUps())
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if len(answer.FollowUpQuestions) != 3 {
		t.Fatalf("follow-ups = %v, want 3", answer.FollowUpQuestions)
	}
	if answer.FollowUpQuestions[0] != "What are the payment terms?" {
		t.Fatalf("numbering not stripped: %q", answer.FollowUpQuestions[0])
	}
}

func TestAsk_FollowUpFailureIsNotFatal(t *testing.T) {
	llm := &fakeLLM{
		responses: []string{"Answer.", ""},
		errs:      []error{nil, errors.New("model overloaded")},
	}
	engine := &Engine{
		retriever:  &fakeRetriever{result: populatedContext()},
		llm:        llm,
		strategies: testManager(t),
	}

	answer, err := engine.Ask(context.Background(), "q?", WithFollowUps())
	if err != nil {
		t.Fatalf("follow-up failure escalated: %v", err)
	}
	if answer.Response != "Answer." {
		t.Fatalf("answer lost: %q", answer.Response)
	}
	if len(answer.FollowUpQuestions) != 0 {
		t.Fatalf("follow-ups present after failure: %v", answer.FollowUpQuestions)
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("model unavailable")}}
	engine := &Engine{
		retriever:  &fakeRetriever{result: populatedContext()},
		llm:        llm,
		strategies: testManager(t),
	}

	if _, err := engine.Ask(context.Background(), "q?"); err == nil {
		t.Fatalf("expected generation error")
	}
}

func TestSummarize_EmptyDocument(t *testing.T) {
	engine := &Engine{
		retriever:  &fakeRetriever{result: retrieval.RetrievalContext{}},
		llm:        &fakeLLM{},
		strategies: testManager(t),
	}

	summary, err := engine.Summarize(context.Background(), "missing-doc")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(summary, "no extracted information") {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestEstimateConfidence(t *testing.T) {
	manyEntities := retrieval.RetrievalContext{Entities: make([]common.Entity, 20)}

	tests := []struct {
		name      string
		retrieved retrieval.RetrievalContext
		response  string
		want      float64
	}{
		{"baseline", retrieval.RetrievalContext{}, "short", 0.5},
		{"entity boost capped", manyEntities, "short", 0.8},
		{"uncertainty penalty", retrieval.RetrievalContext{}, "There is no information about that.", 0.3},
		{"long response boost", retrieval.RetrievalContext{}, strings.Repeat("detail ", 40), 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimateConfidence(tt.retrieved, tt.response)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Fatalf("confidence = %v, want %v", got, tt.want)
			}
		})
	}
}
