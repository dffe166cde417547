package retrieval

import (
	"context"
	"reflect"
	"testing"
)

func TestFallbackPlan(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		knownTypes   []string
		wantTypes    []string
		wantKeywords []string
		wantTemporal bool
	}{
		{
			name:         "caps types at three and keywords at five",
			question:     "which obligations, penalties, warranties, liabilities, indemnities, exclusions apply?",
			knownTypes:   []string{"party", "obligation", "deadline", "payment"},
			wantTypes:    []string{"party", "obligation", "deadline"},
			wantKeywords: []string{"which", "obligations", "penalties", "warranties", "liabilities"},
			wantTemporal: false,
		},
		{
			name:         "short tokens dropped",
			question:     "who is it for?",
			knownTypes:   []string{"party"},
			wantTypes:    []string{"party"},
			wantKeywords: nil,
			wantTemporal: false,
		},
		{
			name:         "temporal trigger detected",
			question:     "when does the contract expire?",
			knownTypes:   nil,
			wantTypes:    []string{},
			wantKeywords: []string{"when", "does", "contract", "expire"},
			wantTemporal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := FallbackPlan(tt.question, tt.knownTypes)

			if !reflect.DeepEqual(plan.EntityTypes, tt.wantTypes) {
				t.Fatalf("entity types = %v, want %v", plan.EntityTypes, tt.wantTypes)
			}
			if !reflect.DeepEqual(plan.Keywords, tt.wantKeywords) {
				t.Fatalf("keywords = %v, want %v", plan.Keywords, tt.wantKeywords)
			}
			if plan.HasTemporalAspect != tt.wantTemporal {
				t.Fatalf("temporal aspect = %v, want %v", plan.HasTemporalAspect, tt.wantTemporal)
			}
			if plan.SearchText != tt.question {
				t.Fatalf("search text = %q, want the raw question", plan.SearchText)
			}
			if plan.Filters == nil {
				t.Fatalf("filters must be non-nil")
			}
		})
	}
}

func TestAnalyze_NilClientUsesFallback(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	plan := analyzer.Analyze(context.Background(), "payment deadline?", []string{"party"})
	if !plan.HasTemporalAspect {
		t.Fatalf("expected fallback plan with temporal aspect")
	}
	if plan.SearchText != "payment deadline?" {
		t.Fatalf("search text = %q", plan.SearchText)
	}
}
