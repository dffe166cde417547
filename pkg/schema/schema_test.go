package schema

import (
	"reflect"
	"testing"

	"github.com/anmolg1997/kg-rag/pkg/common"
)

const contractSchema = `
name: contract
version: "1.0"
entities:
  - name: Contract
    properties:
      - name: title
        type: string
        required: true
      - name: effective_date
        type: date
  - name: Party
    properties:
      - name: name
        type: string
        required: true
  - name: Clause
relationships:
  - name: HAS_PARTY
    source: Contract
    target: Party
`

func TestParse_Valid(t *testing.T) {
	s, err := Parse([]byte(contractSchema))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.EntityTypes(); !reflect.DeepEqual(got, []string{"Contract", "Party", "Clause"}) {
		t.Fatalf("unexpected entity types: %v", got)
	}
	if !s.HasEntityType("Party") {
		t.Fatal("expected Party to be a known type")
	}
	if s.HasEntityType("Invoice") {
		t.Fatal("Invoice should not be a known type")
	}
	if !s.HasRelationshipType("HAS_PARTY") {
		t.Fatal("expected HAS_PARTY to be a known relationship type")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: "entities:\n  - name: A\n",
		},
		{
			name: "no entities",
			yaml: "name: empty\n",
		},
		{
			name: "duplicate entity type",
			yaml: "name: dup\nentities:\n  - name: A\n  - name: A\n",
		},
		{
			name: "relationship with unknown endpoint",
			yaml: "name: bad\nentities:\n  - name: A\nrelationships:\n  - name: R\n    source: A\n    target: B\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestValidate_RequiredProperties(t *testing.T) {
	s, err := Parse([]byte(contractSchema))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entities := []common.Entity{
		{ID: "e1", Type: "Contract", Properties: map[string]any{"title": "MSA"}},
		{ID: "e2", Type: "Party", Properties: map[string]any{}},
	}

	result := s.Validate(entities, nil, ValidateOptions{})
	if !result.Valid() {
		t.Fatalf("expected warnings only, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", result.Warnings)
	}

	strict := s.Validate(entities, nil, ValidateOptions{FailOnMissingRequired: true})
	if strict.Valid() {
		t.Fatal("expected errors in strict mode")
	}
	if !strict.InvalidEntityIDs["e2"] {
		t.Fatal("expected e2 to be marked invalid")
	}
	if strict.InvalidEntityIDs["e1"] {
		t.Fatal("e1 should be valid")
	}
}

func TestValidate_UnknownType(t *testing.T) {
	s, err := Parse([]byte(contractSchema))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := s.Validate([]common.Entity{{ID: "x", Type: "Invoice"}}, nil, ValidateOptions{})
	if result.Valid() {
		t.Fatal("unknown entity type should be an error")
	}
	if !result.InvalidEntityIDs["x"] {
		t.Fatal("expected x to be marked invalid")
	}
}

func TestValidate_BrokenRelationship(t *testing.T) {
	s, err := Parse([]byte(contractSchema))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entities := []common.Entity{
		{ID: "e1", Type: "Contract", Properties: map[string]any{"title": "MSA"}},
	}
	rels := []common.Relationship{
		{ID: "r1", Type: "HAS_PARTY", SourceID: "e1", TargetID: "missing"},
	}

	lenient := s.Validate(entities, rels, ValidateOptions{})
	if !lenient.Valid() {
		t.Fatalf("expected warning, got errors: %v", lenient.Errors)
	}

	strict := s.Validate(entities, rels, ValidateOptions{FailOnBrokenRelationships: true})
	if strict.Valid() {
		t.Fatal("expected error for broken relationship")
	}
}
