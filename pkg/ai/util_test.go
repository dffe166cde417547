package ai

import "testing"

type analysisPayload struct {
	EntityTypes []string `json:"entity_types"`
	Keywords    []string `json:"keywords"`
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "standard json",
			input: `{"entity_types": ["party"], "keywords": ["termination"]}`,
			want:  []string{"party"},
		},
		{
			name:  "double encoded",
			input: `"{\"entity_types\": [\"party\"], \"keywords\": []}"`,
			want:  []string{"party"},
		},
		{
			name:  "missing quotes repaired",
			input: `{entity_types: ["party"], keywords: []}`,
			want:  []string{"party"},
		},
		{
			name:  "fenced with language tag",
			input: "```json\n{\"entity_types\": [\"party\"], \"keywords\": []}\n```",
			want:  []string{"party"},
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"entity_types\": [\"party\"], \"keywords\": []}\n```",
			want:  []string{"party"},
		},
		{
			name:  "duplicate leading brace",
			input: `{{"entity_types": ["party"], "keywords": []}`,
			want:  []string{"party"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out analysisPayload
			if err := UnmarshalFlexible(tt.input, &out); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out.EntityTypes) != len(tt.want) {
				t.Fatalf("entity_types = %v, expected %v", out.EntityTypes, tt.want)
			}
			for i := range tt.want {
				if out.EntityTypes[i] != tt.want[i] {
					t.Fatalf("entity_types = %v, expected %v", out.EntityTypes, tt.want)
				}
			}
		})
	}
}

func TestUnmarshalFlexible_Unrepairable(t *testing.T) {
	var out analysisPayload
	if err := UnmarshalFlexible("the parties agreed to terminate", &out); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}

func TestStripCodeFence_PassThrough(t *testing.T) {
	in := `{"keywords": []}`
	if got := StripCodeFence(in); got != in {
		t.Fatalf("unfenced input changed: %q", got)
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(&analysisPayload{})
	if schema == nil {
		t.Fatal("expected non-nil schema")
	}
}
