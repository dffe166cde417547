package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a schema descriptor from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a schema descriptor from YAML bytes and checks its basic
// structural invariants: a name, at least one entity type, no duplicate
// type names, and relationship endpoints that reference declared types.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("schema has no name")
	}
	if len(s.Entities) == 0 {
		return nil, fmt.Errorf("schema %q defines no entity types", s.Name)
	}

	seen := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("schema %q contains an unnamed entity type", s.Name)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("schema %q declares entity type %q twice", s.Name, e.Name)
		}
		seen[e.Name] = true
	}

	for _, r := range s.Relationships {
		if !seen[r.Source] {
			return nil, fmt.Errorf("relationship %q references unknown source type %q", r.Name, r.Source)
		}
		if !seen[r.Target] {
			return nil, fmt.Errorf("relationship %q references unknown target type %q", r.Name, r.Target)
		}
	}

	return &s, nil
}
