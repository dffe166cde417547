package schema

import (
	"fmt"

	"github.com/anmolg1997/kg-rag/pkg/common"
)

// ValidationResult accumulates the outcome of validating an extracted graph
// against a schema descriptor.
type ValidationResult struct {
	Errors   []string
	Warnings []string

	// InvalidEntityIDs marks entities that failed validation, so callers in
	// store_valid mode can store the rest.
	InvalidEntityIDs map[string]bool
}

// Valid reports whether validation produced no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) addError(entityID, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	if entityID != "" {
		r.InvalidEntityIDs[entityID] = true
	}
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateOptions tunes which findings count as errors rather than warnings.
type ValidateOptions struct {
	// FailOnMissingRequired treats missing required properties as errors.
	FailOnMissingRequired bool
	// FailOnBrokenRelationships treats relationships whose endpoints are not
	// part of the validated set as errors.
	FailOnBrokenRelationships bool
}

// Validate checks extracted entities and relationships against the schema
// vocabulary: unknown entity types, missing required properties, unknown
// relationship types, and relationships with missing endpoints.
func (s *Schema) Validate(
	entities []common.Entity,
	relationships []common.Relationship,
	opts ValidateOptions,
) *ValidationResult {
	result := &ValidationResult{
		InvalidEntityIDs: make(map[string]bool),
	}

	knownIDs := make(map[string]bool, len(entities))
	for _, e := range entities {
		knownIDs[e.ID] = true
	}

	for _, e := range entities {
		def := s.Entity(e.Type)
		if def == nil {
			result.addError(e.ID, "entity %s has unknown type %q", e.ID, e.Type)
			continue
		}
		for _, name := range def.RequiredProperties() {
			if v, ok := e.Properties[name]; !ok || v == nil || v == "" {
				if opts.FailOnMissingRequired {
					result.addError(e.ID, "entity %s (%s) is missing required property %q", e.ID, e.Type, name)
				} else {
					result.addWarning("entity %s (%s) is missing required property %q", e.ID, e.Type, name)
				}
			}
		}
	}

	for _, rel := range relationships {
		if len(s.Relationships) > 0 && !s.HasRelationshipType(rel.Type) {
			result.addWarning("relationship %s has undeclared type %q", rel.ID, rel.Type)
		}
		if !knownIDs[rel.SourceID] || !knownIDs[rel.TargetID] {
			if opts.FailOnBrokenRelationships {
				result.addError("", "relationship %s references missing entity (%s -> %s)", rel.ID, rel.SourceID, rel.TargetID)
			} else {
				result.addWarning("relationship %s references missing entity (%s -> %s)", rel.ID, rel.SourceID, rel.TargetID)
			}
		}
	}

	return result
}
