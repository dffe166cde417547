package schema

// Schema describes the entity and relationship vocabulary of a knowledge
// graph at runtime. Entity types are data, not compile-time classes: a
// schema file defines which type names exist and which properties they
// carry, and the rest of the system validates against that descriptor.
type Schema struct {
	Name          string                   `yaml:"name" json:"name"`
	Version       string                   `yaml:"version" json:"version"`
	Description   string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Entities      []EntityDefinition       `yaml:"entities" json:"entities"`
	Relationships []RelationshipDefinition `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// PropertyDefinition describes a single property of an entity type.
type PropertyDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type" json:"type"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Values      []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// EntityDefinition describes one entity type in the schema vocabulary.
type EntityDefinition struct {
	Name        string               `yaml:"name" json:"name"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	Properties  []PropertyDefinition `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// RelationshipDefinition describes one relationship type, including the
// entity types it is allowed to connect.
type RelationshipDefinition struct {
	Name        string `yaml:"name" json:"name"`
	Source      string `yaml:"source" json:"source"`
	Target      string `yaml:"target" json:"target"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// EntityTypes returns the names of all entity types in declaration order.
func (s *Schema) EntityTypes() []string {
	names := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		names = append(names, e.Name)
	}
	return names
}

// Entity returns the definition for the given type name, or nil if the
// schema does not know the type.
func (s *Schema) Entity(name string) *EntityDefinition {
	for i := range s.Entities {
		if s.Entities[i].Name == name {
			return &s.Entities[i]
		}
	}
	return nil
}

// HasEntityType reports whether the type name belongs to the schema
// vocabulary. Store code uses this as a whitelist before a type name may
// be used in a query.
func (s *Schema) HasEntityType(name string) bool {
	return s.Entity(name) != nil
}

// HasRelationshipType reports whether the relationship type name belongs
// to the schema vocabulary.
func (s *Schema) HasRelationshipType(name string) bool {
	for _, r := range s.Relationships {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RequiredProperties returns the required property names of an entity type.
// Unknown types have no required properties.
func (d *EntityDefinition) RequiredProperties() []string {
	var required []string
	for _, p := range d.Properties {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}
