package tool

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Parameter declares one argument of a tool.
type Parameter struct {
	Name        string        `json:"name" yaml:"name"`
	Type        string        `json:"type" yaml:"type"`
	Description string        `json:"description" yaml:"description"`
	Required    bool          `json:"required" yaml:"required"`
	Enum        []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Default     interface{}   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Bound is a convenience for Parameter.Minimum and Parameter.Maximum.
func Bound(v float64) *float64 { return &v }

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Schema is a compiled JSON Schema for a tool's argument object.
type Schema struct {
	params   []Parameter
	document map[string]interface{}
	compiled *gojsonschema.Schema
}

// NewSchema compiles params into a JSON Schema. Unknown members are allowed
// unless strict is set, since orchestrators routinely pass bookkeeping keys.
func NewSchema(strict bool, params ...Parameter) (*Schema, error) {
	properties := make(map[string]interface{}, len(params))
	required := []string{}

	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[p.Type] {
			return nil, fmt.Errorf("invalid parameter type %q for %s", p.Type, p.Name)
		}

		prop := map[string]interface{}{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": !strict,
		"properties":           properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{params: params, document: doc, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(strict bool, params ...Parameter) *Schema {
	s, err := NewSchema(strict, params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Parameters returns the declared parameters.
func (s *Schema) Parameters() []Parameter {
	if s == nil {
		return nil
	}
	return s.params
}

// Document returns the JSON Schema document.
func (s *Schema) Document() map[string]interface{} {
	if s == nil {
		return nil
	}
	return s.document
}

// Validate checks args against the schema. Violations are reported together
// as a single ArgError.
func (s *Schema) Validate(args Args) error {
	if s == nil {
		return nil
	}
	if args == nil {
		return NewArgError("args must be an object")
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(map[string]interface{}(args)))
	if err != nil {
		return NewArgError(fmt.Sprintf("args could not be validated: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		if e.Field() == "(root)" {
			msgs = append(msgs, e.Description())
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return NewArgError(strings.Join(msgs, "; "))
}

// Described is implemented by tools that publish a description.
type Described interface {
	Describe() string
}

// Parameterized is implemented by tools that publish an argument schema.
type Parameterized interface {
	Schema() *Schema
}
