// Package schema derives a structural validation schema from an example
// template value and validates candidate values against it.
//
// The schema language is deliberately small: the six node kinds that
// example-value inference can produce. Objects are closed-world: the
// declared keys are exactly the template's keys, all required, and
// additional keys are forbidden. That stops a model from silently
// inventing or omitting top-level fields.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Type constants for Schema.Type. An empty type accepts anything.
const (
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Schema is one inferred schema node.
type Schema struct {
	Type       string
	Items      *Schema
	Properties map[string]*Schema
	Required   []string
}

// Infer derives a schema from a concrete example value:
// bool -> boolean, integral number -> integer, other number -> number,
// string -> string, slice -> array (items from the first element),
// nil -> unconstrained, map -> closed object with every key required.
func Infer(template any) *Schema {
	switch v := template.(type) {
	case nil:
		return &Schema{}
	case bool:
		return &Schema{Type: TypeBoolean}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return &Schema{Type: TypeInteger}
	case float32:
		return numberSchema(float64(v))
	case float64:
		return numberSchema(v)
	case json.Number:
		if isIntegerLiteral(v) {
			return &Schema{Type: TypeInteger}
		}
		return &Schema{Type: TypeNumber}
	case string:
		return &Schema{Type: TypeString}
	case []any:
		s := &Schema{Type: TypeArray}
		if len(v) > 0 {
			s.Items = Infer(v[0])
		}
		return s
	case map[string]any:
		s := &Schema{
			Type:       TypeObject,
			Properties: make(map[string]*Schema, len(v)),
			Required:   make([]string, 0, len(v)),
		}
		for k, val := range v {
			s.Properties[k] = Infer(val)
			s.Required = append(s.Required, k)
		}
		sort.Strings(s.Required)
		return s
	default:
		return &Schema{}
	}
}

func numberSchema(v float64) *Schema {
	if v == float64(int64(v)) {
		// Decoded JSON loses the int/float distinction; an integral
		// value is taken as an integer exemplar.
		return &Schema{Type: TypeInteger}
	}
	return &Schema{Type: TypeNumber}
}

func isIntegerLiteral(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

// ParseTemplate decodes a JSON template, preserving the integer/number
// distinction via json.Number.
func ParseTemplate(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return v, nil
}

// LoadTemplate reads and parses a JSON template file.
func LoadTemplate(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return ParseTemplate(data)
}

// Validate checks value against the schema: type conformance, required
// keys present, additional object keys forbidden. Errors name the
// offending path.
func (s *Schema) Validate(value any) error {
	return s.validate(value, "$")
}

func (s *Schema) validate(value any, path string) error {
	if s == nil || s.Type == "" {
		return nil
	}

	switch s.Type {
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return typeError(path, TypeBoolean, value)
		}
	case TypeInteger:
		if !isInteger(value) {
			return typeError(path, TypeInteger, value)
		}
	case TypeNumber:
		if !isNumber(value) {
			return typeError(path, TypeNumber, value)
		}
	case TypeString:
		if _, ok := value.(string); !ok {
			return typeError(path, TypeString, value)
		}
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return typeError(path, TypeArray, value)
		}
		for i, item := range arr {
			if err := s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return typeError(path, TypeObject, value)
		}
		for _, key := range s.Required {
			if _, present := obj[key]; !present {
				return fmt.Errorf("%s: missing required key %q", path, key)
			}
		}
		for key, val := range obj {
			prop, declared := s.Properties[key]
			if !declared {
				return fmt.Errorf("%s: additional key %q is not allowed", path, key)
			}
			if err := prop.validate(val, path+"."+key); err != nil {
				return err
			}
		}
	}
	return nil
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case float64:
		return v == float64(int64(v))
	case json.Number:
		return isIntegerLiteral(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, json.Number,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func typeError(path, want string, got any) error {
	return fmt.Errorf("%s: expected %s, got %s", path, want, typeName(got))
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return TypeBoolean
	case string:
		return TypeString
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	case float64, json.Number:
		return TypeNumber
	default:
		return fmt.Sprintf("%T", v)
	}
}

// MarshalJSON emits the node using standard JSON-Schema keywords so it
// can be embedded in prompts and passed as a constrained-output format.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if s.Type != "" {
		out["type"] = s.Type
	}
	if s.Type == TypeArray {
		if s.Items != nil {
			out["items"] = s.Items
		} else {
			out["items"] = map[string]any{}
		}
	}
	if s.Type == TypeObject {
		out["properties"] = s.Properties
		out["required"] = s.Required
		out["additionalProperties"] = false
	}
	return json.Marshal(out)
}
