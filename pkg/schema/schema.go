// Package schema wraps the JSON-Schema description every tool carries.
//
// A Schema is built once, either by reflecting a Go parameter struct (For)
// or from a raw document (FromJSON, FromMap, the Object helpers). The same
// document is handed to LLMs as function-calling metadata and compiled for
// input validation, so whatever a model is told is exactly what is enforced.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"

	jsval "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is an immutable, compiled parameter schema.
type Schema struct {
	raw      json.RawMessage
	compiled *jsval.Schema
}

var resourceSeq atomic.Uint64

// FromJSON compiles a raw JSON-Schema document. The root must describe an
// object, since tool inputs are always named arguments.
func FromJSON(raw []byte) (*Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode document: %w", err)
	}
	return FromMap(doc)
}

// FromMap compiles a schema from a decoded document.
func FromMap(doc map[string]any) (*Schema, error) {
	if doc == nil {
		doc = Object(nil)
	}
	if t, ok := doc["type"]; ok && t != "object" {
		return nil, fmt.Errorf("schema: root type must be object, got %v", t)
	}
	normalized := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		normalized[k] = v
	}
	normalized["type"] = "object"
	if _, ok := normalized["properties"]; !ok {
		normalized["properties"] = map[string]any{}
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("schema: encode document: %w", err)
	}
	compiled, err := compile(raw)
	if err != nil {
		return nil, err
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustFromMap is FromMap for package-level tool tables.
func MustFromMap(doc map[string]any) *Schema {
	s, err := FromMap(doc)
	if err != nil {
		panic(err)
	}
	return s
}

func compile(raw []byte) (*jsval.Schema, error) {
	doc, err := jsval.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema: parse document: %w", err)
	}
	url := fmt.Sprintf("mem://goat/schema/%d.json", resourceSeq.Add(1))
	c := jsval.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return compiled, nil
}

// JSON returns a copy of the schema document.
func (s *Schema) JSON() json.RawMessage {
	return append(json.RawMessage(nil), s.raw...)
}

// Map returns a freshly decoded copy of the schema document.
func (s *Schema) Map() map[string]any {
	var doc map[string]any
	_ = json.Unmarshal(s.raw, &doc)
	return doc
}

// Properties returns the "properties" member, never nil.
func (s *Schema) Properties() map[string]any {
	if props, ok := s.Map()["properties"].(map[string]any); ok {
		return props
	}
	return map[string]any{}
}

// Required returns the names listed under "required".
func (s *Schema) Required() []string {
	list, _ := s.Map()["required"].([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if name, ok := item.(string); ok {
			out = append(out, name)
		}
	}
	return out
}

// MarshalJSON lets a Schema be embedded directly in wire structs.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return s.JSON(), nil
}
