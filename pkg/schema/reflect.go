package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
	Anonymous:      true,
}

var reflected sync.Map // reflect.Type -> *Schema

// For derives the schema of a parameter struct. Fields without omitempty are
// required, unknown properties are rejected, and descriptions come from
// `jsonschema_description` tags. Results are cached per type.
func For[T any]() (*Schema, error) {
	typ := reflect.TypeFor[T]()
	if cached, ok := reflected.Load(typ); ok {
		return cached.(*Schema), nil
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: parameters must be a struct, got %s", typ)
	}

	var zero T
	raw, err := json.Marshal(reflector.Reflect(&zero))
	if err != nil {
		return nil, fmt.Errorf("schema: encode reflected %s: %w", typ, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode reflected %s: %w", typ, err)
	}
	delete(doc, "$schema")
	delete(doc, "$id")

	s, err := FromMap(doc)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", typ, err)
	}
	actual, _ := reflected.LoadOrStore(typ, s)
	return actual.(*Schema), nil
}

// MustFor panics when T cannot be reflected. Use it for parameter types
// declared next to the tool, where a failure is a programming error.
func MustFor[T any]() *Schema {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}
