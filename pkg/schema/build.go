package schema

import "sync"

// Helpers for writing schemas by hand, for tools whose inputs are not worth a
// dedicated Go struct.

// Object creates an object schema. Extra properties are rejected so that a
// misspelled argument fails loudly instead of being ignored.
func Object(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// String creates a string property.
func String(description string) map[string]any {
	return property("string", description)
}

// StringEnum creates a string property restricted to values.
func StringEnum(description string, values ...string) map[string]any {
	p := property("string", description)
	p["enum"] = values
	return p
}

// Number creates a number property.
func Number(description string) map[string]any {
	return property("number", description)
}

// Integer creates an integer property.
func Integer(description string) map[string]any {
	return property("integer", description)
}

// Boolean creates a boolean property.
func Boolean(description string) map[string]any {
	return property("boolean", description)
}

// Array creates an array property of items.
func Array(description string, items map[string]any) map[string]any {
	p := property("array", description)
	p["items"] = items
	return p
}

func property(kind, description string) map[string]any {
	p := map[string]any{"type": kind}
	if description != "" {
		p["description"] = description
	}
	return p
}

var empty = sync.OnceValue(func() *Schema { return MustFromMap(Object(nil)) })

// Empty is the schema of a tool that takes no arguments.
func Empty() *Schema {
	return empty()
}
