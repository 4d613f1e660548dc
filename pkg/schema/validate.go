package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	jsval "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FieldError is a single violation. Field is the dotted path into the input;
// the empty string denotes the input as a whole.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors lists every violation found in one input.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe {
		field := f.Field
		if field == "" {
			field = "(input)"
		}
		parts = append(parts, field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for _, f := range fe {
		out = append(out, f.Field)
	}
	return out
}

var printer = message.NewPrinter(language.English)

// Normalize turns a raw tool input into canonical JSON. Nil and blank inputs
// become an empty object; strings and byte slices are taken as JSON text;
// anything else is marshalled.
func Normalize(input any) ([]byte, error) {
	switch v := input.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return orEmpty(v), nil
	case []byte:
		return orEmpty(v), nil
	case string:
		return orEmpty([]byte(v)), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("input is not JSON-encodable: %w", err)
		}
		return raw, nil
	}
}

func orEmpty(raw []byte) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}")
	}
	return raw
}

// Validate checks input against the schema. The error, when not nil, is
// always FieldErrors.
func (s *Schema) Validate(input any) error {
	_, err := s.check(input)
	return err
}

// Parse validates input and decodes it into dst.
func (s *Schema) Parse(input any, dst any) error {
	raw, err := s.check(input)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return FieldErrors{{Message: "input does not fit the parameter type: " + err.Error()}}
	}
	return nil
}

func (s *Schema) check(input any) ([]byte, error) {
	raw, err := Normalize(input)
	if err != nil {
		return nil, FieldErrors{{Message: err.Error()}}
	}
	inst, err := jsval.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, FieldErrors{{Message: "input is not valid JSON"}}
	}
	if err := s.compiled.Validate(inst); err != nil {
		var ve *jsval.ValidationError
		if errors.As(err, &ve) {
			return nil, flatten(ve)
		}
		return nil, FieldErrors{{Message: err.Error()}}
	}
	return raw, nil
}

func flatten(root *jsval.ValidationError) FieldErrors {
	var out FieldErrors
	seen := map[FieldError]struct{}{}
	add := func(fe FieldError) {
		if _, dup := seen[fe]; dup {
			return
		}
		seen[fe] = struct{}{}
		out = append(out, fe)
	}

	var walk func(ve *jsval.ValidationError)
	walk = func(ve *jsval.ValidationError) {
		if len(ve.Causes) > 0 {
			for _, cause := range ve.Causes {
				walk(cause)
			}
			return
		}
		switch k := ve.ErrorKind.(type) {
		case *kind.Required:
			for _, name := range k.Missing {
				add(FieldError{Field: path(ve.InstanceLocation, name), Message: "is required"})
			}
		case *kind.AdditionalProperties:
			for _, name := range k.Properties {
				add(FieldError{Field: path(ve.InstanceLocation, name), Message: "is not a known parameter"})
			}
		default:
			add(FieldError{Field: path(ve.InstanceLocation), Message: ve.ErrorKind.LocalizedString(printer)})
		}
	}
	walk(root)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field == out[j].Field {
			return out[i].Message < out[j].Message
		}
		return out[i].Field < out[j].Field
	})
	return out
}

func path(location []string, leaf ...string) string {
	parts := append(append([]string(nil), location...), leaf...)
	return strings.Join(parts, ".")
}
