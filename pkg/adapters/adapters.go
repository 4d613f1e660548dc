// Package adapters holds what every framework adapter shares: running a tool
// by name and turning the outcome into text a model can read.
//
// Failures the model can fix itself (bad arguments, a tool name it made up)
// come back as a Result with IsError set. Everything else is returned as an
// error for the host to handle.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfcito/goat-sub002/pkg/core"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/schema"
)

// Result is the model-facing outcome of one tool call.
type Result struct {
	Content string
	IsError bool
}

// Invoke executes the named tool.
func Invoke(ctx context.Context, tools *core.Toolset, name string, input any) (Result, error) {
	out, err := tools.Execute(ctx, name, input)
	if err != nil {
		if IsModelError(err) {
			return Result{Content: ErrorText(err), IsError: true}, nil
		}
		return Result{}, err
	}
	text, err := Render(out)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s: encode result: %w", name, err)
	}
	return Result{Content: text}, nil
}

// IsModelError reports whether err should be shown to the model instead of
// aborting the conversation.
func IsModelError(err error) bool {
	return core.IsValidationError(err) || xerrors.CodeOf(err) == xerrors.CodeNotFound
}

// Render turns a tool output into text. Strings pass through; anything else
// is JSON encoded.
func Render(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type errorBody struct {
	Error  string             `json:"error"`
	Fields schema.FieldErrors `json:"fields,omitempty"`
}

// ErrorText renders err as a JSON object, listing offending fields for
// validation failures.
func ErrorText(err error) string {
	body := errorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}
