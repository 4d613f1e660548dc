package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/schema"
)

// Handler executes a tool against raw, untrusted input.
type Handler func(ctx context.Context, input any) (any, error)

// ToolMeta is the descriptive half of a tool.
type ToolMeta struct {
	Name        string
	Description string
	// Parameters defaults to an object schema accepting no arguments.
	Parameters *schema.Schema
}

// Tool is the unit every adapter consumes. It is immutable; the zero value
// is not usable.
type Tool struct {
	name        string
	description string
	params      *schema.Schema
	exec        Handler
}

// Tool names end up as function names in LLM APIs, which accept this set.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateToolName checks that name is usable as a function name.
func ValidateToolName(name string) error {
	if !toolNamePattern.MatchString(name) {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid tool name %q", name))
	}
	return nil
}

// CreateTool builds a tool by hand. fn receives the decoded, already
// validated arguments.
func CreateTool(meta ToolMeta, fn func(ctx context.Context, args map[string]any) (any, error)) (Tool, error) {
	if fn == nil {
		return Tool{}, xerrors.New(xerrors.CodeInvalidArgument, "tool function is nil")
	}
	if meta.Parameters == nil {
		meta.Parameters = schema.Empty()
	}
	return newTool(meta, func(ctx context.Context, input any) (any, error) {
		args := map[string]any{}
		if err := meta.Parameters.Parse(input, &args); err != nil {
			return nil, newValidationError(meta.Name, err)
		}
		return fn(ctx, args)
	})
}

// NewTool builds a tool whose parameters are described by the struct P.
func NewTool[P any](name, description string, fn func(ctx context.Context, params P) (any, error)) (Tool, error) {
	if fn == nil {
		return Tool{}, xerrors.New(xerrors.CodeInvalidArgument, "tool function is nil")
	}
	params, err := schema.For[P]()
	if err != nil {
		return Tool{}, err
	}
	return newTool(ToolMeta{Name: name, Description: description, Parameters: params}, func(ctx context.Context, input any) (any, error) {
		var p P
		if err := params.Parse(input, &p); err != nil {
			return nil, newValidationError(name, err)
		}
		return fn(ctx, p)
	})
}

func newTool(meta ToolMeta, exec Handler) (Tool, error) {
	if err := ValidateToolName(meta.Name); err != nil {
		return Tool{}, err
	}
	return Tool{
		name:        meta.Name,
		description: meta.Description,
		params:      meta.Parameters,
		exec:        exec,
	}, nil
}

func (t Tool) Name() string               { return t.name }
func (t Tool) Description() string        { return t.description }
func (t Tool) Parameters() *schema.Schema { return t.params }

// Execute validates input and runs the tool. Invalid input yields a
// *ValidationError and the tool body does not run.
func (t Tool) Execute(ctx context.Context, input any) (any, error) {
	if t.exec == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "tool is not initialised")
	}
	return t.exec(ctx, input)
}

func (t Tool) withHandler(h Handler) Tool {
	t.exec = h
	return t
}

func newValidationError(tool string, err error) error {
	var fields schema.FieldErrors
	if !errors.As(err, &fields) {
		fields = schema.FieldErrors{{Message: err.Error()}}
	}
	return &ValidationError{Tool: tool, Fields: fields}
}

// ToolError attaches the originating tool and plugin to a failure raised by
// a tool body. The underlying error keeps its class.
type ToolError struct {
	Tool   string
	Plugin string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %s (plugin %s): %v", e.Tool, e.Plugin, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
