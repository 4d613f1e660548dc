package core

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"

	"github.com/wolfcito/goat-sub002/pkg/schema"
)

// MethodMeta describes a service method exposed as a tool. An empty Name
// defaults to the snake_case name of the Go method.
type MethodMeta struct {
	Name        string
	Description string
}

// Method is one row of a service's tool table. Build it with WalletMethod
// or StaticMethod.
type Method struct {
	name        string
	description string
	params      *schema.Schema
	needsWallet bool
	bind        func(w WalletClient) (Handler, error)
	err         error
}

// Service groups tool methods behind a plugin. Services list their methods
// explicitly; nothing is discovered by reflection at call time.
type Service interface {
	Methods() []Method
}

// MethodTable is a ready-made Service for a fixed list of methods.
type MethodTable []Method

func (t MethodTable) Methods() []Method { return t }

// WalletMethod registers fn as a tool that is invoked with the bound wallet
// and its validated parameters. W may be narrower than WalletClient; binding
// the method to a wallet that is not a W is a plugin configuration error.
func WalletMethod[W WalletClient, P any](fn func(ctx context.Context, wallet W, params P) (any, error), meta MethodMeta) Method {
	m, params := newMethod[P](fn, meta)
	m.needsWallet = true
	m.bind = func(w WalletClient) (Handler, error) {
		if _, placeholder := w.(unboundMarker); placeholder {
			return unboundHandler, nil
		}
		typed, ok := w.(W)
		if !ok {
			return nil, fmt.Errorf("method %s requires a %s wallet, got %T", m.name, reflect.TypeFor[W](), w)
		}
		name := m.name
		return func(ctx context.Context, input any) (any, error) {
			var p P
			if err := params.Parse(input, &p); err != nil {
				return nil, newValidationError(name, err)
			}
			return fn(ctx, typed, p)
		}, nil
	}
	return m
}

// StaticMethod registers fn as a tool that does not need the wallet.
func StaticMethod[P any](fn func(ctx context.Context, params P) (any, error), meta MethodMeta) Method {
	m, params := newMethod[P](fn, meta)
	name := m.name
	m.bind = func(WalletClient) (Handler, error) {
		return func(ctx context.Context, input any) (any, error) {
			var p P
			if err := params.Parse(input, &p); err != nil {
				return nil, newValidationError(name, err)
			}
			return fn(ctx, p)
		}, nil
	}
	return m
}

func newMethod[P any](fn any, meta MethodMeta) (Method, *schema.Schema) {
	m := Method{name: meta.Name, description: meta.Description}
	if fn == nil || reflect.ValueOf(fn).IsNil() {
		m.err = fmt.Errorf("method %q has no function", meta.Name)
		return m, nil
	}
	if m.name == "" {
		m.name = snakeCase(funcName(fn))
	}
	params, err := schema.For[P]()
	if err != nil {
		m.err = fmt.Errorf("method %s: %w", m.name, err)
		return m, nil
	}
	m.params = params
	return m, params
}

// Name returns the tool name the method is registered under.
func (m Method) Name() string { return m.name }

// Description returns the method description.
func (m Method) Description() string { return m.description }

// NeedsWallet reports whether the method is called with the wallet.
func (m Method) NeedsWallet() bool { return m.needsWallet }

// Tool binds the method to wallet and returns the resulting tool.
func (m Method) Tool(wallet WalletClient) (Tool, error) {
	if m.err != nil {
		return Tool{}, m.err
	}
	if m.bind == nil {
		return Tool{}, fmt.Errorf("method %q was not built with WalletMethod or StaticMethod", m.name)
	}
	h, err := m.bind(wallet)
	if err != nil {
		return Tool{}, err
	}
	return newTool(ToolMeta{Name: m.name, Description: m.description, Parameters: m.params}, h)
}

// funcName returns the bare Go name of fn: "GetBalance" for a method value
// (*erc20Service).GetBalance.
func funcName(fn any) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	full = strings.TrimSuffix(full, "-fm")
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		full = full[i+1:]
	}
	return full
}

func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
