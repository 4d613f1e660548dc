package catalog

import (
	"errors"
	"fmt"
	goplugin "plugin"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Loader resolves plugin binaries into plugins.
type Loader interface {
	Load(path string, cfg map[string]any) (core.Plugin, error)
}

// GoPluginLoader opens Go shared objects built with -buildmode=plugin.
type GoPluginLoader struct{}

// Load opens the shared object and resolves its exported Plugin symbol,
// which may be a core.Plugin, a pointer to one, or a factory.
func (GoPluginLoader) Load(path string, cfg map[string]any) (core.Plugin, error) {
	if path == "" {
		return nil, errors.New("plugin path cannot be empty")
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	symbol, err := so.Lookup("Plugin")
	if err != nil {
		return nil, err
	}
	return resolveSymbol(symbol, cfg)
}

func resolveSymbol(symbol any, cfg map[string]any) (core.Plugin, error) {
	switch p := symbol.(type) {
	case core.Plugin:
		return p, nil
	case *core.Plugin:
		if p == nil || *p == nil {
			return nil, errors.New("plugin symbol is nil")
		}
		return *p, nil
	case func(map[string]any) (core.Plugin, error):
		return p(cfg)
	case *func(map[string]any) (core.Plugin, error):
		if p == nil || *p == nil {
			return nil, errors.New("plugin symbol is nil")
		}
		return (*p)(cfg)
	default:
		return nil, fmt.Errorf("plugin symbol of type %T does not provide a core.Plugin", symbol)
	}
}
