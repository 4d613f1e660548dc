package core

import (
	"context"
	"fmt"
)

// Plugin contributes tools for the chains it supports.
//
// GetTools may perform I/O (fetching token lists, probing the wallet) and
// must honour ctx. It returns tools bound to wallet; it never returns nil
// tools alongside a nil error.
type Plugin interface {
	Name() string
	SupportsChain(chain Chain) bool
	SupportsSmartWallets() bool
	GetTools(ctx context.Context, wallet WalletClient) ([]Tool, error)
}

// PluginBase implements Name and GetTools for plugins built from services.
// Embed it and provide SupportsChain and SupportsSmartWallets.
type PluginBase struct {
	name     string
	services []Service
}

// NewPluginBase creates a base that exposes every method of services.
func NewPluginBase(name string, services ...Service) PluginBase {
	return PluginBase{name: name, services: services}
}

func (p PluginBase) Name() string { return p.name }

// Services returns the services registered with the base.
func (p PluginBase) Services() []Service { return p.services }

// GetTools binds each registered method to wallet. A method that cannot be
// bound, or two methods sharing a name, is a *PluginConfigurationError.
func (p PluginBase) GetTools(_ context.Context, wallet WalletClient) ([]Tool, error) {
	tools := make([]Tool, 0, len(p.services))
	seen := make(map[string]struct{})
	for _, svc := range p.services {
		if svc == nil {
			continue
		}
		for _, m := range svc.Methods() {
			tool, err := m.Tool(wallet)
			if err != nil {
				return nil, &PluginConfigurationError{Plugin: p.name, Reason: fmt.Sprintf("method %q", m.Name()), Err: err}
			}
			if _, dup := seen[tool.Name()]; dup {
				return nil, &PluginConfigurationError{Plugin: p.name, Reason: fmt.Sprintf("tool %q is registered twice", tool.Name())}
			}
			seen[tool.Name()] = struct{}{}
			tools = append(tools, tool)
		}
	}
	return tools, nil
}
