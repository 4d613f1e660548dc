package catalog

import "github.com/wolfcito/goat-sub002/pkg/core"

// Capability names something a plugin's tools may do with the wallet or
// the outside world.
type Capability string

const (
	// CapabilityRead covers balance and contract queries.
	CapabilityRead Capability = "read"
	// CapabilitySign covers message signatures.
	CapabilitySign Capability = "sign"
	// CapabilityTransact covers anything that submits a transaction.
	CapabilityTransact Capability = "transact"
	// CapabilityNetwork covers calls to third-party HTTP APIs.
	CapabilityNetwork Capability = "network"
)

// Capable is implemented by plugins that declare their capabilities.
// Plugins that do not are treated as requesting none.
type Capable interface {
	Capabilities() []Capability
}

// CapabilitiesOf returns what p declares.
func CapabilitiesOf(p core.Plugin) []Capability {
	if c, ok := p.(Capable); ok {
		return c.Capabilities()
	}
	return nil
}

// Factory builds a plugin from its YAML config block.
type Factory func(cfg map[string]any) (core.Plugin, error)

// Source tells where a plugin came from.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceShared  Source = "shared-object"
)

// Info describes a plugin that made it into the list.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Source       Source       `json:"source"`
	Path         string       `json:"path,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}
