package catalog

import (
	"errors"
	"fmt"
	"slices"
)

// IsolationPolicy restricts the capabilities a plugin may declare. An empty
// allow list allows everything not denied.
type IsolationPolicy struct {
	AllowedCapabilities []Capability `yaml:"allowedCapabilities"`
	DeniedCapabilities  []Capability `yaml:"deniedCapabilities"`
}

// Merge returns a new policy using values from other when not present.
func (p IsolationPolicy) Merge(other IsolationPolicy) IsolationPolicy {
	if len(p.AllowedCapabilities) == 0 {
		p.AllowedCapabilities = other.AllowedCapabilities
	}
	if len(p.DeniedCapabilities) == 0 {
		p.DeniedCapabilities = other.DeniedCapabilities
	}
	return p
}

func (p IsolationPolicy) empty() bool {
	return len(p.AllowedCapabilities) == 0 && len(p.DeniedCapabilities) == 0
}

// MergePolicies combines the default and plugin specific isolation policies.
func MergePolicies(defaults IsolationPolicy, plugin *IsolationPolicy) IsolationPolicy {
	if plugin == nil {
		return defaults
	}
	merged := plugin.Merge(defaults)
	if merged.empty() {
		return defaults
	}
	return merged
}

// IsolationStrategy decides whether a plugin may enter the tool list.
type IsolationStrategy interface {
	Validate(info Info, policy IsolationPolicy) error
}

// CapabilityStrategy checks declared capabilities against the policy.
// With Strict set, a plugin declaring capabilities needs a non-empty policy.
type CapabilityStrategy struct {
	Strict bool
}

func (s CapabilityStrategy) Validate(info Info, policy IsolationPolicy) error {
	if s.Strict && len(info.Capabilities) > 0 && policy.empty() {
		return errors.New("plugins declaring capabilities require an isolation policy")
	}
	for _, c := range policy.DeniedCapabilities {
		if slices.Contains(info.Capabilities, c) {
			return fmt.Errorf("capability %s is explicitly denied", c)
		}
	}
	if len(policy.AllowedCapabilities) == 0 {
		return nil
	}
	for _, c := range info.Capabilities {
		if !slices.Contains(policy.AllowedCapabilities, c) {
			return fmt.Errorf("capability %s not permitted", c)
		}
	}
	return nil
}
