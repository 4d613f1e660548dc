package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the plugin catalog file. Plugins is a list because plugin order
// decides tool order.
type Config struct {
	PluginDir string          `yaml:"pluginDir"`
	Defaults  IsolationPolicy `yaml:"defaults"`
	Plugins   []Entry         `yaml:"plugins"`
}

// Entry configures one plugin instance.
type Entry struct {
	ID string `yaml:"id"`
	// Use names the registered factory. It defaults to ID.
	Use string `yaml:"use"`
	// Path loads the plugin from a shared object instead of a factory.
	Path    string           `yaml:"path"`
	Enabled *bool            `yaml:"enabled"`
	Config  map[string]any   `yaml:"config"`
	Policy  *IsolationPolicy `yaml:"policy"`
}

// IsEnabled reports whether the entry is active. Entries are enabled
// unless they say otherwise.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

func (e Entry) factoryName() string {
	if e.Use != "" {
		return e.Use
	}
	return e.ID
}

// LoadConfig reads a YAML catalog file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read plugin config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes and validates a YAML catalog document.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal plugin config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate ensures the catalog configuration is internally consistent.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Plugins))
	for i, entry := range c.Plugins {
		if entry.ID == "" {
			return fmt.Errorf("plugin #%d: id cannot be empty", i)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("plugin %s is listed twice", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if entry.Path != "" && entry.Use != "" {
			return fmt.Errorf("plugin %s: path and use are mutually exclusive", entry.ID)
		}
	}
	return nil
}

// Decode copies a plugin's config block into dst, a pointer to a struct
// with yaml tags.
func Decode(cfg map[string]any, dst any) error {
	if len(cfg) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode plugin config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode plugin config: %w", err)
	}
	return nil
}
