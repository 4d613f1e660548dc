// Package catalog turns a YAML plugin list into the ordered []core.Plugin
// the aggregator consumes. Plugins come from registered factories or from
// Go shared objects, and each one is checked against its isolation policy
// before it is accepted.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

// Catalog keeps the factories and the plugins built from them.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
	built     []instance
	loader    Loader
	isolation IsolationStrategy
	log       *slog.Logger
}

type instance struct {
	plugin core.Plugin
	info   Info
}

// Option modifies the behaviour of a catalog.
type Option func(*Catalog)

// WithLoader overrides the shared object loader.
func WithLoader(loader Loader) Option {
	return func(c *Catalog) {
		if loader != nil {
			c.loader = loader
		}
	}
}

// WithIsolationStrategy sets a custom policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(c *Catalog) {
		if strategy != nil {
			c.isolation = strategy
		}
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		factories: make(map[string]Factory),
		loader:    GoPluginLoader{},
		isolation: CapabilityStrategy{},
		log:       logger.Named("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a named factory.
func (c *Catalog) Register(name string, f Factory) error {
	if name == "" {
		return errors.New("factory name cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("factory %s is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[name]; exists {
		return fmt.Errorf("factory %s already registered", name)
	}
	c.factories[name] = f
	return nil
}

// MustRegister is Register for init-time tables.
func (c *Catalog) MustRegister(name string, f Factory) {
	if err := c.Register(name, f); err != nil {
		panic(err)
	}
}

// Factories lists registered factory names, sorted.
func (c *Catalog) Factories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates every enabled entry in list order. The result replaces
// whatever an earlier Build produced.
func (c *Catalog) Build(cfg Config) ([]core.Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	built := make([]instance, 0, len(cfg.Plugins))
	for _, entry := range cfg.Plugins {
		if !entry.IsEnabled() {
			c.log.Debug("plugin disabled", logger.Plugin(entry.ID))
			continue
		}
		inst, err := c.instantiate(cfg, entry)
		if err != nil {
			closeAll(built)
			return nil, err
		}
		built = append(built, inst)
	}

	c.mu.Lock()
	c.built = built
	c.mu.Unlock()

	plugins := make([]core.Plugin, len(built))
	for i, inst := range built {
		plugins[i] = inst.plugin
		c.log.Info("plugin ready", logger.Plugin(inst.info.ID), "source", inst.info.Source, "capabilities", inst.info.Capabilities)
	}
	return plugins, nil
}

// Load opens a shared object and checks it against policy.
func (c *Catalog) Load(id, path string, cfg map[string]any, policy IsolationPolicy) (core.Plugin, error) {
	inst, err := c.instantiate(Config{Defaults: policy}, Entry{ID: id, Path: path, Config: cfg})
	if err != nil {
		return nil, err
	}
	return inst.plugin, nil
}

// Plugins describes what the last Build accepted.
func (c *Catalog) Plugins() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Info, len(c.built))
	for i, inst := range c.built {
		out[i] = inst.info
	}
	return out
}

// Close releases built plugins that hold resources.
func (c *Catalog) Close() error {
	c.mu.Lock()
	built := c.built
	c.built = nil
	c.mu.Unlock()
	return closeAll(built)
}

func (c *Catalog) instantiate(cfg Config, entry Entry) (instance, error) {
	conf := cloneConfig(entry.Config)
	info := Info{ID: entry.ID}

	var (
		p   core.Plugin
		err error
	)
	if entry.Path != "" {
		path := entry.Path
		if !filepath.IsAbs(path) && cfg.PluginDir != "" {
			path = filepath.Join(cfg.PluginDir, path)
		}
		info.Source, info.Path = SourceShared, path
		p, err = c.loader.Load(path, conf)
		if err != nil {
			return instance{}, fmt.Errorf("load plugin %s from %s: %w", entry.ID, path, err)
		}
	} else {
		c.mu.RLock()
		factory, ok := c.factories[entry.factoryName()]
		c.mu.RUnlock()
		if !ok {
			return instance{}, fmt.Errorf("plugin %s: no factory named %q", entry.ID, entry.factoryName())
		}
		info.Source = SourceBuiltin
		p, err = factory(conf)
		if err != nil {
			return instance{}, fmt.Errorf("configure plugin %s: %w", entry.ID, err)
		}
	}
	if p == nil {
		return instance{}, fmt.Errorf("plugin %s: factory returned nil", entry.ID)
	}
	info.Name = p.Name()
	info.Capabilities = CapabilitiesOf(p)

	policy := MergePolicies(cfg.Defaults, entry.Policy)
	if err := c.isolation.Validate(info, policy); err != nil {
		closePlugin(p)
		return instance{}, fmt.Errorf("plugin %s rejected by isolation policy: %w", entry.ID, err)
	}
	return instance{plugin: p, info: info}, nil
}

func closeAll(built []instance) error {
	var errs []error
	for _, inst := range built {
		if err := closePlugin(inst.plugin); err != nil {
			errs = append(errs, fmt.Errorf("close plugin %s: %w", inst.info.ID, err))
		}
	}
	return errors.Join(errs...)
}

func closePlugin(p core.Plugin) error {
	if closer, ok := p.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(cfg))
	for k, v := range cfg {
		cp[k] = v
	}
	return cp
}
