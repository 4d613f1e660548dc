// Package builtin registers the bundled plugins with a catalog.
package builtin

import (
	"fmt"
	"os"
	"time"

	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/plugins/coingecko"
	"github.com/wolfcito/goat-sub002/pkg/plugins/erc20"
	"github.com/wolfcito/goat-sub002/pkg/plugins/sendeth"
	"github.com/wolfcito/goat-sub002/pkg/plugins/sendsol"
)

// Register adds a factory per bundled plugin, named after the plugin.
func Register(c *catalog.Catalog) error {
	factories := map[string]catalog.Factory{
		sendeth.Name:   newSendETH,
		sendsol.Name:   newSendSOL,
		erc20.Name:     newERC20,
		coingecko.Name: newCoinGecko,
	}
	for name, f := range factories {
		if err := c.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

func newSendETH(map[string]any) (core.Plugin, error) { return sendeth.New(), nil }
func newSendSOL(map[string]any) (core.Plugin, error) { return sendsol.New(), nil }

// ERC20Config selects tokens by symbol from the predefined list and adds
// custom ones.
type ERC20Config struct {
	Tokens []string      `yaml:"tokens"`
	Custom []erc20.Token `yaml:"custom"`
}

func newERC20(raw map[string]any) (core.Plugin, error) {
	var cfg ERC20Config
	if err := catalog.Decode(raw, &cfg); err != nil {
		return nil, &core.PluginConfigurationError{Plugin: erc20.Name, Reason: "bad config", Err: err}
	}
	tokens := make([]erc20.Token, 0, len(cfg.Tokens)+len(cfg.Custom))
	for _, sym := range cfg.Tokens {
		t, ok := erc20.LookupToken(sym)
		if !ok {
			return nil, &core.PluginConfigurationError{Plugin: erc20.Name, Reason: fmt.Sprintf("unknown token %q", sym)}
		}
		tokens = append(tokens, t)
	}
	tokens = append(tokens, cfg.Custom...)
	if len(tokens) == 0 {
		tokens = append(tokens, erc20.USDC)
	}
	return erc20.New(erc20.Options{Tokens: tokens})
}

// CoinGeckoConfig reads the API key from APIKeyEnv when APIKey is empty.
type CoinGeckoConfig struct {
	APIKey            string        `yaml:"apiKey"`
	APIKeyEnv         string        `yaml:"apiKeyEnv"`
	Pro               bool          `yaml:"pro"`
	BaseURL           string        `yaml:"baseURL"`
	CacheTTL          time.Duration `yaml:"cacheTTL"`
	CacheCapacity     uint64        `yaml:"cacheCapacity"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
}

func newCoinGecko(raw map[string]any) (core.Plugin, error) {
	cfg := CoinGeckoConfig{APIKeyEnv: "COINGECKO_API_KEY"}
	if err := catalog.Decode(raw, &cfg); err != nil {
		return nil, &core.PluginConfigurationError{Plugin: coingecko.Name, Reason: "bad config", Err: err}
	}
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return coingecko.New(coingecko.Options{
		APIKey:            key,
		Pro:               cfg.Pro,
		BaseURL:           cfg.BaseURL,
		CacheTTL:          cfg.CacheTTL,
		CacheCapacity:     cfg.CacheCapacity,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
}
