// Package coingecko exposes CoinGecko market data. Its tools do not use the
// wallet, so the plugin is available on every chain.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

// Name is the plugin name.
const Name = "coingecko"

const (
	DefaultBaseURL    = "https://api.coingecko.com/api/v3"
	ProBaseURL        = "https://pro-api.coingecko.com/api/v3"
	DefaultCacheTTL      = time.Minute
	DefaultCacheCapacity = 512
	DefaultRatePerMin    = 30
)

// Options configures the plugin.
type Options struct {
	APIKey string
	// Pro selects the paid API host and header.
	Pro bool
	// BaseURL overrides the API host.
	BaseURL           string
	HTTPClient        *http.Client
	CacheTTL          time.Duration
	// CacheCapacity bounds the number of cached responses; the least
	// recently used one is evicted first.
	CacheCapacity     uint64
	RequestsPerMinute int
}

// Plugin serves price and search tools.
type Plugin struct {
	core.PluginBase
	api       *client
	closeOnce sync.Once
}

// New requires an API key.
func New(opts Options) (*Plugin, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &core.PluginConfigurationError{Plugin: Name, Reason: "api key is required"}
	}
	base, header := DefaultBaseURL, "x-cg-demo-api-key"
	if opts.Pro {
		base, header = ProBaseURL, "x-cg-pro-api-key"
	}
	if opts.BaseURL != "" {
		base = strings.TrimRight(opts.BaseURL, "/")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	capacity := opts.CacheCapacity
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}
	perMin := opts.RequestsPerMinute
	if perMin <= 0 {
		perMin = DefaultRatePerMin
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, json.RawMessage](ttl),
		ttlcache.WithCapacity[string, json.RawMessage](capacity),
		ttlcache.WithDisableTouchOnHit[string, json.RawMessage](),
	)
	api := &client{
		base:    base,
		key:     opts.APIKey,
		header:  header,
		http:    httpClient,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
	}
	go api.cache.Start()

	p := &Plugin{api: api}
	p.PluginBase = core.NewPluginBase(Name, api)
	return p, nil
}

// Close stops the cache's expiry loop. It is safe to call more than once.
func (p *Plugin) Close() error {
	p.closeOnce.Do(p.api.cache.Stop)
	return nil
}

func (p *Plugin) SupportsChain(core.Chain) bool { return true }
func (p *Plugin) SupportsSmartWallets() bool    { return true }

func (p *Plugin) Capabilities() []catalog.Capability {
	return []catalog.Capability{catalog.CapabilityNetwork}
}

type client struct {
	base    string
	key     string
	header  string
	http    *http.Client
	cache   *ttlcache.Cache[string, json.RawMessage]
	limiter *rate.Limiter
}

func (c *client) Methods() []core.Method {
	return []core.Method{
		core.StaticMethod(c.GetCoinPrice, core.MethodMeta{
			Name:        "coingecko_get_coin_price",
			Description: "Get the price of a coin by its CoinGecko id, e.g. bitcoin or ethereum.",
		}),
		core.StaticMethod(c.SearchCoins, core.MethodMeta{
			Name:        "coingecko_search_coins",
			Description: "Search coins by name or symbol and return their CoinGecko ids.",
		}),
		core.StaticMethod(c.GetTrendingCoins, core.MethodMeta{
			Name:        "coingecko_get_trending_coins",
			Description: "List the coins trending on CoinGecko in the last 24 hours.",
		}),
	}
}

type PriceParams struct {
	CoinID            string `json:"coinId" jsonschema_description:"CoinGecko coin id, e.g. ethereum"`
	VsCurrency        string `json:"vsCurrency" jsonschema_description:"Quote currency, e.g. usd"`
	IncludeMarketCap  bool   `json:"includeMarketCap,omitempty"`
	Include24hVolume  bool   `json:"include24hVolume,omitempty"`
	Include24hChange  bool   `json:"include24hChange,omitempty"`
	IncludeLastUpdate bool   `json:"includeLastUpdate,omitempty"`
}

type SearchParams struct {
	Query string `json:"query" jsonschema_description:"Name or symbol to search for"`
	// ExactMatch keeps only coins whose symbol or name equals the query.
	ExactMatch bool `json:"exactMatch,omitempty" jsonschema_description:"Only return exact symbol or name matches"`
}

type NoParams struct{}

// Coin is a search or trending result.
type Coin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank,omitempty"`
}

func (c *client) GetCoinPrice(ctx context.Context, p PriceParams) (any, error) {
	q := url.Values{}
	q.Set("ids", p.CoinID)
	q.Set("vs_currencies", p.VsCurrency)
	q.Set("include_market_cap", fmt.Sprint(p.IncludeMarketCap))
	q.Set("include_24hr_vol", fmt.Sprint(p.Include24hVolume))
	q.Set("include_24hr_change", fmt.Sprint(p.Include24hChange))
	q.Set("include_last_updated_at", fmt.Sprint(p.IncludeLastUpdate))

	var prices map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", q, &prices); err != nil {
		return nil, err
	}
	price, ok := prices[p.CoinID]
	if !ok {
		return nil, fmt.Errorf("coingecko: unknown coin id %q", p.CoinID)
	}
	return price, nil
}

func (c *client) SearchCoins(ctx context.Context, p SearchParams) (any, error) {
	q := url.Values{}
	q.Set("query", p.Query)
	var res struct {
		Coins []Coin `json:"coins"`
	}
	if err := c.get(ctx, "/search", q, &res); err != nil {
		return nil, err
	}
	if !p.ExactMatch {
		return res.Coins, nil
	}
	exact := make([]Coin, 0, len(res.Coins))
	for _, coin := range res.Coins {
		if strings.EqualFold(coin.Symbol, p.Query) || strings.EqualFold(coin.Name, p.Query) {
			exact = append(exact, coin)
		}
	}
	return exact, nil
}

func (c *client) GetTrendingCoins(ctx context.Context, _ NoParams) (any, error) {
	var res struct {
		Coins []struct {
			Item Coin `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "/search/trending", nil, &res); err != nil {
		return nil, err
	}
	out := make([]Coin, len(res.Coins))
	for i, c := range res.Coins {
		out[i] = c.Item
	}
	return out, nil
}

// get fetches path, serving repeated queries from the cache and waiting on
// the rate limiter otherwise.
func (c *client) get(ctx context.Context, path string, query url.Values, dst any) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	if item := c.cache.Get(endpoint); item != nil {
		return json.Unmarshal(item.Value(), dst)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("coingecko: rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.header, c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko: %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("coingecko: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("coingecko: decode %s: %w", path, err)
	}
	c.cache.Set(endpoint, body, ttlcache.DefaultTTL)
	logger.Named(Name).Debug("coingecko request", "path", path, "status", resp.StatusCode)
	return nil
}

// APIError is a non-200 answer from CoinGecko.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if len(e.Body) > 200 {
		return fmt.Sprintf("coingecko: status %d: %s...", e.Status, e.Body[:200])
	}
	return fmt.Sprintf("coingecko: status %d: %s", e.Status, e.Body)
}

// IsRateLimited reports whether err is a 429 from CoinGecko.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
