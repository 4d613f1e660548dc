package coingecko_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/core/coretest"
	"github.com/wolfcito/goat-sub002/pkg/logger"
	"github.com/wolfcito/goat-sub002/pkg/plugins/coingecko"
)

type fakeAPI struct {
	*httptest.Server
	hits atomic.Int64
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		if r.Header.Get("x-cg-demo-api-key") != "test-key" {
			http.Error(w, `{"error":"missing key"}`, http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("ids") == "throttled" {
			http.Error(w, `{"status":"rate limited"}`, http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ethereum":{"usd":3150.5,"usd_market_cap":380000000000}}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		_, _ = w.Write([]byte(`{"coins":[
			{"id":"usd-coin","name":"USDC","symbol":"USDC","market_cap_rank":7},
			{"id":"bridged-usdc","name":"Bridged USDC","symbol":"USDC.E","market_cap_rank":300}
		]}`))
	})
	mux.HandleFunc("/search/trending", func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		_, _ = w.Write([]byte(`{"coins":[{"item":{"id":"pepe","name":"Pepe","symbol":"PEPE","market_cap_rank":40}}]}`))
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func newToolset(t *testing.T, api *fakeAPI, chain core.Chain) *core.Toolset {
	t.Helper()
	p, err := coingecko.New(coingecko.Options{APIKey: "test-key", BaseURL: api.URL, RequestsPerMinute: 600})
	require.NoError(t, err)
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(chain), []core.Plugin{p}, core.WithLogger(logger.Discard()))
	require.NoError(t, err)
	return ts
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := coingecko.New(coingecko.Options{})
	var cfgErr *core.PluginConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, coingecko.Name, cfgErr.Plugin)
}

func TestToolsAvailableOnEveryChain(t *testing.T) {
	api := newFakeAPI(t)
	want := []string{"coingecko_get_coin_price", "coingecko_search_coins", "coingecko_get_trending_coins"}
	for _, chain := range []core.Chain{core.EVM(8453), core.Solana("devnet"), core.Sui("")} {
		assert.Equal(t, want, newToolset(t, api, chain).Names(), chain.String())
	}
}

func TestGetCoinPriceIsCached(t *testing.T) {
	api := newFakeAPI(t)
	ts := newToolset(t, api, core.EVM(1))
	input := `{"coinId":"ethereum","vsCurrency":"usd","includeMarketCap":true}`

	first, err := ts.Execute(context.Background(), "coingecko_get_coin_price", input)
	require.NoError(t, err)
	second, err := ts.Execute(context.Background(), "coingecko_get_coin_price", input)
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"usd": 3150.5, "usd_market_cap": 380000000000}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), api.hits.Load())
}

func TestCacheIsBoundedByCapacity(t *testing.T) {
	api := newFakeAPI(t)
	p, err := coingecko.New(coingecko.Options{APIKey: "test-key", BaseURL: api.URL, RequestsPerMinute: 600, CacheCapacity: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p}, core.WithLogger(logger.Discard()))
	require.NoError(t, err)

	search := func(query string) {
		t.Helper()
		_, err := ts.Execute(context.Background(), "coingecko_search_coins", map[string]any{"query": query})
		require.NoError(t, err)
	}
	search("usdc")
	search("pepe")
	search("usdc")
	assert.Equal(t, int64(2), api.hits.Load())

	search("eth")
	search("usdc")
	assert.Equal(t, int64(3), api.hits.Load())
	search("pepe")
	assert.Equal(t, int64(4), api.hits.Load(), "least recently used entry is evicted past capacity")
}

func TestCloseStopsCacheOnce(t *testing.T) {
	p, err := coingecko.New(coingecko.Options{APIKey: "test-key"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, p.Close())
		assert.NoError(t, p.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestGetCoinPriceRequiresCoinID(t *testing.T) {
	api := newFakeAPI(t)
	ts := newToolset(t, api, core.EVM(1))
	_, err := ts.Execute(context.Background(), "coingecko_get_coin_price", `{"vsCurrency":"usd"}`)
	require.True(t, core.IsValidationError(err))
	assert.Zero(t, api.hits.Load())
}

func TestUnknownCoinAndRateLimit(t *testing.T) {
	api := newFakeAPI(t)
	ts := newToolset(t, api, core.EVM(1))

	_, err := ts.Execute(context.Background(), "coingecko_get_coin_price", `{"coinId":"dogecoin","vsCurrency":"usd"}`)
	require.ErrorContains(t, err, "unknown coin id")

	_, err = ts.Execute(context.Background(), "coingecko_get_coin_price", `{"coinId":"throttled","vsCurrency":"usd"}`)
	require.Error(t, err)
	assert.True(t, coingecko.IsRateLimited(err))
}

func TestSearchCoinsExactMatch(t *testing.T) {
	api := newFakeAPI(t)
	ts := newToolset(t, api, core.EVM(1))

	all, err := ts.Execute(context.Background(), "coingecko_search_coins", map[string]any{"query": "usdc"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	exact, err := ts.Execute(context.Background(), "coingecko_search_coins", map[string]any{"query": "usdc", "exactMatch": true})
	require.NoError(t, err)
	assert.Equal(t, []coingecko.Coin{{ID: "usd-coin", Name: "USDC", Symbol: "USDC", MarketCapRank: 7}}, exact)
	// Same query string hits the cache.
	assert.Equal(t, int64(1), api.hits.Load())
}

func TestTrendingCoins(t *testing.T) {
	api := newFakeAPI(t)
	ts := newToolset(t, api, core.EVM(1))
	out, err := ts.Execute(context.Background(), "coingecko_get_trending_coins", nil)
	require.NoError(t, err)
	assert.Equal(t, []coingecko.Coin{{ID: "pepe", Name: "Pepe", Symbol: "PEPE", MarketCapRank: 40}}, out)
}
