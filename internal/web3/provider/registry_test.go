package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfcito/goat-sub002/internal/config"
	"github.com/wolfcito/goat-sub002/internal/web3"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

// chainIDNode answers eth_chainId, which is all Dial needs.
func chainIDNode(t *testing.T, chainIDHex string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"unsupported"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + chainIDHex + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func evmKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key))
}

func TestRegistryBuildsEVMAndSolanaWallets(t *testing.T) {
	node := chainIDNode(t, "0x2105")
	t.Setenv("BASE_KEY", evmKey(t))
	t.Setenv(DefaultKeyEnv("solana-devnet"), base58.Encode(types.NewAccount().PrivateKey))

	defs := web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"base":          {Type: "evm", ChainID: 8453, RPCURL: node.URL, PrivateKeyEnv: "BASE_KEY"},
		"solana-devnet": {Type: "solana", Network: "devnet", RPCURL: "https://api.devnet.solana.com"},
	}}
	reg, err := NewRegistryFromDefinitions(defs, "base", EnvKeys(""))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	assert.Equal(t, []string{"base", "solana-devnet"}, reg.Chains())

	w, err := reg.Default(context.Background(), core.WalletKindDirect)
	require.NoError(t, err)
	assert.Equal(t, core.EVM(8453), w.Chain())
	assert.Equal(t, core.WalletKindDirect, w.Kind())

	again, err := reg.Wallet(context.Background(), "base", core.WalletKindDirect)
	require.NoError(t, err)
	assert.Same(t, w, again)

	smart, err := reg.Wallet(context.Background(), "base", core.WalletKindSmart)
	require.NoError(t, err)
	assert.Equal(t, core.WalletKindSmart, smart.Kind())

	sol, err := reg.Wallet(context.Background(), "solana-devnet", "")
	require.NoError(t, err)
	assert.Equal(t, core.Solana("devnet"), sol.Chain())

	_, err = reg.Wallet(context.Background(), "solana-devnet", core.WalletKindSmart)
	require.Error(t, err)
}

func TestRegistryChainIDMismatch(t *testing.T) {
	node := chainIDNode(t, "0x1")
	defs := web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"base": {Type: "evm", ChainID: 8453, RPCURL: node.URL},
	}}
	reg, err := NewRegistryFromDefinitions(defs, "", func(string, web3.ChainDefinition) (string, error) { return evmKey(t), nil })
	require.NoError(t, err)
	_, err = reg.Default(context.Background(), core.WalletKindDirect)
	require.ErrorContains(t, err, "expected 8453")
}

func TestRegistryErrors(t *testing.T) {
	_, err := NewRegistryFromDefinitions(web3.ChainDefinitions{}, "", nil)
	require.Error(t, err)

	defs := web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"sui": {Type: "sui", RPCURL: "https://fullnode.mainnet.sui.io"},
	}}
	_, err = NewRegistryFromDefinitions(defs, "missing", nil)
	require.Error(t, err)

	reg, err := NewRegistryFromDefinitions(defs, "", func(string, web3.ChainDefinition) (string, error) { return "k", nil })
	require.NoError(t, err)
	_, err = reg.Wallet(context.Background(), "sui", core.WalletKindDirect)
	require.ErrorContains(t, err, "不支持的类型")

	_, err = reg.Wallet(context.Background(), "nope", core.WalletKindDirect)
	require.Error(t, err)
}

func TestEnvKeysMissing(t *testing.T) {
	t.Setenv("GOAT_BASE_SEPOLIA_PRIVATE_KEY", "")
	_, err := EnvKeys("")("base-sepolia", web3.ChainDefinition{})
	require.ErrorContains(t, err, "GOAT_BASE_SEPOLIA_PRIVATE_KEY")
}

func TestNewRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: base
chains:
  base:
    type: evm
    chain_id: 8453
    rpc_url: https://mainnet.base.org
    native_symbol: ETH
  mainnet:
    chain_id: 1
    rpc_url: https://eth.llamarpc.com
`), 0o600))
	reg, err := NewRegistry(config.Web3Config{ChainsFile: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "base", reg.DefaultChain())

	def, ok := reg.Definition("mainnet")
	require.True(t, ok)
	chain, err := def.Chain()
	require.NoError(t, err)
	assert.Equal(t, core.EVM(1), chain)
}
