package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wolfcito/goat-sub002/internal/config"
	"github.com/wolfcito/goat-sub002/internal/web3"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/wallet/evm"
	"github.com/wolfcito/goat-sub002/pkg/wallet/solana"
)

// KeyResolver returns the private key for a named chain.
type KeyResolver func(name string, def web3.ChainDefinition) (string, error)

// EnvKeys reads keys from the environment. The variable is the chain's
// private_key_env, then fallback, then GOAT_<NAME>_PRIVATE_KEY.
func EnvKeys(fallback string) KeyResolver {
	return func(name string, def web3.ChainDefinition) (string, error) {
		env := def.PrivateKeyEnv
		if env == "" {
			env = fallback
		}
		if env == "" {
			env = DefaultKeyEnv(name)
		}
		key := strings.TrimSpace(os.Getenv(env))
		if key == "" {
			return "", fmt.Errorf("环境变量 %s 未设置链 %s 的私钥", env, name)
		}
		return key, nil
	}
}

// DefaultKeyEnv derives GOAT_<NAME>_PRIVATE_KEY from a chain name.
func DefaultKeyEnv(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return "GOAT_" + b.String() + "_PRIVATE_KEY"
}

// Registry builds wallet clients for the chains in chains.yaml. Wallets are
// created on first use and cached per chain and wallet kind.
type Registry struct {
	mu           sync.Mutex
	defaultChain string
	defs         map[string]web3.ChainDefinition
	keys         KeyResolver
	wallets      map[string]core.WalletClient
	closers      []func()
}

// NewRegistry loads chain definitions from cfg.ChainsFile.
func NewRegistry(cfg config.Web3Config, keys KeyResolver) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainsFile)
	if err != nil {
		return nil, err
	}
	defaultChain := cfg.DefaultChain
	if defaultChain == "" {
		defaultChain = defs.Default
	}
	return NewRegistryFromDefinitions(defs, defaultChain, keys)
}

// NewRegistryFromDefinitions builds a registry over already loaded
// definitions.
func NewRegistryFromDefinitions(defs web3.ChainDefinitions, defaultChain string, keys KeyResolver) (*Registry, error) {
	if len(defs.Chains) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}
	if keys == nil {
		keys = EnvKeys("")
	}
	r := &Registry{
		defs:    defs.Chains,
		keys:    keys,
		wallets: make(map[string]core.WalletClient),
	}
	if defaultChain == "" {
		defaultChain = r.Chains()[0]
	}
	if _, ok := r.defs[defaultChain]; !ok {
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", defaultChain)
	}
	r.defaultChain = defaultChain
	return r, nil
}

// DefaultChain returns the name of the default chain.
func (r *Registry) DefaultChain() string { return r.defaultChain }

// Definition returns the definition of a named chain.
func (r *Registry) Definition(name string) (web3.ChainDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Default returns the wallet of the default chain.
func (r *Registry) Default(ctx context.Context, kind core.WalletKind) (core.WalletClient, error) {
	return r.Wallet(ctx, r.defaultChain, kind)
}

// Wallet returns the wallet for the named chain, creating it if needed.
func (r *Registry) Wallet(ctx context.Context, name string, kind core.WalletKind) (core.WalletClient, error) {
	if r == nil {
		return nil, errors.New("未初始化的钱包注册表")
	}
	if name == "" {
		name = r.defaultChain
	}
	if kind == "" {
		kind = core.WalletKindDirect
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("链 %s 未在配置中找到", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cacheKey := name + "/" + string(kind)
	if w, ok := r.wallets[cacheKey]; ok {
		return w, nil
	}
	w, closer, err := r.build(ctx, name, def, kind)
	if err != nil {
		return nil, fmt.Errorf("初始化链 %s 的钱包失败: %w", name, err)
	}
	r.wallets[cacheKey] = w
	if closer != nil {
		r.closers = append(r.closers, closer)
	}
	return w, nil
}

func (r *Registry) build(ctx context.Context, name string, def web3.ChainDefinition, kind core.WalletKind) (core.WalletClient, func(), error) {
	chain, err := def.Chain()
	if err != nil {
		return nil, nil, err
	}
	key, err := r.keys(name, def)
	if err != nil {
		return nil, nil, err
	}
	switch chain.Type {
	case core.ChainEVM:
		w, err := evm.Dial(ctx, evm.Config{
			RPCURL:        def.RPCURL,
			BatchRPCURL:   def.BatchRPCURL,
			ChainID:       def.ChainID,
			NativeSymbol:  def.NativeSymbol,
			NativeName:    def.NativeName,
			PrivateKeyHex: key,
		})
		if err != nil {
			return nil, nil, err
		}
		if kind == core.WalletKindSmart {
			return evm.NewSmartWallet(w), w.Close, nil
		}
		return w, w.Close, nil
	case core.ChainSolana:
		if kind == core.WalletKindSmart {
			return nil, nil, errors.New("solana 不支持 smart 钱包")
		}
		w, err := solana.New(solana.Config{RPCURL: def.RPCURL, Network: def.Network, PrivateKeyBase58: key})
		if err != nil {
			return nil, nil, err
		}
		return w, nil, nil
	default:
		return nil, nil, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, chain.Type)
	}
}

// Close releases all wallets managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, closeFn := range r.closers {
		closeFn()
	}
	r.closers = nil
	r.wallets = make(map[string]core.WalletClient)
}

// Chains returns the list of configured chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
