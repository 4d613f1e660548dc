package web3

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// ChainDefinitions models the structure of chains.yaml.
type ChainDefinitions struct {
	Default string                     `yaml:"default"`
	Chains  map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint definition.
type ChainDefinition struct {
	Type         string `yaml:"type"`
	ChainID      int64  `yaml:"chain_id"`
	Network      string `yaml:"network"`
	RPCURL       string `yaml:"rpc_url"`
	BatchRPCURL  string `yaml:"batch_rpc_url"`
	NativeSymbol string `yaml:"native_symbol"`
	NativeName   string `yaml:"native_name"`
	// PrivateKeyEnv 覆盖默认的私钥环境变量名。
	PrivateKeyEnv string `yaml:"private_key_env"`
	Description   string `yaml:"description"`
}

// Chain 将定义转换为 core.Chain。
func (d ChainDefinition) Chain() (core.Chain, error) {
	t := core.ChainType(strings.ToLower(strings.TrimSpace(d.Type)))
	if t == "" {
		t = core.ChainEVM
	}
	chain := core.Chain{Type: t}
	if t == core.ChainEVM || t == core.ChainZilliqa {
		chain.ID = d.ChainID
	} else {
		chain.Network = d.Network
	}
	if err := chain.Validate(); err != nil {
		return core.Chain{}, err
	}
	return chain, nil
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, def := range defs.Chains {
		if _, err := def.Chain(); err != nil {
			return ChainDefinitions{}, fmt.Errorf("链 %s 配置非法: %w", name, err)
		}
		if strings.TrimSpace(def.RPCURL) == "" {
			return ChainDefinitions{}, fmt.Errorf("链 %s 缺少 rpc_url", name)
		}
	}
	return defs, nil
}
