package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

// Config 描述了 goat 在启动阶段需要加载的核心配置。
type Config struct {
	Server      ServerConfig      `json:"server"`
	Log         logger.Config     `json:"log"`
	Wallet      WalletConfig      `json:"wallet"`
	Web3        Web3Config        `json:"web3"`
	Plugins     PluginsConfig     `json:"plugins"`
	Aggregation AggregationConfig `json:"aggregation"`
	Journal     JournalConfig     `json:"journal"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address         string `json:"address"`
	Metrics         bool   `json:"metrics"`
	ShutdownSeconds int    `json:"shutdown_seconds"`
}

// WalletConfig 选择代理使用的钱包。私钥只能通过环境变量提供。
type WalletConfig struct {
	// Chain 为 chains.yaml 中的链名称，留空时使用 web3.default_chain。
	Chain         string `json:"chain"`
	PrivateKeyEnv string `json:"private_key_env"`
	// Kind 为 direct 或 smart。
	Kind string `json:"kind"`
	// FlushSeconds 为 serve/mcp 下 smart 钱包广播排队交易的间隔。
	FlushSeconds int `json:"flush_seconds"`
}

// Web3Config 指向链定义文件。
type Web3Config struct {
	ChainsFile   string `json:"chains_file"`
	DefaultChain string `json:"default_chain"`
}

// PluginsConfig 指向插件目录文件。
type PluginsConfig struct {
	CatalogFile string `json:"catalog_file"`
}

// AggregationConfig 对应 core.GetTools 的选项。
type AggregationConfig struct {
	DuplicatePolicy      string `json:"duplicate_policy"`
	PluginTimeoutSeconds int    `json:"plugin_timeout_seconds"`
}

// JournalConfig 描述工具执行日志的落地方式。
type JournalConfig struct {
	// Driver 可选 memory、mysql、redis，留空表示关闭。
	Driver   string         `json:"driver"`
	DSN      string         `json:"dsn"`
	Capacity int            `json:"capacity"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
	MaxLen   int64  `json:"max_len"`
}

// RabbitMQConfig 开启后，每条执行记录都会额外发布到交换机。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Audit.Enabled {
		c.Log.Audit.Path = resolve(baseDir, c.Log.Audit.Path, filepath.Join("logs", "audit.log"))
	}

	if c.Wallet.Kind == "" {
		c.Wallet.Kind = string(core.WalletKindDirect)
	}
	if c.Wallet.FlushSeconds <= 0 {
		c.Wallet.FlushSeconds = 5
	}

	c.Web3.ChainsFile = resolve(baseDir, c.Web3.ChainsFile, "chains.yaml")
	c.Plugins.CatalogFile = resolve(baseDir, c.Plugins.CatalogFile, "plugins.yaml")

	if c.Aggregation.DuplicatePolicy == "" {
		c.Aggregation.DuplicatePolicy = core.DuplicateReject.String()
	}
	if c.Aggregation.PluginTimeoutSeconds <= 0 {
		c.Aggregation.PluginTimeoutSeconds = 30
	}

	if c.Journal.Capacity <= 0 {
		c.Journal.Capacity = 1000
	}
	if c.Journal.Redis.Key == "" {
		c.Journal.Redis.Key = "goat:journal"
	}
	if c.Journal.Redis.MaxLen <= 0 {
		c.Journal.Redis.MaxLen = 10000
	}
	if c.Journal.RabbitMQ.URL != "" && c.Journal.RabbitMQ.Exchange == "" {
		c.Journal.RabbitMQ.Exchange = "goat.journal"
	}
}

// Validate 检查取值范围。
func (c *Config) Validate() error {
	switch core.WalletKind(c.Wallet.Kind) {
	case core.WalletKindDirect, core.WalletKindSmart:
	default:
		return fmt.Errorf("wallet.kind 取值非法: %q", c.Wallet.Kind)
	}
	if _, err := c.Aggregation.Policy(); err != nil {
		return err
	}
	switch strings.ToLower(c.Journal.Driver) {
	case "", "memory", "mysql", "redis":
	default:
		return fmt.Errorf("journal.driver 不支持: %q", c.Journal.Driver)
	}
	if strings.EqualFold(c.Journal.Driver, "mysql") && c.Journal.DSN == "" {
		return errors.New("journal.driver 为 mysql 时必须提供 dsn")
	}
	if strings.EqualFold(c.Journal.Driver, "redis") && c.Journal.Redis.Address == "" {
		return errors.New("journal.driver 为 redis 时必须提供 redis.address")
	}
	return nil
}

// Policy 解析重名工具的处理策略。
func (a AggregationConfig) Policy() (core.DuplicatePolicy, error) {
	switch strings.ToLower(a.DuplicatePolicy) {
	case "", core.DuplicateReject.String():
		return core.DuplicateReject, nil
	case core.DuplicateOverwrite.String():
		return core.DuplicateOverwrite, nil
	default:
		return core.DuplicateReject, fmt.Errorf("aggregation.duplicate_policy 取值非法: %q", a.DuplicatePolicy)
	}
}

// PluginTimeout 返回单个插件 GetTools 的超时时间。
func (a AggregationConfig) PluginTimeout() time.Duration {
	return time.Duration(a.PluginTimeoutSeconds) * time.Second
}

func resolve(baseDir, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
