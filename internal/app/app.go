// Package app 按固定顺序装配 goat：配置、日志、钱包、插件目录、工具聚合与
// 中间件。cmd/goat 的每个子命令都从这里拿到同一套工具集。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wolfcito/goat-sub002/internal/config"
	"github.com/wolfcito/goat-sub002/internal/journal"
	"github.com/wolfcito/goat-sub002/internal/observability/metrics"
	"github.com/wolfcito/goat-sub002/internal/storage/mysql"
	"github.com/wolfcito/goat-sub002/internal/storage/redis"
	"github.com/wolfcito/goat-sub002/internal/web3/provider"
	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/logger"
	"github.com/wolfcito/goat-sub002/pkg/plugins/builtin"
)

// App 持有一次运行所需的全部组件。
type App struct {
	Config  *config.Config
	Wallet  core.WalletClient
	Catalog *catalog.Catalog
	Tools   *core.Toolset
	Recent  *journal.MemorySink
	Metrics *metrics.Registry

	wallets *provider.Registry
	journal *journal.Fanout
	log     *slog.Logger
}

// Option 覆盖装配过程中的某一步，主要用于测试。
type Option func(*options)

type options struct {
	wallet  core.WalletClient
	catalog *catalog.Catalog
}

// WithWallet 跳过 chains.yaml，直接使用给定钱包。
func WithWallet(w core.WalletClient) Option {
	return func(o *options) { o.wallet = w }
}

// WithCatalog 使用预先注册好工厂的插件目录。
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// Load 读取配置文件并完成装配。
func Load(ctx context.Context, path string, opts ...Option) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return New(ctx, cfg, opts...)
}

// New 基于已加载的配置完成装配。失败时已创建的资源会被释放。
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{Config: cfg, Metrics: metrics.Default(), log: logger.Named("app")}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.Wallet = o.wallet
	if a.Wallet == nil {
		if a.wallets, err = provider.NewRegistry(cfg.Web3, provider.EnvKeys(cfg.Wallet.PrivateKeyEnv)); err != nil {
			return a, err
		}
		chain := cfg.Wallet.Chain
		if chain == "" {
			chain = a.wallets.DefaultChain()
		}
		if a.Wallet, err = a.wallets.Wallet(ctx, chain, core.WalletKind(cfg.Wallet.Kind)); err != nil {
			return a, err
		}
	}

	a.Catalog = o.catalog
	if a.Catalog == nil {
		a.Catalog = catalog.New(catalog.WithLogger(logger.Named("catalog")))
		if err = builtin.Register(a.Catalog); err != nil {
			return a, err
		}
	}
	catalogCfg, err := catalog.LoadConfig(cfg.Plugins.CatalogFile)
	if err != nil {
		return a, err
	}
	plugins, err := a.Catalog.Build(catalogCfg)
	if err != nil {
		return a, err
	}

	policy, err := cfg.Aggregation.Policy()
	if err != nil {
		return a, err
	}
	tools, err := core.GetTools(ctx, a.Wallet, plugins,
		core.WithDuplicatePolicy(policy),
		core.WithPluginTimeout(cfg.Aggregation.PluginTimeout()),
		core.WithLogger(logger.Named("aggregate")),
	)
	if err != nil {
		return a, err
	}

	if err = a.openJournal(ctx); err != nil {
		return a, err
	}
	middleware := []core.Middleware{a.Metrics.Middleware()}
	if a.journal != nil {
		middleware = append([]core.Middleware{journal.Middleware(a.journal, a.Wallet, logger.Named("journal"))}, middleware...)
	}
	a.Tools = tools.Wrap(middleware...)

	a.log.Info("工具集已就绪",
		logger.ChainAttr(a.Wallet.Chain()),
		slog.String("wallet", a.Wallet.Address()),
		slog.Int("plugins", len(plugins)),
		slog.Int("tools", a.Tools.Len()))
	return a, nil
}

func (a *App) openJournal(ctx context.Context) error {
	jc := a.Config.Journal
	driver := strings.ToLower(jc.Driver)
	if driver == "" {
		return nil
	}

	fan := journal.NewFanout()
	a.journal = fan
	a.Recent = journal.NewMemorySink(jc.Capacity)
	fan.Add("memory", a.Recent)

	switch driver {
	case "mysql":
		store, err := mysql.NewJournalStore(ctx, mysql.Config{DSN: jc.DSN})
		if err != nil {
			return err
		}
		fan.Add("mysql", store)
	case "redis":
		sink, err := redis.NewJournalSink(ctx, redis.Config{
			Address:  jc.Redis.Address,
			Password: jc.Redis.Password,
			DB:       jc.Redis.DB,
			Key:      jc.Redis.Key,
			MaxLen:   jc.Redis.MaxLen,
		})
		if err != nil {
			return err
		}
		fan.Add("redis", sink)
	}

	if jc.RabbitMQ.URL != "" {
		sink, err := journal.NewRabbitMQSink(journal.RabbitMQConfig{
			URL:        jc.RabbitMQ.URL,
			Exchange:   jc.RabbitMQ.Exchange,
			RoutingKey: jc.RabbitMQ.RoutingKey,
		})
		if err != nil {
			return err
		}
		fan.Add("rabbitmq", sink)
	}
	return nil
}

// ShutdownTimeout 返回 API 服务优雅关闭的等待时间。
func (a *App) ShutdownTimeout() time.Duration {
	if a.Config == nil || a.Config.Server.ShutdownSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.Config.Server.ShutdownSeconds) * time.Second
}

// FlushInterval 返回后台广播排队交易的间隔。
func (a *App) FlushInterval() time.Duration {
	if a.Config == nil || a.Config.Wallet.FlushSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.Config.Wallet.FlushSeconds) * time.Second
}

// Flusher 由先排队、后广播的钱包实现，例如 evm.SmartWallet。
type Flusher interface {
	Pending() int
	Flush(ctx context.Context) ([]string, error)
}

// Flush 广播钱包中排队的交易并返回其哈希。钱包不排队或队列为空时直接返回。
func (a *App) Flush(ctx context.Context) ([]string, error) {
	f, ok := a.Wallet.(Flusher)
	if !ok || f.Pending() == 0 {
		return nil, nil
	}
	hashes, err := f.Flush(ctx)
	if err != nil {
		a.log.Error("广播排队交易失败", slog.Int("pending", f.Pending()), logger.Err(err))
		return nil, err
	}
	a.log.Info("排队交易已广播", slog.Int("count", len(hashes)), slog.Any("hashes", hashes))
	return hashes, nil
}

// RunFlusher 每隔 interval 广播一次排队交易，直到 ctx 结束。失败只记录日志，
// 交易留在队列中等待下一轮。
func (a *App) RunFlusher(ctx context.Context, interval time.Duration) {
	if _, ok := a.Wallet.(Flusher); !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = a.Flush(ctx)
		}
	}
}

// Close 先广播仍在排队的交易，再释放钱包、插件与落地端。广播失败会出现在
// 返回的错误中。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Wallet != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout())
		if _, err := a.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("关闭前广播排队交易失败: %w", err))
		}
		cancel()
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.Catalog != nil {
		errs = append(errs, a.Catalog.Close())
	}
	if a.wallets != nil {
		a.wallets.Close()
	}
	return errors.Join(errs...)
}
