package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfcito/goat-sub002/internal/journal"
)

// Config 描述 Redis 落地端的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
	MaxLen   int64
}

func (c Config) withDefaults() Config {
	if c.Key == "" {
		c.Key = "goat:journal"
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 10000
	}
	return c
}

// JournalSink 使用 LPUSH + LTRIM 维护一个定长的调用记录列表。
type JournalSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewJournalSink 连接 Redis 并创建落地端。
func NewJournalSink(ctx context.Context, cfg Config) (*JournalSink, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return NewJournalSinkWithClient(client, cfg), nil
}

// NewJournalSinkWithClient 复用已有的客户端。
func NewJournalSinkWithClient(client *redis.Client, cfg Config) *JournalSink {
	cfg = cfg.withDefaults()
	return &JournalSink{client: client, key: cfg.Key, maxLen: cfg.MaxLen}
}

// Record 实现 journal.Sink。
func (s *JournalSink) Record(ctx context.Context, entry journal.Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化调用记录失败: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, body)
		pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Redis 写入调用记录失败: %w", err)
	}
	return nil
}

// Recent 读取最近 limit 条记录。
func (s *JournalSink) Recent(ctx context.Context, limit int64) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("Redis 读取调用记录失败: %w", err)
	}
	out := make([]journal.Entry, 0, len(raw))
	for _, item := range raw {
		var entry journal.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("解析调用记录失败: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Close 关闭客户端。
func (s *JournalSink) Close() error {
	return s.client.Close()
}
