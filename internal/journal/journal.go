package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wolfcito/goat-sub002/pkg/core"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/logger"
	"github.com/wolfcito/goat-sub002/pkg/schema"
)

// Entry 描述一次工具调用。
type Entry struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Plugin     string          `json:"plugin,omitempty"`
	Chain      string          `json:"chain,omitempty"`
	Wallet     string          `json:"wallet,omitempty"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
}

// Failed 判断调用是否失败。
func (e Entry) Failed() bool { return e.Error != "" }

// Sink 是调用记录的落地端。
type Sink interface {
	Record(ctx context.Context, entry Entry) error
	Close() error
}

// Middleware 返回一个工具中间件：每次调用结束后生成 Entry 并写入 sink。
// sink 写入失败只记日志，不影响调用结果。
func Middleware(sink Sink, wallet core.WalletClient, log *slog.Logger) core.Middleware {
	if log == nil {
		log = logger.Named("journal")
	}
	var chain, address string
	if wallet != nil {
		chain = wallet.Chain().String()
		address = wallet.Address()
	}
	return func(info core.ToolInfo, next core.Handler) core.Handler {
		return func(ctx context.Context, input any) (any, error) {
			started := time.Now()
			out, err := next(ctx, input)

			entry := Entry{
				ID:         uuid.NewString(),
				Tool:       info.Name,
				Plugin:     info.Plugin,
				Chain:      chain,
				Wallet:     address,
				StartedAt:  started.UTC(),
				DurationMS: time.Since(started).Milliseconds(),
			}
			if raw, nerr := schema.Normalize(input); nerr == nil {
				entry.Input = raw
			}
			if err != nil {
				entry.Error = err.Error()
				entry.Code = string(xerrors.CodeOf(err))
			} else if raw, merr := json.Marshal(out); merr == nil {
				entry.Output = raw
			}

			audit(entry)
			if err != nil && xerrors.ShouldAlert(err) {
				log.Error("工具调用失败",
					logger.Tool(info.Name),
					logger.Plugin(info.Plugin),
					slog.String("code", entry.Code),
					slog.Bool("alert", true),
					logger.Err(err))
			}
			if sink != nil {
				if serr := sink.Record(ctx, entry); serr != nil {
					log.Warn("写入调用记录失败", logger.Tool(info.Name), logger.Err(serr))
				}
			}
			return out, err
		}
	}
}

func audit(e Entry) {
	attrs := []any{
		slog.String("id", e.ID),
		logger.Tool(e.Tool),
		slog.Int64("duration_ms", e.DurationMS),
	}
	if e.Plugin != "" {
		attrs = append(attrs, logger.Plugin(e.Plugin))
	}
	if e.Chain != "" {
		attrs = append(attrs, slog.String("chain", e.Chain))
	}
	if e.Failed() {
		attrs = append(attrs, slog.String("code", e.Code), slog.String("error", e.Error))
	}
	logger.Audit().Info("tool_call", attrs...)
}
