package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wolfcito/goat-sub002/internal/journal"
)

const insertExecutionSQL = `INSERT INTO tool_executions
    (id, tool, plugin, chain, wallet, input, output, error_message, error_code, started_at, duration_ms)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectExecutionsSQL = `SELECT id, tool, plugin, chain, wallet, input, output, error_message, error_code, started_at, duration_ms
    FROM tool_executions`

// JournalStore 将调用记录写入 tool_executions 表。
type JournalStore struct {
	db *sql.DB
}

// NewJournalStore 连接数据库并执行迁移。
func NewJournalStore(ctx context.Context, cfg Config) (*JournalStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &JournalStore{db: db}
	if err := migrate(ctx, db, embeddedMigrations); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Record 实现 journal.Sink。
func (s *JournalStore) Record(ctx context.Context, e journal.Entry) error {
	_, err := s.db.ExecContext(ctx, insertExecutionSQL,
		e.ID, e.Tool, e.Plugin, e.Chain, e.Wallet,
		nullableJSON(e.Input), nullableJSON(e.Output),
		nullableString(e.Error), e.Code,
		e.StartedAt.UnixMilli(), e.DurationMS)
	if err != nil {
		return fmt.Errorf("写入调用记录失败: %w", err)
	}
	return nil
}

// ListLatest 返回最近的调用记录，tool 为空表示不过滤。
func (s *JournalStore) ListLatest(ctx context.Context, tool string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := selectExecutionsSQL
	args := []any{}
	if tool != "" {
		query += ` WHERE tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询调用记录失败: %w", err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			e              journal.Entry
			input, output  sql.NullString
			errMsg         sql.NullString
			startedAtMilli int64
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Plugin, &e.Chain, &e.Wallet,
			&input, &output, &errMsg, &e.Code, &startedAtMilli, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("解析调用记录失败: %w", err)
		}
		if input.Valid {
			e.Input = []byte(input.String)
		}
		if output.Valid {
			e.Output = []byte(output.String)
		}
		e.Error = errMsg.String
		e.StartedAt = time.UnixMilli(startedAtMilli).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历调用记录失败: %w", err)
	}
	return out, nil
}

// Close 关闭连接池。
func (s *JournalStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableJSON(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullableString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
