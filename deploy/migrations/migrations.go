package migrations

import "embed"

// Files 暴露工具调用记录相关的 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
