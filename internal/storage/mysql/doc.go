// Package mysql 把工具调用记录持久化到 MySQL，并负责执行内嵌的 schema 迁移。
package mysql
