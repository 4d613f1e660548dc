// Package api 通过 REST 暴露聚合后的工具集：列出工具、执行工具，并提供
// OpenAPI 描述与 Prometheus 指标。
package api
