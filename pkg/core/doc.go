// Package core turns a wallet client and an ordered list of plugins into a
// single flat set of schema-validated tools for LLM agents. It defines the
// wallet capability contract, the plugin contract, the explicit method
// registration table used by plugin services, and the aggregation engine
// (GetTools and its deferred variant GetDeferredTools) that filters plugins
// by chain and wallet kind and enforces unique tool names.
package core
