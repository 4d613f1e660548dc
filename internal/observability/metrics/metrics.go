// Package metrics 以 Prometheus 文本格式暴露 HTTP 与工具调用指标。
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wolfcito/goat-sub002/pkg/core"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
)

var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type histogram struct {
	counts []uint64
	sum    float64
	count  uint64
}

func (h *histogram) observe(buckets []float64, value float64) {
	h.count++
	h.sum += value
	for idx, bound := range buckets {
		if value <= bound {
			h.counts[idx]++
		}
	}
}

// family 是一组带相同标签名的序列。
type family struct {
	name     string
	help     string
	kind     string
	labels   []string
	counters map[string]uint64
	hists    map[string]*histogram
	values   map[string][]string
}

func newFamily(name, help, kind string, labels ...string) *family {
	return &family{
		name:     name,
		help:     help,
		kind:     kind,
		labels:   labels,
		counters: make(map[string]uint64),
		hists:    make(map[string]*histogram),
		values:   make(map[string][]string),
	}
}

func (f *family) key(values []string) string {
	k := strings.Join(values, "\xff")
	if _, ok := f.values[k]; !ok {
		f.values[k] = append([]string(nil), values...)
	}
	return k
}

func (f *family) inc(values ...string) {
	f.counters[f.key(values)]++
}

func (f *family) observe(value float64, values ...string) {
	k := f.key(values)
	h := f.hists[k]
	if h == nil {
		h = &histogram{counts: make([]uint64, len(defaultBuckets))}
		f.hists[k] = h
	}
	h.observe(defaultBuckets, value)
}

func (f *family) labelString(k string, extra ...string) string {
	values := f.values[k]
	parts := make([]string, 0, len(values)+1)
	for i, v := range values {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", f.labels[i], escape(v)))
	}
	parts = append(parts, extra...)
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (f *family) render(b *strings.Builder) {
	fmt.Fprintf(b, "# HELP %s %s\n", f.name, f.help)
	fmt.Fprintf(b, "# TYPE %s %s\n", f.name, f.kind)

	if f.kind == "counter" {
		for _, k := range sortedKeys(f.counters) {
			fmt.Fprintf(b, "%s%s %d\n", f.name, f.labelString(k), f.counters[k])
		}
		return
	}
	for _, k := range sortedKeys(f.hists) {
		h := f.hists[k]
		for idx, bound := range defaultBuckets {
			fmt.Fprintf(b, "%s_bucket%s %d\n", f.name, f.labelString(k, fmt.Sprintf("le=\"%s\"", formatFloat(bound))), h.counts[idx])
		}
		fmt.Fprintf(b, "%s_bucket%s %d\n", f.name, f.labelString(k, `le="+Inf"`), h.count)
		fmt.Fprintf(b, "%s_sum%s %s\n", f.name, f.labelString(k), formatFloat(h.sum))
		fmt.Fprintf(b, "%s_count%s %d\n", f.name, f.labelString(k), h.count)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Registry 汇总所有指标，零值不可用，请使用 NewRegistry。
type Registry struct {
	mu           sync.Mutex
	httpRequests *family
	httpErrors   *family
	httpLatency  *family
	toolCalls    *family
	toolLatency  *family
}

// NewRegistry 创建一个空的指标集合。
func NewRegistry() *Registry {
	return &Registry{
		httpRequests: newFamily("goat_http_requests_total", "Total number of HTTP requests processed.", "counter", "handler", "method", "code"),
		httpErrors:   newFamily("goat_http_request_errors_total", "Total number of HTTP requests that resulted in a server error.", "counter", "handler", "method"),
		httpLatency:  newFamily("goat_http_request_duration_seconds", "HTTP request duration in seconds.", "histogram", "handler", "method"),
		toolCalls:    newFamily("goat_tool_calls_total", "Total number of tool executions by outcome code.", "counter", "tool", "plugin", "code"),
		toolLatency:  newFamily("goat_tool_call_duration_seconds", "Tool execution duration in seconds.", "histogram", "tool", "plugin"),
	}
}

var defaultRegistry = NewRegistry()

// Default 返回进程级的指标集合。
func Default() *Registry { return defaultRegistry }

// ObserveHTTPRequest 记录一次 HTTP 请求。
func (r *Registry) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.httpRequests.inc(handler, method, strconv.Itoa(status))
	if status >= 500 {
		r.httpErrors.inc(handler, method)
	}
	r.httpLatency.observe(duration.Seconds(), handler, method)
}

// ObserveToolCall 记录一次工具调用，成功时 code 为 OK。
func (r *Registry) ObserveToolCall(tool, plugin string, err error, duration time.Duration) {
	code := "OK"
	if err != nil {
		code = string(xerrors.CodeOf(err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCalls.inc(tool, plugin, code)
	r.toolLatency.observe(duration.Seconds(), tool, plugin)
}

// Middleware 返回统计工具调用的中间件。
func (r *Registry) Middleware() core.Middleware {
	return func(info core.ToolInfo, next core.Handler) core.Handler {
		return func(ctx context.Context, input any) (any, error) {
			started := time.Now()
			out, err := next(ctx, input)
			r.ObserveToolCall(info.Name, info.Plugin, err, time.Since(started))
			return out, err
		}
	}
}

// Render 输出 Prometheus 文本格式。
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.Grow(2048)
	for _, f := range []*family{r.httpRequests, r.httpErrors, r.httpLatency, r.toolCalls, r.toolLatency} {
		f.render(&b)
	}
	return b.String()
}

// Handler 暴露 /metrics。
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, r.Render())
	})
}

// Instrument 包装 handler 并记录请求指标。
func (r *Registry) Instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, req)
		r.ObserveHTTPRequest(name, req.Method, rec.status, time.Since(started))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	return strings.ReplaceAll(value, "\n", "")
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
