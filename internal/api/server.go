package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wolfcito/goat-sub002/internal/journal"
	"github.com/wolfcito/goat-sub002/internal/observability/metrics"
	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/logger"
	"github.com/wolfcito/goat-sub002/pkg/schema"
)

const maxBodyBytes = 1 << 20

// JournalReader 提供最近的执行记录。
type JournalReader interface {
	Entries(limit int) []journal.Entry
}

// Server 负责暴露 REST 接口，供外部调用工具。
type Server struct {
	addr            string
	tools           *core.Toolset
	plugins         []catalog.Info
	journal         JournalReader
	metrics         *metrics.Registry
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// Option 配置 Server。
type Option func(*Server)

// WithPlugins 开启 GET /api/v1/plugins。
func WithPlugins(infos []catalog.Info) Option {
	return func(s *Server) { s.plugins = infos }
}

// WithJournal 开启 GET /api/v1/executions。
func WithJournal(r JournalReader) Option {
	return func(s *Server) { s.journal = r }
}

// WithMetrics 开启 /metrics 并统计每个接口的请求。
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Server) { s.metrics = reg }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithShutdownTimeout 设置优雅关闭的最长等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, tools *core.Toolset, opts ...Option) *Server {
	s := &Server{addr: addr, tools: tools, shutdownTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/v1/tools", "tools", s.handleListTools)
	s.route(mux, "POST /api/v1/tools/{name}", "tool_call", s.handleCallTool)
	s.route(mux, "GET /api/v1/openapi.json", "openapi", s.handleOpenAPI)
	if s.plugins != nil {
		s.route(mux, "GET /api/v1/plugins", "plugins", s.handleListPlugins)
	}
	if s.journal != nil {
		s.route(mux, "GET /api/v1/executions", "executions", s.handleListExecutions)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return withRequestID(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.metrics != nil {
		handler = s.metrics.Instrument(name, handler)
	}
	mux.Handle(pattern, handler)
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("addr", s.addr), slog.Int("tools", s.tools.Len()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("API 服务关闭超时", logger.Err(err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type toolView struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Plugin      string          `json:"plugin,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.Tools()
	out := make([]toolView, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolView{
			Name:        t.Name(),
			Description: t.Description(),
			Plugin:      s.tools.PluginOf(t.Name()),
			Parameters:  t.Parameters().JSON(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

type callResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, errorResponse{Code: string(xerrors.CodeInvalidArgument), Message: "请求体过大"})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errorResponse{Code: string(xerrors.CodeInvalidArgument), Message: "请求体不是合法的 JSON"})
		return
	}

	out, err := s.tools.Execute(r.Context(), name, json.RawMessage(body))
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("工具执行失败", logger.Tool(name), slog.String("request_id", requestID(r)), logger.Err(err))
		}
		writeError(w, status, toErrorResponse(err))
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Tool: name, Result: out})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.plugins})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": s.journal.Entries(limit)})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OpenAPI(s.tools))
}

type errorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  schema.FieldErrors `json:"fields,omitempty"`
}

func toErrorResponse(err error) errorResponse {
	resp := errorResponse{Code: string(xerrors.CodeOf(err)), Message: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	return resp
}

// StatusFor 将错误码映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeSigning, xerrors.CodeTransaction, xerrors.CodeQuery:
		return http.StatusBadGateway
	case xerrors.CodeInitializationFailure, xerrors.CodePluginConfiguration:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, map[string]any{"error": resp})
}

type requestIDKey struct{}

// withRequestID 为每个请求分配 X-Request-ID，客户端已提供时沿用。
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
