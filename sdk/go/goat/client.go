// Package goat is a small client for the goat tool API served by "goat serve".
package goat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Tool calls that send transactions can take a while, so it is generous.
const DefaultHTTPTimeout = 60 * time.Second

// Client wraps the HTTP interactions with the goat REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Tool describes one tool as the server lists it.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Plugin      string          `json:"plugin,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Execution is a recorded tool call.
type Execution struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Plugin     string          `json:"plugin,omitempty"`
	Chain      string          `json:"chain,omitempty"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
}

// FieldError points at one invalid tool argument.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError represents server side validation or execution errors.
type APIError struct {
	StatusCode int
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("goat api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("goat api error (%d): %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the server rejected the tool arguments.
func (e *APIError) IsValidation() bool {
	return e != nil && e.StatusCode == http.StatusUnprocessableEntity
}

// NewClient instantiates a client. When httpClient is nil, a default client
// with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// ListTools returns the tools in server order.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tools", nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// CallTool executes a tool and returns its raw JSON result. args may be any
// JSON-encodable value; nil sends an empty object.
func (c *Client) CallTool(ctx context.Context, name string, args any) (json.RawMessage, error) {
	if args == nil {
		args = struct{}{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tools/"+url.PathEscape(name), body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// CallToolInto executes a tool and decodes its result into dst.
func (c *Client) CallToolInto(ctx context.Context, name string, args any, dst any) error {
	raw, err := c.CallTool(ctx, name, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// Executions returns the most recent tool calls, newest first.
func (c *Client) Executions(ctx context.Context, limit int) ([]Execution, error) {
	endpoint := "/api/v1/executions"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Executions []Execution `json:"executions"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Executions, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	rel.Path = path.Join(c.baseURL.Path, rel.Path)
	u := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &struct {
			Error *APIError `json:"error"`
		}{Error: apiErr})
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
