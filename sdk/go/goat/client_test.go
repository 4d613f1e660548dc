package goat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestListTools(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/tools" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"tools":[{"name":"send_ETH","plugin":"send_eth","parameters":{"type":"object"}}]}`)
	})

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "send_ETH" || tools[0].Plugin != "send_eth" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestCallToolInto(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tools/get_balance" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var args map[string]string
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil || args["address"] != "0x1" {
			t.Fatalf("unexpected body: %v %v", args, err)
		}
		_, _ = io.WriteString(w, `{"tool":"get_balance","result":{"value":"1.5","symbol":"ETH"}}`)
	})

	var balance struct {
		Value  string `json:"value"`
		Symbol string `json:"symbol"`
	}
	if err := client.CallToolInto(context.Background(), "get_balance", map[string]string{"address": "0x1"}, &balance); err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if balance.Value != "1.5" || balance.Symbol != "ETH" {
		t.Fatalf("unexpected balance: %+v", balance)
	}
}

func TestCallToolValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":{"code":"VALIDATION_FAILED","message":"invalid input","fields":[{"field":"to","message":"missing property"}]}}`)
	})

	_, err := client.CallTool(context.Background(), "send_ETH", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsValidation() || apiErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "to" {
		t.Fatalf("unexpected fields: %+v", apiErr.Fields)
	}
}

func TestPlainTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
	})

	_, err := client.ListTools(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "服务已关闭" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecutionsLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/executions" || r.URL.Query().Get("limit") != "2" {
			t.Fatalf("unexpected request: %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"executions":[{"id":"a","tool":"send_ETH","code":"TRANSACTION_FAILURE"}]}`)
	})

	list, err := client.Executions(context.Background(), 2)
	if err != nil {
		t.Fatalf("executions: %v", err)
	}
	if len(list) != 1 || list[0].Code != "TRANSACTION_FAILURE" {
		t.Fatalf("unexpected executions: %+v", list)
	}
}
