package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Model != "llama3.1" || req.Stream || len(req.Messages) != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
		if req.Format != nil {
			t.Fatalf("unexpected format on plain chat: %s", req.Format)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "", "llama3.1", time.Second)
	reply, err := client.Chat(context.Background(), []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestOllamaClientChatConstrained(t *testing.T) {
	format := json.RawMessage(`{"type":"object","properties":{"a":{"type":"string"}},"required":["a"],"additionalProperties":false}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if string(req.Format) != string(format) {
			t.Fatalf("format not forwarded: %s", req.Format)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"{\"a\":\"x\"}"}}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "", "llama3.1", time.Second)
	reply, err := client.ChatConstrained(context.Background(), []ChatMessage{{Role: "user", Content: "go"}}, format)
	if err != nil {
		t.Fatalf("ChatConstrained failed: %v", err)
	}
	if reply != `{"a":"x"}` {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestOllamaClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "", "nope", time.Second)
	_, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "model 'nope' not found" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestOllamaClientSetHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected Content-Type header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"}}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "secret", "llama3.1", time.Second)
	if _, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
}

func TestOllamaClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewOllamaClient(server.URL, "", "llama3.1", time.Second)
	_, err := client.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an APIError: %v", err)
	}
}

func TestMockClientConstrainedOutputValidates(t *testing.T) {
	format := json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"nested": {"type": "object", "properties": {"ok": {"type": "boolean"}}, "required": ["ok"], "additionalProperties": false}
		},
		"required": ["name", "count", "tags", "nested"],
		"additionalProperties": false
	}`)

	client := NewMockClient()
	raw, err := client.ChatConstrained(context.Background(), nil, format)
	if err != nil {
		t.Fatalf("ChatConstrained failed: %v", err)
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		t.Fatalf("mock output is not JSON: %v", err)
	}
	for _, key := range []string{"name", "count", "tags", "nested"} {
		if _, ok := value[key]; !ok {
			t.Fatalf("mock output missing key %q: %s", key, raw)
		}
	}
}
