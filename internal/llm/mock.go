package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockClient is a deterministic client for demos and tests. It never
// touches the network.
type MockClient struct{}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var (
	_ Client               = (*MockClient)(nil)
	_ ConstrainedGenerator = (*MockClient)(nil)
)

// Chat returns a canned reply echoing the last user message.
func (m *MockClient) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastUser string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			lastUser = messages[i].Content
			break
		}
	}
	if lastUser == "" {
		return "[MOCK] This is a mock response.", nil
	}
	return fmt.Sprintf("[MOCK] Received your message: %q.", truncate(lastUser, 100)), nil
}

// ChatConstrained synthesizes a zero-valued instance of the schema so
// constrained extraction works end to end without a model backend.
func (m *MockClient) ChatConstrained(ctx context.Context, messages []ChatMessage, format json.RawMessage) (string, error) {
	var node mockSchemaNode
	if err := json.Unmarshal(format, &node); err != nil {
		return "", fmt.Errorf("mock: invalid format schema: %w", err)
	}
	out, err := json.Marshal(node.instance())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type mockSchemaNode struct {
	Type       string                    `json:"type"`
	Properties map[string]mockSchemaNode `json:"properties"`
	Items      *mockSchemaNode           `json:"items"`
}

func (n mockSchemaNode) instance() any {
	switch n.Type {
	case "boolean":
		return false
	case "integer", "number":
		return 0
	case "string":
		return ""
	case "array":
		return []any{}
	case "object":
		obj := make(map[string]any, len(n.Properties))
		for k, prop := range n.Properties {
			obj[k] = prop.instance()
		}
		return obj
	default:
		return nil
	}
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
