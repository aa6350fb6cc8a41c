package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to an Ollama-compatible /api/chat endpoint.
type OllamaClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama client. apiKey may be empty for
// a local daemon.
func NewOllamaClient(baseURL, apiKey, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var (
	_ Client               = (*OllamaClient)(nil)
	_ ConstrainedGenerator = (*OllamaClient)(nil)
)

// chatRequest is the Ollama chat request body. Format, when set,
// constrains generation to the given JSON schema.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ChatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
}

// chatResponse is the Ollama chat response body.
type chatResponse struct {
	Message ChatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Chat sends a chat request and returns the generated text.
func (c *OllamaClient) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	return c.chat(ctx, messages, nil)
}

// ChatConstrained sends a chat request with the format parameter set so
// the backend constrains its output to the schema.
func (c *OllamaClient) ChatConstrained(ctx context.Context, messages []ChatMessage, format json.RawMessage) (string, error) {
	return c.chat(ctx, messages, format)
}

func (c *OllamaClient) chat(ctx context.Context, messages []ChatMessage, format json.RawMessage) (string, error) {
	body, err := json.Marshal(&chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   format,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result.Message.Content, nil
}

// setHeaders sets common request headers.
func (c *OllamaClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
