// Package llm provides clients for text-generation services.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// ChatMessage is one role-tagged message in a generation request.
// Role is one of "system", "user", or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the text-generation contract: ordered role-tagged messages
// in, generated text out. Transport and API failures come back as
// errors; an *APIError means the service answered with a failure
// status, anything else is a transport problem.
type Client interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// ConstrainedGenerator is implemented by clients whose backend can
// constrain generation to a JSON schema. The reply is still subject to
// caller-side validation before use.
type ConstrainedGenerator interface {
	ChatConstrained(ctx context.Context, messages []ChatMessage, format json.RawMessage) (string, error)
}

// APIError is a failure status returned by the generation service, as
// opposed to a transport-level error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error [%d]: %s", e.StatusCode, e.Message)
}
