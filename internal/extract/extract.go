// Package extract turns a free-text transcript into a schema-conforming
// structured value via a generative model, with a bounded repair loop.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/llm"
	"github.com/mariusarnbjerg/Morton/internal/schema"
)

// DefaultMaxRetries is the default repair budget: two retries after the
// initial attempt, three attempts total.
const DefaultMaxRetries = 2

// ExtractionError is the terminal failure after the repair budget is
// exhausted. It carries the last raw model output and the last
// parse/validation error for diagnosis.
type ExtractionError struct {
	Attempts   int
	LastOutput string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not produce valid JSON after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Engine prompts a generation client until its output parses and
// validates against the target schema, or the retry budget runs out.
type Engine struct {
	client     llm.Client
	maxRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries overrides the repair budget. Negative values are
// treated as zero (a single attempt).
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// NewEngine creates an extraction engine.
func NewEngine(client llm.Client, opts ...Option) *Engine {
	e := &Engine{client: client, maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns a value conforming to s, or an error. Transport and
// API failures are terminal immediately; malformed or nonconforming
// output is fed back to the model with the exact error text, up to the
// retry budget. It never returns a partial or unvalidated result.
func (e *Engine) Extract(ctx context.Context, transcript []domain.Message, s *schema.Schema) (any, error) {
	schemaJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}

	systemPrompt := "You are a clinical summarization assistant. " +
		"Return ONLY valid JSON. No markdown, no commentary.\n" +
		"The JSON MUST match the provided JSON Schema exactly:\n" +
		string(schemaJSON)

	userPrompt := "Summarize the following medical questionnaire transcript into the JSON structure required by the schema.\n\n" +
		"Transcript:\n" + formatTranscript(transcript) + "\n"

	messages := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	constrained, canConstrain := e.client.(llm.ConstrainedGenerator)

	var lastRaw string
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		attempts++

		var raw string
		if canConstrain {
			raw, err = constrained.ChatConstrained(ctx, messages, schemaJSON)
		} else {
			raw, err = e.client.Chat(ctx, messages)
		}
		if err != nil {
			// Transport and API errors are not content problems; the
			// repair budget does not apply.
			return nil, fmt.Errorf("generation call failed: %w", err)
		}

		value, err := parseAndValidate(raw, s)
		if err == nil {
			return value, nil
		}
		lastRaw, lastErr = raw, err

		repairPrompt := "Your previous output was invalid. Fix it.\n" +
			"Rules:\n" +
			"- Output ONLY JSON\n" +
			"- Must match the schema exactly (no extra keys)\n" +
			"- Ensure valid JSON\n\n" +
			"Validation/parse error:\n" + lastErr.Error() + "\n\n" +
			"Invalid output:\n" + lastRaw + "\n"
		messages = []llm.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: repairPrompt},
		}
	}

	return nil, &ExtractionError{Attempts: attempts, LastOutput: lastRaw, Err: lastErr}
}

func parseAndValidate(raw string, s *schema.Schema) (any, error) {
	candidate := extractJSON(raw)
	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return value, nil
}

// formatTranscript renders the transcript one "ROLE: content" line per
// message, in order.
func formatTranscript(transcript []domain.Message) string {
	lines := make([]string, 0, len(transcript))
	for _, m := range transcript {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// extractJSON recovers the first balanced {...} substring from model
// output that wraps its JSON in prose or markdown fences. Returns the
// input unchanged when no balanced object is found.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}
