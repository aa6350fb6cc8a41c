// Package chatbot answers the patient's free-form questions during the
// questionnaire.
package chatbot

import (
	"context"
	"strings"

	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/llm"
)

// DefaultSystemPrompt keeps the assistant on the free-form question and
// away from the standardized flow.
const DefaultSystemPrompt = "You are a helpful clinical assistant answering a patient's free-form questions during a pre-anesthesia questionnaire. " +
	"Important rules:\n" +
	"1) Only answer the patient's current free-form question.\n" +
	"2) Do NOT repeat, re-ask, or answer the standardized questionnaire questions unless the patient explicitly asks about them.\n" +
	"3) Keep answers short, clear, and non-alarming.\n" +
	"4) If asked for personalized medical advice or urgent symptoms, advise contacting the clinic.\n"

const (
	// DefaultScanWindow is how many trailing transcript messages are
	// scanned for chat-tagged exchanges.
	DefaultScanWindow = 30
	// DefaultContextWindow is how many of those exchanges go into the
	// prompt.
	DefaultContextWindow = 10
)

// Chatbot is the free-form answering capability.
type Chatbot struct {
	client        llm.Client
	systemPrompt  string
	scanWindow    int
	contextWindow int
}

// Option configures a Chatbot.
type Option func(*Chatbot)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(b *Chatbot) { b.systemPrompt = prompt }
}

// WithWindows overrides the scan and context window sizes.
func WithWindows(scan, context int) Option {
	return func(b *Chatbot) {
		if scan > 0 {
			b.scanWindow = scan
		}
		if context > 0 {
			b.contextWindow = context
		}
	}
}

// New creates a chatbot backed by the given generation client.
func New(client llm.Client, opts ...Option) *Chatbot {
	b := &Chatbot{
		client:        client,
		systemPrompt:  DefaultSystemPrompt,
		scanWindow:    DefaultScanWindow,
		contextWindow: DefaultContextWindow,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Answer replies to userText. The transcript supplies prior chat-tagged
// exchanges for context and questionnaireContext is a deterministic
// recap of the standardized flow so far.
func (b *Chatbot) Answer(ctx context.Context, userText string, transcript []domain.Message, questionnaireContext string) (string, error) {
	history := b.chatHistory(transcript, userText)

	messages := make([]llm.ChatMessage, 0, len(history)+3)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: b.systemPrompt})
	if questionnaireContext != "" {
		messages = append(messages, llm.ChatMessage{Role: "system", Content: "Questionnaire context: " + questionnaireContext})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: "user", Content: userText})

	return b.client.Chat(ctx, messages)
}

// chatHistory extracts prior chat-tagged turns from the transcript
// tail. The just-appended copy of the patient's current question is
// skipped so it appears only once in the prompt.
func (b *Chatbot) chatHistory(transcript []domain.Message, userText string) []llm.ChatMessage {
	tail := transcript
	if len(tail) > b.scanWindow {
		tail = tail[len(tail)-b.scanWindow:]
	}

	var history []llm.ChatMessage
	for _, m := range tail {
		if m.Meta(domain.MetaMode) != string(domain.ModeChat) {
			continue
		}
		switch m.Role {
		case domain.RolePatient:
			if strings.TrimSpace(m.Content) == strings.TrimSpace(userText) {
				continue
			}
			history = append(history, llm.ChatMessage{Role: "user", Content: m.Content})
		case domain.RoleAssistant:
			history = append(history, llm.ChatMessage{Role: "assistant", Content: m.Content})
		}
	}

	if len(history) > b.contextWindow {
		history = history[len(history)-b.contextWindow:]
	}
	return history
}
