package chatbot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/llm"
)

// captureClient records the prompt it was handed.
type captureClient struct {
	messages []llm.ChatMessage
	reply    string
	err      error
}

func (c *captureClient) Chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	c.messages = messages
	return c.reply, c.err
}

func chatMsg(role domain.Role, content string) domain.Message {
	return domain.Message{
		Role:     role,
		Content:  content,
		Metadata: map[string]string{domain.MetaMode: string(domain.ModeChat)},
	}
}

func answerMsg(role domain.Role, content string) domain.Message {
	return domain.Message{
		Role:     role,
		Content:  content,
		Metadata: map[string]string{domain.MetaMode: string(domain.ModeAnswer)},
	}
}

func TestAnswerPromptShape(t *testing.T) {
	client := &captureClient{reply: "you will be fine"}
	bot := New(client)

	transcript := []domain.Message{
		{Role: domain.RoleSystem, Content: "Do you smoke?"},
		answerMsg(domain.RolePatient, "no"),
		chatMsg(domain.RolePatient, "Will it hurt?"),
		chatMsg(domain.RoleAssistant, "Only a little."),
		chatMsg(domain.RolePatient, "Can I eat before surgery?"), // current question, already appended
	}

	reply, err := bot.Answer(context.Background(), "Can I eat before surgery?", transcript, "recap here")
	assert.NoError(t, err)
	assert.Equal(t, "you will be fine", reply)

	msgs := client.messages
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Equal(t, "Questionnaire context: recap here", msgs[1].Content)

	// Chat history: questionnaire turns and the duplicate of the current
	// question are filtered out.
	assert.Equal(t, []llm.ChatMessage{
		{Role: "user", Content: "Will it hurt?"},
		{Role: "assistant", Content: "Only a little."},
	}, msgs[2:len(msgs)-1])

	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Can I eat before surgery?", last.Content)
}

func TestAnswerOmitsEmptyContext(t *testing.T) {
	client := &captureClient{reply: "ok"}
	bot := New(client)

	_, err := bot.Answer(context.Background(), "hello?", nil, "")
	assert.NoError(t, err)

	assert.Len(t, client.messages, 2)
	assert.Equal(t, "system", client.messages[0].Role)
	assert.Equal(t, "user", client.messages[1].Role)
}

func TestAnswerWindows(t *testing.T) {
	client := &captureClient{reply: "ok"}
	bot := New(client, WithWindows(6, 2))

	var transcript []domain.Message
	for i := 0; i < 20; i++ {
		transcript = append(transcript, chatMsg(domain.RolePatient, fmt.Sprintf("q%d", i)))
		transcript = append(transcript, chatMsg(domain.RoleAssistant, fmt.Sprintf("a%d", i)))
	}

	_, err := bot.Answer(context.Background(), "latest", transcript, "")
	assert.NoError(t, err)

	// 6 scanned, trimmed to the last 2, plus system prompt and the
	// current question.
	history := client.messages[1 : len(client.messages)-1]
	assert.Equal(t, []llm.ChatMessage{
		{Role: "user", Content: "q19"},
		{Role: "assistant", Content: "a19"},
	}, history)
}

func TestAnswerPropagatesClientError(t *testing.T) {
	client := &captureClient{err: errors.New("connection refused")}
	bot := New(client)

	_, err := bot.Answer(context.Background(), "hello?", nil, "")
	assert.Error(t, err)
}

func TestWithSystemPrompt(t *testing.T) {
	client := &captureClient{reply: "ok"}
	bot := New(client, WithSystemPrompt("custom"))

	_, err := bot.Answer(context.Background(), "hi", nil, "")
	assert.NoError(t, err)
	assert.Equal(t, "custom", client.messages[0].Content)
}
