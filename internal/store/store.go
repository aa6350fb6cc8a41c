// Package store defines transcript/conversation persistence and the
// in-process conversation registry.
package store

import (
	"context"
	"errors"

	"github.com/mariusarnbjerg/Morton/internal/domain"
)

// ErrNotFound is returned when a conversation id is unknown.
var ErrNotFound = errors.New("conversation not found")

// ErrExists is returned when creating a conversation id that is taken.
var ErrExists = errors.New("conversation already exists")

// TranscriptStore is the append-only per-conversation message log.
type TranscriptStore interface {
	// Append adds a message to the end of the conversation's log.
	Append(ctx context.Context, conversationID string, msg domain.Message) error

	// Transcript returns all messages for the conversation in append order.
	Transcript(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// ConversationStore persists conversation snapshots so a restarted
// process can resume an interview.
type ConversationStore interface {
	SaveConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
}
