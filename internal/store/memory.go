package store

import (
	"context"
	"sync"

	"github.com/mariusarnbjerg/Morton/internal/domain"
)

// MemoryStore keeps transcripts in memory. It backs tests and the
// terminal client; the server uses SQLite.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]domain.Message
}

// NewMemoryStore creates an empty in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]domain.Message)}
}

var _ TranscriptStore = (*MemoryStore)(nil)

// Append adds a message to the conversation's log.
func (s *MemoryStore) Append(ctx context.Context, conversationID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[conversationID] = append(s.logs[conversationID], msg)
	return nil
}

// Transcript returns a copy of the conversation's log in append order.
// An unknown id yields an empty transcript, matching an append-only log
// that simply has nothing yet.
func (s *MemoryStore) Transcript(ctx context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.logs[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
