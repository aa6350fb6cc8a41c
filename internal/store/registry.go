package store

import (
	"sync"

	"github.com/mariusarnbjerg/Morton/internal/domain"
)

// Registry is the process-wide map of live conversations. Turns for the
// same conversation id are serialized: With holds a per-id lock for the
// duration of the callback, while unrelated ids proceed in parallel.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	mu   sync.Mutex
	conv *domain.Conversation
}

// NewRegistry creates an empty conversation registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Create registers a new conversation. Returns ErrExists when the id is
// already taken.
func (r *Registry) Create(conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[conv.ConversationID]; ok {
		return ErrExists
	}
	r.entries[conv.ConversationID] = &registryEntry{conv: conv}
	return nil
}

// With runs fn with exclusive access to the conversation. The callback
// may mutate the conversation freely; no other turn for the same id
// runs concurrently.
func (r *Registry) With(conversationID string, fn func(conv *domain.Conversation) error) error {
	r.mu.Lock()
	e, ok := r.entries[conversationID]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.conv)
}

// Snapshot returns a copy of the conversation's current state, or
// ErrNotFound. The copy shares nothing with the live conversation.
func (r *Registry) Snapshot(conversationID string) (domain.Conversation, error) {
	var out domain.Conversation
	err := r.With(conversationID, func(conv *domain.Conversation) error {
		out = *conv
		out.Answers = make(map[string]string, len(conv.Answers))
		for k, v := range conv.Answers {
			out.Answers[k] = v
		}
		return nil
	})
	return out, err
}
