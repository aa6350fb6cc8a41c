package domain

import "time"

// Metadata keys used on messages.
const (
	MetaMode       = "mode"
	MetaQuestionID = "question_id"
	MetaReask      = "reask"
)

// Message is a single transcript entry. Immutable once appended; the
// transcript store owns it and the orchestrator only ever appends.
type Message struct {
	MessageID      string            `json:"message_id"`
	ConversationID string            `json:"conversation_id"`
	Role           Role              `json:"role"`
	Content        string            `json:"content"`
	CreatedAt      time.Time         `json:"created_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key, or "" when absent.
func (m Message) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// Question is one standardized questionnaire item. Loaded once at
// startup and read-only for the lifetime of a conversation.
type Question struct {
	ID         string            `json:"id" yaml:"id"`
	Text       string            `json:"text" yaml:"text"`
	Type       QuestionType      `json:"type,omitempty" yaml:"type,omitempty"`
	Required   bool              `json:"required" yaml:"required"`
	HelpPrompt string            `json:"help_prompt,omitempty" yaml:"help_prompt,omitempty"`
	Choices    []string          `json:"choices,omitempty" yaml:"choices,omitempty"`
	Validation map[string]string `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Conversation is one interview session. Mutated exclusively by the
// orchestrator while the registry holds the per-id lock.
type Conversation struct {
	ConversationID   string            `json:"conversation_id"`
	State            ConversationState `json:"state"`
	QuestionIndex    int               `json:"question_index"`
	ActiveQuestionID string            `json:"active_question_id,omitempty"`
	Answers          map[string]string `json:"answers"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewConversation creates a fresh conversation at the top of the flow.
func NewConversation(id string) *Conversation {
	return &Conversation{
		ConversationID: id,
		State:          StateFlowAsking,
		Answers:        make(map[string]string),
		CreatedAt:      time.Now().UTC(),
	}
}

// TurnResult is what one orchestrator step hands back to the caller:
// the next thing to show the patient and whether the interview is over.
type TurnResult struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// AnsweredQuestion pairs a questionnaire item with the patient's
// literal answer text. Built deterministically from Conversation.Answers.
type AnsweredQuestion struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// PatientQuestion is one free-form exchange reconstructed from the
// transcript. Answer is empty when the chatbot never replied.
type PatientQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
