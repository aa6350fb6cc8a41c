// Package domain defines the core models for the interview service.
package domain

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
)

// Mode classifies a single patient turn. It is carried as message
// metadata, not conversation state: a conversation interleaves both.
type Mode string

const (
	// ModeAnswer is the default questionnaire turn.
	ModeAnswer Mode = "answer"
	// ModeChat is a free-form interruption answered by the chatbot.
	ModeChat Mode = "chat"
)

// ConversationState is the orchestrator state machine position.
type ConversationState string

const (
	StateFlowAsking        ConversationState = "flow_asking"
	StateFlowWaitingAnswer ConversationState = "flow_waiting_answer"
	StateChatMode          ConversationState = "chat_mode"
	StateDone              ConversationState = "done"
)

// QuestionType describes the expected answer shape of a question.
type QuestionType string

const (
	QuestionFreeText QuestionType = "free_text"
	QuestionYesNo    QuestionType = "yesno"
	QuestionNumber   QuestionType = "number"
	QuestionChoice   QuestionType = "choice"
)
