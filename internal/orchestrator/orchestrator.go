// Package orchestrator drives the turn-based interview: questionnaire
// flow, free-form interruptions, and the final summary build.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/flow"
	"github.com/mariusarnbjerg/Morton/internal/schema"
	"github.com/mariusarnbjerg/Morton/internal/store"
)

// Configuration errors surfaced by Finalize.
var (
	ErrNotDone      = errors.New("conversation is not done")
	ErrNoSummarizer = errors.New("summarizer not configured")
	ErrNoTemplate   = errors.New("summary template not configured")
)

// Notices appended to the transcript by the orchestrator.
const (
	CompletionNotice      = "Questionnaire complete."
	ChatUnavailableNotice = "The assistant is not available right now. Let's continue with the questionnaire."
	ChatFailedNotice      = "Sorry, I could not answer that right now. Let's continue with the questionnaire."
)

// FreeformAnswerer is the optional free-form answering capability.
type FreeformAnswerer interface {
	Answer(ctx context.Context, userText string, transcript []domain.Message, questionnaireContext string) (string, error)
}

// Extractor is the schema-constrained extraction contract used by the
// summary build.
type Extractor interface {
	Extract(ctx context.Context, transcript []domain.Message, s *schema.Schema) (any, error)
}

// Orchestrator is the per-turn state machine. It never blocks waiting
// for user input: each call is one synchronous step that appends to the
// transcript, mutates conversation state, and returns the next system
// utterance.
type Orchestrator struct {
	flow      *flow.QuestionFlow
	store     store.TranscriptStore
	chatbot   FreeformAnswerer
	extractor Extractor
	template  any
	snapshots store.ConversationStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithChatbot enables the free-form interruption path.
func WithChatbot(b FreeformAnswerer) Option {
	return func(o *Orchestrator) { o.chatbot = b }
}

// WithSummarizer enables Finalize. template is the example value whose
// shape becomes the extraction schema.
func WithSummarizer(e Extractor, template any) Option {
	return func(o *Orchestrator) {
		o.extractor = e
		o.template = template
	}
}

// WithSnapshots persists conversation state after each turn so a
// restarted process can resume.
func WithSnapshots(cs store.ConversationStore) Option {
	return func(o *Orchestrator) { o.snapshots = cs }
}

// New creates an orchestrator over the question flow and transcript
// store. Chatbot and summarizer are optional capabilities.
func New(f *flow.QuestionFlow, ts store.TranscriptStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{flow: f, store: ts}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start posts the first question, or completes immediately on an empty
// flow.
func (o *Orchestrator) Start(ctx context.Context, conv *domain.Conversation) (domain.TurnResult, error) {
	res, err := o.askCurrentQuestion(ctx, conv)
	if err != nil {
		return domain.TurnResult{}, err
	}
	o.saveSnapshot(ctx, conv)
	return res, nil
}

// HandleTurn processes one patient utterance. The utterance is always
// appended to the transcript first, tagged with its mode.
func (o *Orchestrator) HandleTurn(ctx context.Context, conv *domain.Conversation, userText string, mode domain.Mode) (domain.TurnResult, error) {
	if err := o.append(ctx, conv, domain.RolePatient, userText, map[string]string{
		domain.MetaMode: string(mode),
	}); err != nil {
		return domain.TurnResult{}, err
	}

	var res domain.TurnResult
	var err error
	if mode == domain.ModeChat {
		res, err = o.handleChat(ctx, conv, userText)
	} else {
		res, err = o.handleAnswer(ctx, conv, userText)
	}
	if err != nil {
		return domain.TurnResult{}, err
	}

	o.saveSnapshot(ctx, conv)
	return res, nil
}

// handleChat resolves a free-form interruption and returns to the flow
// without advancing it.
func (o *Orchestrator) handleChat(ctx context.Context, conv *domain.Conversation, userText string) (domain.TurnResult, error) {
	if o.chatbot == nil {
		if err := o.append(ctx, conv, domain.RoleAssistant, ChatUnavailableNotice, nil); err != nil {
			return domain.TurnResult{}, err
		}
		res, err := o.askCurrentQuestion(ctx, conv)
		if err != nil {
			return domain.TurnResult{}, err
		}
		res.Text = ChatUnavailableNotice + "\n\n" + res.Text
		return res, nil
	}

	conv.State = domain.StateChatMode

	transcript, err := o.store.Transcript(ctx, conv.ConversationID)
	if err != nil {
		return domain.TurnResult{}, err
	}

	answer, err := o.chatbot.Answer(ctx, userText, transcript, o.questionnaireContext(conv))
	if err != nil {
		// A failed model call must not corrupt conversation state: show
		// a fallback notice and return to the flow.
		log.Printf("chatbot answer failed for %s: %v", conv.ConversationID, err)
		answer = ChatFailedNotice
	}

	if err := o.append(ctx, conv, domain.RoleAssistant, answer, map[string]string{
		domain.MetaMode: string(domain.ModeChat),
	}); err != nil {
		return domain.TurnResult{}, err
	}

	// The flow has not advanced; re-derive the current question.
	q, ok := o.flow.Nth(conv.QuestionIndex)
	if !ok {
		conv.State = domain.StateDone
		conv.ActiveQuestionID = ""
		if err := o.append(ctx, conv, domain.RoleSystem, CompletionNotice, nil); err != nil {
			return domain.TurnResult{}, err
		}
		return domain.TurnResult{Text: answer + "\n\n" + CompletionNotice, Done: true}, nil
	}

	conv.State = domain.StateFlowWaitingAnswer
	conv.ActiveQuestionID = q.ID
	if err := o.append(ctx, conv, domain.RoleSystem, q.Text, map[string]string{
		domain.MetaQuestionID: q.ID,
		domain.MetaReask:      "true",
	}); err != nil {
		return domain.TurnResult{}, err
	}

	combined := answer + "\n\n---\nBack to the questionnaire:\n" + q.Text
	return domain.TurnResult{Text: combined, Done: false}, nil
}

// handleAnswer records the answer for the active question and advances
// the flow by exactly one position. Answer content is not validated
// against the question's declared type here; that is a caller concern.
func (o *Orchestrator) handleAnswer(ctx context.Context, conv *domain.Conversation, userText string) (domain.TurnResult, error) {
	if conv.State != domain.StateFlowWaitingAnswer {
		conv.State = domain.StateFlowWaitingAnswer
	}

	if conv.ActiveQuestionID != "" {
		conv.Answers[conv.ActiveQuestionID] = userText
	}

	conv.QuestionIndex++
	conv.ActiveQuestionID = ""

	return o.askCurrentQuestion(ctx, conv)
}

// askCurrentQuestion posts the question at the cursor, or completes the
// conversation when the flow is exhausted.
func (o *Orchestrator) askCurrentQuestion(ctx context.Context, conv *domain.Conversation) (domain.TurnResult, error) {
	q, ok := o.flow.Nth(conv.QuestionIndex)
	if !ok {
		conv.State = domain.StateDone
		conv.ActiveQuestionID = ""
		if err := o.append(ctx, conv, domain.RoleSystem, CompletionNotice, nil); err != nil {
			return domain.TurnResult{}, err
		}
		return domain.TurnResult{Text: CompletionNotice, Done: true}, nil
	}

	conv.State = domain.StateFlowWaitingAnswer
	conv.ActiveQuestionID = q.ID
	if err := o.append(ctx, conv, domain.RoleSystem, q.Text, map[string]string{
		domain.MetaQuestionID: q.ID,
	}); err != nil {
		return domain.TurnResult{}, err
	}

	return domain.TurnResult{Text: q.Text, Done: false}, nil
}

// Finalize builds the structured summary once the interview is done.
// Idempotent: it never mutates conversation state, so callers may retry
// after a failure.
func (o *Orchestrator) Finalize(ctx context.Context, conv *domain.Conversation) (map[string]any, error) {
	if conv.State != domain.StateDone {
		return nil, fmt.Errorf("%w: conversation %s is in state %s", ErrNotDone, conv.ConversationID, conv.State)
	}
	if o.extractor == nil {
		return nil, ErrNoSummarizer
	}
	if o.template == nil {
		return nil, ErrNoTemplate
	}

	transcript, err := o.store.Transcript(ctx, conv.ConversationID)
	if err != nil {
		return nil, err
	}

	value, err := o.extractor.Extract(ctx, transcript, schema.Infer(o.template))
	if err != nil {
		return nil, err
	}

	summary, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("summary template must be a JSON object, extraction produced %T", value)
	}

	// Two deterministic sections, computed with no model involvement.
	summary["questionnaire_answers"] = o.QuestionnaireAnswers(conv)
	summary["patient_questions"] = BuildPatientQuestions(transcript)

	return summary, nil
}

// QuestionnaireAnswers pairs every answered question, in source order,
// with the patient's literal answer text.
func (o *Orchestrator) QuestionnaireAnswers(conv *domain.Conversation) []domain.AnsweredQuestion {
	items := []domain.AnsweredQuestion{}
	for i := 0; ; i++ {
		q, ok := o.flow.Nth(i)
		if !ok {
			break
		}
		if ans, answered := conv.Answers[q.ID]; answered {
			items = append(items, domain.AnsweredQuestion{
				QuestionID: q.ID,
				Question:   q.Text,
				Answer:     ans,
			})
		}
	}
	return items
}

// BuildPatientQuestions reconstructs the free-form exchanges by
// scanning the transcript for chat-tagged patient/assistant pairs. A
// trailing unanswered patient question is kept with an empty answer.
func BuildPatientQuestions(transcript []domain.Message) []domain.PatientQuestion {
	out := []domain.PatientQuestion{}
	pending := ""
	havePending := false
	for _, m := range transcript {
		if m.Meta(domain.MetaMode) != string(domain.ModeChat) {
			continue
		}
		switch m.Role {
		case domain.RolePatient:
			pending = m.Content
			havePending = true
		case domain.RoleAssistant:
			if havePending {
				out = append(out, domain.PatientQuestion{Question: pending, Answer: m.Content})
				havePending = false
			}
		}
	}
	if havePending {
		out = append(out, domain.PatientQuestion{Question: pending, Answer: ""})
	}
	return out
}

// questionnaireContext is the deterministic recap handed to the
// chatbot: the current question plus everything answered so far,
// derived strictly from Conversation.Answers.
func (o *Orchestrator) questionnaireContext(conv *domain.Conversation) string {
	var b strings.Builder
	if q, ok := o.flow.Nth(conv.QuestionIndex); ok {
		fmt.Fprintf(&b, "Current standardized question: '%s' (id=%s).\n", q.Text, q.ID)
	}
	b.WriteString("Standardized questions answered so far:\n")
	answered := o.QuestionnaireAnswers(conv)
	if len(answered) == 0 {
		b.WriteString("None yet.\n")
	} else {
		for _, a := range answered {
			fmt.Fprintf(&b, "- %s -> %s\n", a.Question, a.Answer)
		}
	}
	b.WriteString("If the user asks what has been asked/answered so far, use this list.")
	return b.String()
}

func (o *Orchestrator) append(ctx context.Context, conv *domain.Conversation, role domain.Role, content string, meta map[string]string) error {
	msg := domain.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conv.ConversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		Metadata:       meta,
	}
	if err := o.store.Append(ctx, conv.ConversationID, msg); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// saveSnapshot persists conversation state when a snapshot store is
// configured. Durability is advisory: a failed save is logged, not
// returned, since the in-memory state has already moved on.
func (o *Orchestrator) saveSnapshot(ctx context.Context, conv *domain.Conversation) {
	if o.snapshots == nil {
		return
	}
	if err := o.snapshots.SaveConversation(ctx, conv); err != nil {
		log.Printf("failed to save conversation %s: %v", conv.ConversationID, err)
	}
}
