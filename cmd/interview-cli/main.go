// interview-cli runs the pre-operative interview in the terminal
// against an in-memory transcript store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/google/uuid"

	"github.com/mariusarnbjerg/Morton/internal/chatbot"
	"github.com/mariusarnbjerg/Morton/internal/config"
	"github.com/mariusarnbjerg/Morton/internal/domain"
	"github.com/mariusarnbjerg/Morton/internal/extract"
	"github.com/mariusarnbjerg/Morton/internal/flow"
	"github.com/mariusarnbjerg/Morton/internal/llm"
	"github.com/mariusarnbjerg/Morton/internal/orchestrator"
	"github.com/mariusarnbjerg/Morton/internal/schema"
	"github.com/mariusarnbjerg/Morton/internal/store"
)

func main() {
	cfg := config.Load()

	questions, err := flow.Load(cfg.QuestionsPath)
	if err != nil {
		log.Fatalf("Failed to load questions: %v", err)
	}

	template, err := schema.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		log.Fatalf("Failed to load summary template: %v", err)
	}

	llmClient, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	transcripts := store.NewMemoryStore()
	bot := chatbot.New(llmClient, chatbot.WithWindows(cfg.ChatScanWindow, cfg.ChatContextWindow))
	engine := extract.NewEngine(llmClient, extract.WithMaxRetries(cfg.ExtractMaxRetries))
	orch := orchestrator.New(questions, transcripts,
		orchestrator.WithChatbot(bot),
		orchestrator.WithSummarizer(engine, template),
	)

	ctx := context.Background()
	conv := domain.NewConversation(uuid.NewString())

	fmt.Println("--- Interview start ---")
	fmt.Printf("Session: %s\n", conv.ConversationID)
	fmt.Println("Type /chat to ask the assistant a question at any text prompt.")
	fmt.Println()

	res, err := orch.Start(ctx, conv)
	if err != nil {
		log.Fatalf("Failed to start interview: %v", err)
	}

	for !res.Done {
		q, _ := questions.Nth(conv.QuestionIndex)

		text, chat, err := promptAnswer(q)
		if errors.Is(err, terminal.InterruptErr) {
			fmt.Println("Interview aborted.")
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		if chat {
			question, err := promptChatQuestion()
			if errors.Is(err, terminal.InterruptErr) {
				continue
			}
			if err != nil {
				log.Fatalf("Prompt failed: %v", err)
			}
			if strings.TrimSpace(question) == "" {
				continue
			}
			res, err = orch.HandleTurn(ctx, conv, question, domain.ModeChat)
			if err != nil {
				log.Fatalf("Turn failed: %v", err)
			}
			fmt.Println()
			fmt.Println(res.Text)
			fmt.Println()
			continue
		}

		res, err = orch.HandleTurn(ctx, conv, text, domain.ModeAnswer)
		if err != nil {
			log.Fatalf("Turn failed: %v", err)
		}
	}

	fmt.Println()
	fmt.Println(res.Text)
	fmt.Println("Building summary...")

	summary, err := orch.Finalize(ctx, conv)
	if err != nil {
		log.Fatalf("Failed to build summary: %v", err)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render summary: %v", err)
	}
	fmt.Println(string(out))
}

// promptAnswer shows the widget matching the question type and returns
// the answer text, or chat=true when the patient wants the assistant.
func promptAnswer(q domain.Question) (text string, chat bool, err error) {
	switch q.Type {
	case domain.QuestionYesNo:
		var yes bool
		prompt := &survey.Confirm{Message: q.Text, Help: q.HelpPrompt}
		if err := survey.AskOne(prompt, &yes); err != nil {
			return "", false, err
		}
		if yes {
			return "yes", false, nil
		}
		return "no", false, nil

	case domain.QuestionChoice:
		var choice string
		prompt := &survey.Select{Message: q.Text, Options: q.Choices, Help: q.HelpPrompt}
		if err := survey.AskOne(prompt, &choice); err != nil {
			return "", false, err
		}
		return choice, false, nil

	case domain.QuestionNumber:
		var out string
		prompt := &survey.Input{Message: q.Text, Help: q.HelpPrompt}
		err := survey.AskOne(prompt, &out, survey.WithValidator(func(ans interface{}) error {
			s, _ := ans.(string)
			if isChatCommand(s) {
				return nil
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return fmt.Errorf("please enter a number")
			}
			return nil
		}))
		if err != nil {
			return "", false, err
		}
		if isChatCommand(out) {
			return "", true, nil
		}
		return out, false, nil

	default:
		var out string
		prompt := &survey.Input{Message: q.Text, Help: q.HelpPrompt}
		if err := survey.AskOne(prompt, &out); err != nil {
			return "", false, err
		}
		if isChatCommand(out) {
			return "", true, nil
		}
		return out, false, nil
	}
}

func promptChatQuestion() (string, error) {
	var out string
	prompt := &survey.Input{Message: "Your question for the assistant:"}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", err
	}
	return out, nil
}

func isChatCommand(s string) bool {
	return strings.TrimSpace(strings.ToLower(s)) == "/chat"
}
