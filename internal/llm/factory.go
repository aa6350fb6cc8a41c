package llm

import (
	"fmt"
	"log"

	"github.com/mariusarnbjerg/Morton/internal/config"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New creates a client for the configured provider.
func New(cfg *config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case ProviderOllama:
		return NewOllamaClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModel), nil
	case ProviderMock:
		log.Println("LLM_PROVIDER=mock, using mock LLM client")
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
