// Package config provides configuration for the interview service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Interview documents
	QuestionsPath string
	TemplatePath  string

	// LLM settings
	LLMProvider string // ollama | openai | mock
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration

	// Extraction
	ExtractMaxRetries int

	// Chat context windows
	ChatScanWindow    int
	ChatContextWindow int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:          getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:       getEnv("DATABASE_URL", "file:interview.db?cache=shared&mode=rwc"),
		QuestionsPath:     getEnv("QUESTIONS_PATH", "data/questions.json"),
		TemplatePath:      getEnv("TEMPLATE_PATH", "data/summary_template.json"),
		LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
		LLMBaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "llama3.1"),
		LLMTimeout:        time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		ExtractMaxRetries: getEnvInt("EXTRACT_MAX_RETRIES", 2),
		ChatScanWindow:    getEnvInt("CHAT_SCAN_WINDOW", 30),
		ChatContextWindow: getEnvInt("CHAT_CONTEXT_WINDOW", 10),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
