package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mariusarnbjerg/Morton/internal/chatbot"
	"github.com/mariusarnbjerg/Morton/internal/config"
	"github.com/mariusarnbjerg/Morton/internal/extract"
	"github.com/mariusarnbjerg/Morton/internal/flow"
	"github.com/mariusarnbjerg/Morton/internal/llm"
	"github.com/mariusarnbjerg/Morton/internal/orchestrator"
	"github.com/mariusarnbjerg/Morton/internal/schema"
	"github.com/mariusarnbjerg/Morton/internal/store"
	transport "github.com/mariusarnbjerg/Morton/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting interview service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM provider: %s (%s)", cfg.LLMProvider, cfg.LLMModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Load the question flow
	questions, err := flow.Load(cfg.QuestionsPath)
	if err != nil {
		log.Fatalf("Failed to load questions: %v", err)
	}
	log.Printf("Loaded %d questions from %s", questions.Len(), cfg.QuestionsPath)

	// Load the summary template
	template, err := schema.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		log.Fatalf("Failed to load summary template: %v", err)
	}

	// Initialize LLM client
	llmClient, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	// Wire the orchestrator
	bot := chatbot.New(llmClient, chatbot.WithWindows(cfg.ChatScanWindow, cfg.ChatContextWindow))
	engine := extract.NewEngine(llmClient, extract.WithMaxRetries(cfg.ExtractMaxRetries))
	orch := orchestrator.New(questions, db,
		orchestrator.WithChatbot(bot),
		orchestrator.WithSummarizer(engine, template),
		orchestrator.WithSnapshots(db),
	)
	registry := store.NewRegistry()

	// Initialize handler
	h := transport.NewHandler(orch, registry, db)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Interview API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down interview service...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Interview service stopped")
}
