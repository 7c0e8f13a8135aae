package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/sarasa-inc/assistant-server/internal/api"
	"github.com/sarasa-inc/assistant-server/internal/assistants"
	"github.com/sarasa-inc/assistant-server/internal/config"
	"github.com/sarasa-inc/assistant-server/internal/conversation"
	"github.com/sarasa-inc/assistant-server/internal/db"
	"github.com/sarasa-inc/assistant-server/internal/llm"
	"github.com/sarasa-inc/assistant-server/internal/vectorstore"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	store, err := vectorstore.NewWeaviate(cfg.WeaviateHost, cfg.WeaviateScheme, cfg.WeaviateAPIKey)
	if err != nil {
		logger.Fatal("failed to connect to weaviate",
			zap.Error(err),
			zap.String("host", cfg.WeaviateHost))
	}

	model, err := openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}

	embedder, err := embeddings.NewEmbedder(model)
	if err != nil {
		logger.Fatal("failed to initialize embedder", zap.Error(err))
	}

	assistantService := assistants.New(store, embedder, database, logger)
	if err := assistantService.Init(context.Background()); err != nil {
		logger.Fatal("failed to provision assistant schema", zap.Error(err))
	}

	history := conversation.NewMemoryStore(cfg.HistoryLimit)

	llmService := llm.New(model, assistantService, history, logger, llm.Options{
		ContextLimit:  cfg.ContextLimit,
		MinCertainty:  cfg.MinCertainty,
		MaxTokens:     cfg.AnswerMaxTokens,
		Temperature:   cfg.AnswerTemperature,
		Seed:          cfg.AnswerSeed,
		CondenseModel: cfg.CondenseModel,
	})

	handler := api.NewHandler(assistantService, llmService, logger)

	http.HandleFunc("/api/chat", handler.HandleChat)
	http.HandleFunc("/api/assistants", handler.HandleAssistants)
	http.HandleFunc("/api/assistants/get", handler.GetAssistant)
	http.HandleFunc("/api/assistants/update", handler.UpdateAssistant)
	http.HandleFunc("/api/assistants/delete", handler.DeleteAssistant)
	http.HandleFunc("/api/assistants/prompt", handler.UpdatePrompt)
	http.HandleFunc("/api/assistants/files", handler.HandleFiles)
	http.HandleFunc("/api/assistants/files/delete", handler.DeleteFile)
	http.HandleFunc("/api/assistants/files/content", handler.FileContent)
	http.HandleFunc("/api/assistants/files/search", handler.SearchFiles)

	logger.Info("Starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
