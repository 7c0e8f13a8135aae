package config

import (
	"os"
	"strconv"
)

// Config holds all server configuration, read from environment variables.
type Config struct {
	ListenAddr string

	WeaviateHost   string
	WeaviateScheme string
	WeaviateAPIKey string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	CondenseModel  string
	EmbeddingModel string

	DBPath string

	HistoryLimit      int
	ContextLimit      int
	SearchLimit       int
	MinCertainty      float64
	AnswerMaxTokens   int
	AnswerTemperature float64
	AnswerSeed        int
}

// Load reads configuration from the environment, applying defaults that
// match a local Weaviate plus the OpenAI API.
func Load() Config {
	return Config{
		ListenAddr: envOrDefault("LISTEN_ADDR", ":8100"),

		WeaviateHost:   envOrDefault("WEAVIATE_HOST", "localhost:8080"),
		WeaviateScheme: envOrDefault("WEAVIATE_SCHEME", "http"),
		WeaviateAPIKey: os.Getenv("WEAVIATE_API_KEY"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:      envOrDefault("CHAT_MODEL", "gpt-4"),
		CondenseModel:  envOrDefault("CONDENSE_MODEL", "gpt-3.5-turbo"),
		EmbeddingModel: envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),

		DBPath: envOrDefault("DB_PATH", "assistants.db"),

		HistoryLimit:      envIntOrDefault("HISTORY_LIMIT", 6),
		ContextLimit:      envIntOrDefault("CONTEXT_LIMIT", 4),
		SearchLimit:       envIntOrDefault("SEARCH_LIMIT", 5),
		MinCertainty:      envFloatOrDefault("MIN_CERTAINTY", 0.7),
		AnswerMaxTokens:   envIntOrDefault("ANSWER_MAX_TOKENS", 600),
		AnswerTemperature: envFloatOrDefault("ANSWER_TEMPERATURE", 0.3),
		AnswerSeed:        envIntOrDefault("ANSWER_SEED", 70),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloatOrDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
