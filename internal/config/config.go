package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned at request time when no generative-language key is configured.
var ErrMissingAPIKey = errors.New("Missing Google AI API Key")

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"

	StoreSupabase = "supabase"
	StorePostgres = "postgres"
)

// Config holds all application-wide configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	Port      string
	SentryDSN string

	GoogleAIAPIKey string
	LLMBackend     string
	LLMBaseURL     string
	ChatModel      string
	EmbeddingModel string

	StoreBackend    string
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string

	PromptConfigPath string
	GCSBucketName    string
}

// LoadConfig reads configuration from environment variables or a .env file.
// It is the single source of truth for application configuration.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists. In production these are set directly in the environment.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// LoadToolConfig is LoadConfig for the offline corpus tools. They choose their own store per
// command, so the server's STORE_BACKEND settings are not required.
func LoadToolConfig() (*Config, error) {
	_ = godotenv.Load()
	return parseEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can avoid touching the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg, err := parseEnv(getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppEnv:           withDefault(getenv("APP_ENV"), "development"),
		Port:             withDefault(getenv("PORT"), "8080"),
		SentryDSN:        getenv("SENTRY_DSN"),
		GoogleAIAPIKey:   getenv("GOOGLE_AI_API_KEY"),
		LLMBackend:       withDefault(getenv("LLM_BACKEND"), BackendGemini),
		LLMBaseURL:       getenv("LLM_BASE_URL"),
		ChatModel:        withDefault(getenv("CHAT_MODEL"), "gemini-2.5-flash"),
		EmbeddingModel:   withDefault(getenv("EMBEDDING_MODEL"), "text-embedding-004"),
		StoreBackend:     withDefault(getenv("STORE_BACKEND"), StoreSupabase),
		SupabaseURL:      getenv("SUPABASE_URL"),
		SupabaseAnonKey:  getenv("SUPABASE_ANON_KEY"),
		DatabaseURL:      getenv("DATABASE_URL"),
		PromptConfigPath: getenv("PROMPT_CONFIG_PATH"),
		GCSBucketName:    getenv("GCS_BUCKET_NAME"),
	}

	switch cfg.LLMBackend {
	case BackendGemini, BackendOpenAI:
	default:
		return nil, fmt.Errorf("FATAL: unknown LLM_BACKEND %q", cfg.LLMBackend)
	}
	return cfg, nil
}

// ValidateStore checks that the selected STORE_BACKEND has its connection settings.
func (c *Config) ValidateStore() error {
	switch c.StoreBackend {
	case StoreSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("FATAL: SUPABASE_URL environment variable not set")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("FATAL: DATABASE_URL environment variable not set")
		}
	default:
		return fmt.Errorf("FATAL: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// RequireAPIKey reports the request-level configuration error for a missing provider key.
func (c *Config) RequireAPIKey() error {
	if c.GoogleAIAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
