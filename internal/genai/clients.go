package genai

import (
	"log/slog"

	"github.com/jjckrbbt/tenant-guidance/internal/config"
	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
)

// NewClients returns the text generator and embedder for the configured backend.
func NewClients(cfg *config.Config, logger *slog.Logger) (interfaces.TextGenerator, interfaces.Embedder) {
	switch cfg.LLMBackend {
	case config.BackendOpenAI:
		c := NewOpenAIClient(cfg.LLMBaseURL, cfg.GoogleAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel, logger)
		logger.Info("Using OpenAI-compatible LLM backend", "model", cfg.ChatModel)
		return c, c
	default:
		c := NewGeminiClient(cfg.LLMBaseURL, cfg.GoogleAIAPIKey, cfg.ChatModel, cfg.EmbeddingModel, logger)
		logger.Info("Using Gemini LLM backend", "model", cfg.ChatModel, "embedding_model", cfg.EmbeddingModel)
		return c, c
	}
}
