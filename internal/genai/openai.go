package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
)

// OpenAIClient serves OpenAI-compatible chat and embedding endpoints,
// including Gemini's compatibility layer when baseURL points there.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	logger         *slog.Logger
}

func NewOpenAIClient(baseURL, apiKey, chatModel, embeddingModel string, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		logger:         logger.With("component", "openai_client"),
	}
}

var _ interfaces.TextGenerator = (*OpenAIClient)(nil)
var _ interfaces.Embedder = (*OpenAIClient)(nil)

// Generate implements interfaces.TextGenerator.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from AI")
	}
	o.logger.DebugContext(ctx, "Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// Embed implements interfaces.Embedder. The task type has no equivalent in this API and is ignored.
func (o *OpenAIClient) Embed(ctx context.Context, text string, _ interfaces.TaskType) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no values")
	}
	return resp.Data[0].Embedding, nil
}
