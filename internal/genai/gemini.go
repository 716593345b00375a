// internal/genai/gemini.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Generative Language REST API for both text generation and embeddings.
type GeminiClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
	logger         *slog.Logger
}

// NewGeminiClient creates a new GeminiClient. An empty baseURL selects the public endpoint.
func NewGeminiClient(baseURL, apiKey, chatModel, embeddingModel string, logger *slog.Logger) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiClient{
		httpClient:     &http.Client{Timeout: 90 * time.Second},
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		logger:         logger.With("component", "gemini_client"),
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type embedRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

var _ interfaces.TextGenerator = (*GeminiClient)(nil)
var _ interfaces.Embedder = (*GeminiClient)(nil)

// Generate sends a single-turn prompt and returns the concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	var out generateResponse
	if err := c.post(ctx, c.chatModel, "generateContent", body, &out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from AI")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	c.logger.DebugContext(ctx, "Received response from Gemini", "finish_reason", out.Candidates[0].FinishReason, "chars", sb.Len())
	return sb.String(), nil
}

// Embed returns the embedding values for text, tagged with the retrieval task type.
func (c *GeminiClient) Embed(ctx context.Context, text string, task interfaces.TaskType) ([]float32, error) {
	body := embedRequest{
		Model:    "models/" + c.embeddingModel,
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: string(task),
	}
	var out embedResponse
	if err := c.post(ctx, c.embeddingModel, "embedContent", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding response contained no values")
	}
	return out.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, model, method string, payload, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("AI API key is not configured")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call AI API (%s): %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("AI API returned non-OK status %d for %s: %s", resp.StatusCode, method, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}
