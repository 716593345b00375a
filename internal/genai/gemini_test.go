package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
	"github.com/jjckrbbt/tenant-guidance/internal/logger"
)

func TestGeminiClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "hello", body.Contents[0].Parts[0].Text)

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "deposit "}, {"text": "protection"}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer server.Close()

	c := NewGeminiClient(server.URL, "test-key", "gemini-2.5-flash", "text-embedding-004", logger.Discard())
	out, err := c.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "deposit protection", out)
}

func TestGeminiClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)

		var body embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "RETRIEVAL_QUERY", body.TaskType)
		assert.Equal(t, "models/text-embedding-004", body.Model)

		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	c := NewGeminiClient(server.URL, "test-key", "gemini-2.5-flash", "text-embedding-004", logger.Discard())
	vec, err := c.Embed(context.Background(), "deposit not returned", interfaces.TaskRetrievalQuery)

	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestGeminiClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer server.Close()

	c := NewGeminiClient(server.URL, "test-key", "m", "e", logger.Discard())
	_, err := c.Generate(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota")
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := NewGeminiClient(server.URL, "test-key", "m", "e", logger.Discard())
	_, err := c.Generate(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiClient_MissingKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewGeminiClient(server.URL, "", "m", "e", logger.Discard())
	_, err := c.Embed(context.Background(), "x", interfaces.TaskRetrievalQuery)

	require.Error(t, err)
	assert.False(t, called)
}

func TestGeminiClient_DefaultBaseURL(t *testing.T) {
	c := NewGeminiClient("", "k", "m", "e", logger.Discard())
	assert.Equal(t, DefaultGeminiBaseURL, c.baseURL)

	c = NewGeminiClient("http://localhost:9999/v1beta/", "k", "m", "e", logger.Discard())
	assert.False(t, strings.HasSuffix(c.baseURL, "/"))
}
