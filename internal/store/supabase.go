package store

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
)

// SupabaseStore calls the match_documents remote procedure through PostgREST.
type SupabaseStore struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	logger     *slog.Logger
}

func NewSupabaseStore(baseURL, anonKey string, logger *slog.Logger) *SupabaseStore {
	return &SupabaseStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		logger:     logger.With("component", "supabase_store"),
	}
}

type matchDocumentsParams struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchThreshold float64   `json:"match_threshold"`
	MatchCount     int       `json:"match_count"`
}

type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Hint    string `json:"hint"`
}

var _ DocumentMatcher = (*SupabaseStore)(nil)

// MatchDocuments implements DocumentMatcher.
func (s *SupabaseStore) MatchDocuments(ctx context.Context, embedding []float32, threshold float64, count int) ([]RetrievedDocument, error) {
	reqBody, err := json.Marshal(matchDocumentsParams{
		QueryEmbedding: embedding,
		MatchThreshold: threshold,
		MatchCount:     count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match_documents params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/rpc/match_documents", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create match_documents request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.anonKey)
	if auth := AuthorizationFrom(ctx); auth != "" {
		req.Header.Set("Authorization", auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+s.anonKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var pgErr postgrestError
		msg := string(bodyBytes)
		if json.Unmarshal(bodyBytes, &pgErr) == nil && pgErr.Message != "" {
			msg = pgErr.Message
		}
		s.logger.ErrorContext(ctx, "Supabase RPC error", "status", resp.StatusCode, "code", pgErr.Code, "hint", pgErr.Hint)
		return nil, fmt.Errorf("failed to match documents: %s", msg)
	}

	var docs []RetrievedDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode match_documents response: %w", err)
	}
	return docs, nil
}
