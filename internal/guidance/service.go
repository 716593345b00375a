package guidance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jjckrbbt/tenant-guidance/internal/config"
	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
	"github.com/jjckrbbt/tenant-guidance/internal/metrics"
	"github.com/jjckrbbt/tenant-guidance/internal/prompts"
	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

// Service runs the guidance pipeline. It holds no per-request state and is safe for concurrent use.
type Service struct {
	cfg       *config.Config
	generator interfaces.TextGenerator
	embedder  interfaces.Embedder
	store     store.DocumentMatcher
	profile   *prompts.Profile
	validator *ResponseValidator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires the pipeline. m may be nil.
func NewService(cfg *config.Config, gen interfaces.TextGenerator, emb interfaces.Embedder, docs store.DocumentMatcher, profile *prompts.Profile, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		generator: gen,
		embedder:  emb,
		store:     docs,
		profile:   profile,
		validator: NewResponseValidator(profile.Actions, profile.ConfidenceLabels),
		metrics:   m,
		logger:    logger.With("component", "guidance_service"),
	}
}

// Run answers a request. Every stage depends on the previous one, so they run strictly in sequence
// and the first failure aborts the rest.
func (s *Service) Run(ctx context.Context, req GuidanceRequest) (*GuidanceResponse, error) {
	if err := s.cfg.RequireAPIKey(); err != nil {
		return nil, stageErr(KindConfig, "config", err)
	}
	s.logger.InfoContext(ctx, "Step 1: parsed request", "query", req.Query, "history_turns", len(req.ChatHistory))

	searchQuery, err := s.RewriteQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	vec, err := s.EmbedQuery(ctx, searchQuery)
	if err != nil {
		return nil, err
	}

	docs, err := s.Retrieve(ctx, vec)
	if err != nil {
		return nil, err
	}

	contextText := BuildContext(docs, s.profile.ContextSeparator)

	raw, err := s.GenerateAnswer(ctx, req, contextText)
	if err != nil {
		return nil, err
	}

	resp, err := s.ParseAnswer(ctx, raw)
	if err != nil {
		return nil, err
	}

	// With nothing retrieved the context is insufficient by definition, so no action can be offered.
	if len(docs) == 0 && len(resp.Actions) > 0 {
		s.logger.WarnContext(ctx, "Model suggested actions without any retrieved context, dropping them", "actions", resp.Actions)
		resp.Actions = []string{}
	}

	resp.Sources = SourcesFrom(docs)
	return resp, nil
}

// RewriteQuery asks the model to condense history and query into one standalone search query.
func (s *Service) RewriteQuery(ctx context.Context, req GuidanceRequest) (string, error) {
	defer s.metrics.ObserveStage("rewrite", time.Now())

	prompt, err := s.profile.RenderRewrite(req.promptTurns(), req.Query)
	if err != nil {
		return "", stageErr(KindConfig, "rewrite", err)
	}

	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", stageErr(KindUpstream, "rewrite", fmt.Errorf("failed to rewrite search query: %w", err))
	}
	s.logger.InfoContext(ctx, "Step 2: created search query", "search_query", out)
	return out, nil
}

// EmbedQuery turns the search query into a retrieval-query embedding.
func (s *Service) EmbedQuery(ctx context.Context, searchQuery string) ([]float32, error) {
	defer s.metrics.ObserveStage("embed", time.Now())

	vec, err := s.embedder.Embed(ctx, strings.TrimSpace(searchQuery), interfaces.TaskRetrievalQuery)
	if err != nil {
		return nil, stageErr(KindUpstream, "embed", fmt.Errorf("failed to create query embedding: %w", err))
	}
	s.logger.InfoContext(ctx, "Step 3: created query embedding", "dimensions", len(vec))
	return vec, nil
}

// Retrieve runs the similarity search with the profile's threshold and result cap.
func (s *Service) Retrieve(ctx context.Context, vec []float32) ([]store.RetrievedDocument, error) {
	defer s.metrics.ObserveStage("retrieve", time.Now())

	docs, err := s.store.MatchDocuments(ctx, vec, s.profile.MatchThreshold, s.profile.MatchCount)
	if err != nil {
		s.logger.ErrorContext(ctx, "Document match failed", slog.Any("error", err))
		return nil, stageErr(KindStore, "retrieve", err)
	}
	s.metrics.RecordMatches(len(docs))
	s.logger.InfoContext(ctx, "Step 4: matched documents", "count", len(docs))
	return docs, nil
}

// GenerateAnswer renders the answer prompt and returns the model's raw reply.
func (s *Service) GenerateAnswer(ctx context.Context, req GuidanceRequest, contextText string) (string, error) {
	defer s.metrics.ObserveStage("generate", time.Now())

	prompt, err := s.profile.RenderAnswer(req.promptTurns(), contextText, req.Query)
	if err != nil {
		return "", stageErr(KindConfig, "generate", err)
	}
	s.logger.DebugContext(ctx, "Step 5: constructed answer prompt", "chars", len(prompt), "first_message", req.IsFirstMessage())

	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", stageErr(KindUpstream, "generate", fmt.Errorf("failed to generate guidance: %w", err))
	}
	s.logger.InfoContext(ctx, "Step 6: received answer from model", "chars", len(out))
	return out, nil
}

// ParseAnswer extracts and validates the structured response from the model's reply.
func (s *Service) ParseAnswer(ctx context.Context, raw string) (*GuidanceResponse, error) {
	defer s.metrics.ObserveStage("parse", time.Now())

	resp, err := ParseModelReply(raw)
	if err != nil {
		return nil, s.classifyParseErr(err)
	}
	if err := s.validator.Validate(resp); err != nil {
		return nil, s.classifyParseErr(err)
	}
	s.logger.InfoContext(ctx, "Step 7: parsed model response", "actions", resp.Actions, "confidence", resp.Analysis.Confidence)
	return resp, nil
}

func (s *Service) classifyParseErr(err error) error {
	if errors.Is(err, ErrSchemaMismatch) {
		return stageErr(KindSchema, "parse", err)
	}
	return stageErr(KindParse, "parse", err)
}
