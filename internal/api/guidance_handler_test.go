package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjckrbbt/tenant-guidance/internal/config"
	"github.com/jjckrbbt/tenant-guidance/internal/guidance"
	"github.com/jjckrbbt/tenant-guidance/internal/interfaces"
	"github.com/jjckrbbt/tenant-guidance/internal/logger"
	"github.com/jjckrbbt/tenant-guidance/internal/metrics"
	"github.com/jjckrbbt/tenant-guidance/internal/prompts"
	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

type callLog struct {
	generate int
	embed    int
	match    int
}

type stubs struct {
	log     *callLog
	replies []string
	docs    []store.RetrievedDocument
}

func (s stubs) generator() interfaces.TextGenerator {
	return interfaces.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		i := s.log.generate
		s.log.generate++
		if i >= len(s.replies) {
			return "", errors.New("unexpected generate call")
		}
		return s.replies[i], nil
	})
}

func (s stubs) embedder() interfaces.Embedder {
	return interfaces.EmbedderFunc(func(ctx context.Context, text string, task interfaces.TaskType) ([]float32, error) {
		s.log.embed++
		return []float32{0.1, 0.2}, nil
	})
}

type stubStore struct {
	log  *callLog
	docs []store.RetrievedDocument
}

func (s stubStore) MatchDocuments(ctx context.Context, embedding []float32, threshold float64, count int) ([]store.RetrievedDocument, error) {
	s.log.match++
	return s.docs, nil
}

func newTestRouter(t *testing.T, cfg *config.Config, s stubs) (http.Handler, *metrics.Metrics) {
	t.Helper()
	profile, err := prompts.Load("")
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	svc := guidance.NewService(cfg, s.generator(), s.embedder(), stubStore{log: s.log, docs: s.docs}, profile, m, logger.Discard())
	h := NewGuidanceHandler(svc, m, logger.Discard())
	return NewRouter(RouterOptions{Guidance: h, Logger: logger.Discard()}), m
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
}

var validKey = &config.Config{GoogleAIAPIKey: "test-key"}

func TestPreflight(t *testing.T) {
	router, _ := newTestRouter(t, validKey, stubs{log: &callLog{}})

	for _, path := range GuidancePaths {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Empty(t, rec.Header().Get("Content-Type"))
		assertCORS(t, rec)
	}
}

func TestGuidance_SufficientContext(t *testing.T) {
	calls := &callLog{}
	router, m := newTestRouter(t, validKey, stubs{
		log: calls,
		replies: []string{
			"landlord not returning tenancy deposit",
			"```json\n{\"text\":\"Your landlord must return your deposit within 10 days of agreeing the amount.\",\"actions\":[\"email_landlord\",\"dispute_message\"],\"analysis\":{\"confidence\":\"High\"}}\n```",
		},
		docs: []store.RetrievedDocument{
			{Content: "Deposits must be protected.", SourceURL: "https://www.gov.uk/tenancy-deposit-protection"},
			{Content: "Disputes go to the scheme.", SourceURL: "https://www.gov.uk/deposit-disputes"},
		},
	})

	rec := post(t, router, "/get-guidance", `{"query":"My landlord won't return my deposit","chatHistory":[]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", strings.Split(rec.Header().Get("Content-Type"), ";")[0])
	assertCORS(t, rec)

	var resp guidance.GuidanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Text)
	assert.NotEmpty(t, resp.Actions)
	assert.Len(t, resp.Sources, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("success")))
	assert.Equal(t, 2, calls.generate)
	assert.Equal(t, 1, calls.embed)
	assert.Equal(t, 1, calls.match)
}

func TestGuidance_NoDocuments(t *testing.T) {
	router, _ := newTestRouter(t, validKey, stubs{
		log: &callLog{},
		replies: []string{
			"deposit",
			"Here is my answer: {\"text\":\"When did your tenancy end, and was your deposit protected?\",\"actions\":[],\"analysis\":{\"confidence\":\"Low\"}}",
		},
	})

	rec := post(t, router, "/functions/v1/get-guidance", `{"query":"My landlord won't return my deposit","chatHistory":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["text"])
	assert.Equal(t, []any{}, body["actions"])
	assert.Equal(t, []any{}, body["sources"])
}

func TestGuidance_MissingAPIKey(t *testing.T) {
	calls := &callLog{}
	router, m := newTestRouter(t, &config.Config{}, stubs{log: calls})

	rec := post(t, router, "/get-guidance", `{"query":"My landlord won't return my deposit","chatHistory":[]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Missing Google AI API Key"}`, rec.Body.String())
	assertCORS(t, rec)
	assert.Equal(t, callLog{}, *calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("config")))
}

func TestGuidance_MalformedModelReply(t *testing.T) {
	router, _ := newTestRouter(t, validKey, stubs{
		log:     &callLog{},
		replies: []string{"deposit", "I'm sorry, I can't answer that right now."},
	})

	rec := post(t, router, "/get-guidance", `{"query":"deposit","chatHistory":[]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"AI did not return a valid JSON object in the expected format."}`, rec.Body.String())
	assertCORS(t, rec)
}

func TestGuidance_MalformedBody(t *testing.T) {
	calls := &callLog{}
	router, _ := newTestRouter(t, validKey, stubs{log: calls})

	rec := post(t, router, "/get-guidance", `{"query":`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
	assert.Zero(t, calls.generate)
}

func TestGuidance_RejectsMissingOrNullInput(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "missing chatHistory", body: `{"query":"deposit"}`},
		{name: "null chatHistory", body: `{"query":"deposit","chatHistory":null}`},
		{name: "empty object", body: `{}`},
		{name: "null body", body: `null`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := &callLog{}
			router, m := newTestRouter(t, validKey, stubs{log: calls})

			rec := post(t, router, "/get-guidance", tc.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assertCORS(t, rec)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], "invalid request body")
			assert.Equal(t, callLog{}, *calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("request")))
		})
	}
}

func TestGuidance_EmptyHistoryIsFirstMessage(t *testing.T) {
	var answerPrompt string
	profile, err := prompts.Load("")
	require.NoError(t, err)

	gen := interfaces.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		answerPrompt = prompt
		return `{"text":"When did the tenancy end?","actions":[],"analysis":{"confidence":"Low"}}`, nil
	})
	emb := interfaces.EmbedderFunc(func(ctx context.Context, text string, task interfaces.TaskType) ([]float32, error) {
		return []float32{1}, nil
	})
	svc := guidance.NewService(validKey, gen, emb, matcherFunc(func(ctx context.Context) {}), profile, nil, logger.Discard())
	router := NewRouter(RouterOptions{Guidance: NewGuidanceHandler(svc, nil, logger.Discard()), Logger: logger.Discard()})

	rec := post(t, router, "/get-guidance", `{"query":"deposit","chatHistory":[]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, answerPrompt, "CONVERSATION STAGE: FIRST MESSAGE")
}

func TestRouter_ErrorsUseGuidanceShape(t *testing.T) {
	e := NewRouter(RouterOptions{
		Guidance: NewGuidanceHandler(nil, nil, logger.Discard()),
		Logger:   logger.Discard(),
	})
	e.POST("/explode", func(c echo.Context) error {
		panic("store client not initialised")
	})

	rec := post(t, e, "/explode", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"store client not initialised"}`, rec.Body.String())
	assertCORS(t, rec)

	rec = post(t, e, "/no-such-route", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
	assertCORS(t, rec)
}

func TestGuidance_ForwardsAuthorization(t *testing.T) {
	var seen string
	profile, err := prompts.Load("")
	require.NoError(t, err)

	gen := interfaces.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"text":"ok","actions":[],"analysis":{"confidence":"Medium"}}`, nil
	})
	emb := interfaces.EmbedderFunc(func(ctx context.Context, text string, task interfaces.TaskType) ([]float32, error) {
		return []float32{1}, nil
	})
	docs := matcherFunc(func(ctx context.Context) {
		seen = authorizationOf(ctx)
	})

	svc := guidance.NewService(validKey, gen, emb, docs, profile, nil, logger.Discard())
	router := NewRouter(RouterOptions{Guidance: NewGuidanceHandler(svc, nil, logger.Discard()), Logger: logger.Discard()})

	req := httptest.NewRequest(http.MethodPost, "/get-guidance", strings.NewReader(`{"query":"q","chatHistory":[]}`))
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer user-token", seen)
}

func TestHealth(t *testing.T) {
	router := NewRouter(RouterOptions{
		Guidance: NewGuidanceHandler(nil, nil, logger.Discard()),
		Logger:   logger.Discard(),
		Ready:    func(ctx context.Context) error { return errors.New("db down") },
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type matcherFunc func(ctx context.Context)

func (f matcherFunc) MatchDocuments(ctx context.Context, _ []float32, _ float64, _ int) ([]store.RetrievedDocument, error) {
	f(ctx)
	return nil, nil
}

var authorizationOf = store.AuthorizationFrom
