package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"

	"github.com/jjckrbbt/tenant-guidance/internal/guidance"
	"github.com/jjckrbbt/tenant-guidance/internal/metrics"
	"github.com/jjckrbbt/tenant-guidance/internal/store"
)

const (
	allowOrigin  = "*"
	allowHeaders = "authorization, x-client-info, apikey, content-type"
)

// GuidanceRunner is the pipeline the handler drives.
type GuidanceRunner interface {
	Run(ctx context.Context, req guidance.GuidanceRequest) (*guidance.GuidanceResponse, error)
}

// GuidanceHandler serves the get-guidance endpoint.
type GuidanceHandler struct {
	service GuidanceRunner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewGuidanceHandler creates a new instance of the GuidanceHandler. m may be nil.
func NewGuidanceHandler(svc GuidanceRunner, m *metrics.Metrics, logger *slog.Logger) *GuidanceHandler {
	return &GuidanceHandler{
		service: svc,
		metrics: m,
		logger:  logger.With("component", "guidance_handler"),
	}
}

// RegisterRoutes mounts the endpoint at each of paths.
func (h *GuidanceHandler) RegisterRoutes(e *echo.Echo, paths ...string) {
	for _, p := range paths {
		e.OPTIONS(p, h.HandlePreflight)
		e.POST(p, h.HandleGuidance)
	}
}

func setCORSHeaders(c echo.Context) {
	header := c.Response().Header()
	header.Set("Access-Control-Allow-Origin", allowOrigin)
	header.Set("Access-Control-Allow-Headers", allowHeaders)
}

// HandlePreflight answers CORS preflight with a bare "ok" and no content type.
func (h *GuidanceHandler) HandlePreflight(c echo.Context) error {
	setCORSHeaders(c)
	// A nil entry stops net/http from sniffing and adding a Content-Type.
	c.Response().Header()["Content-Type"] = nil
	c.Response().WriteHeader(http.StatusOK)
	_, err := c.Response().Write([]byte("ok"))
	return err
}

// HandleGuidance decodes the request, runs the pipeline and writes the structured answer.
// Every failure, whatever its kind, is reported as a 500 with {"error": message}.
func (h *GuidanceHandler) HandleGuidance(c echo.Context) error {
	ctx := c.Request().Context()
	setCORSHeaders(c)
	reqLogger := h.logger.With("request_id", c.Get("requestID"))

	req, err := decodeGuidanceRequest(c.Request().Body)
	if err != nil {
		return h.fail(c, reqLogger, "request", err)
	}

	ctx = store.WithAuthorization(ctx, c.Request().Header.Get("Authorization"))

	resp, err := h.service.Run(ctx, req)
	if err != nil {
		return h.fail(c, reqLogger, string(guidance.KindOf(err)), err)
	}

	h.metrics.RecordRequest("success")
	return c.JSON(http.StatusOK, resp)
}

// decodeGuidanceRequest reads the request body. A null body and a missing or null chatHistory are
// rejected; an empty chatHistory array is a first message.
func decodeGuidanceRequest(body io.Reader) (guidance.GuidanceRequest, error) {
	var req *guidance.GuidanceRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return guidance.GuidanceRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	if req == nil {
		return guidance.GuidanceRequest{}, fmt.Errorf("invalid request body: expected a JSON object")
	}
	if req.ChatHistory == nil {
		return guidance.GuidanceRequest{}, fmt.Errorf("invalid request body: chatHistory must be an array")
	}
	return *req, nil
}

func (h *GuidanceHandler) fail(c echo.Context, reqLogger *slog.Logger, kind string, err error) error {
	ctx := c.Request().Context()
	reqLogger.ErrorContext(ctx, "An error occurred", "kind", kind, slog.Any("error", err))

	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("error_kind", kind)
			hub.CaptureException(err)
		})
	}

	h.metrics.RecordError(kind)
	h.metrics.RecordRequest("error")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
